// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline:
// candidates discovered by the search stage, ledger entries proving a
// candidate was fully processed, and the configuration records that drive a
// run.
package types

import "time"

// Candidate is one discovered paper. Candidates are produced by the search
// adapter, never mutated, and consumed once by the acquisition pipeline.
type Candidate struct {
	// ID is the stable external identifier (arXiv ID without version suffix).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title with whitespace collapsed.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishedAt is the first-version submission time reported by the source.
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`

	// PDFURL is where the PDF is downloaded from.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// AbsURL is the human-facing landing page, appended to posts.
	AbsURL string `json:"abs_url,omitempty" yaml:"abs_url,omitempty"`

	// Categories lists the source subject categories (e.g. "quant-ph").
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Cursors maps a search set name to the lower bound (exclusive) of the next
// query for that set.
type Cursors map[string]time.Time

// Clone returns an independent copy of c.
func (c Cursors) Clone() Cursors {
	out := make(Cursors, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
