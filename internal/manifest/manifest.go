// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest records what one invocation did and persists the
// per-set cursors the next invocation resumes from.
package manifest

import (
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Mode selects which archive pages the downstream site generator rebuilds.
// The pipeline itself behaves the same in both modes.
type Mode string

const (
	ModeCurrentOnly Mode = "current-only"
	ModeAllPages    Mode = "all-pages"
)

// Failure is one candidate that reached Failed.
type Failure struct {
	CandidateID string `json:"candidate_id" yaml:"candidate_id"`
	Stage       string `json:"stage" yaml:"stage"`
	Reason      string `json:"reason" yaml:"reason"`
}

// SetStats accumulates the outcome of one search set.
type SetStats struct {
	Name string `json:"name" yaml:"name"`

	// Since is the cursor the query started from; zero means no lower bound.
	Since time.Time `json:"since,omitempty" yaml:"since,omitempty"`

	// NextSince is the cursor the next run will use. It starts at Since and
	// only moves forward with successfully recorded candidates.
	NextSince time.Time `json:"next_since,omitempty" yaml:"next_since,omitempty"`

	Discovered       int `json:"discovered" yaml:"discovered"`
	SkippedDuplicate int `json:"skipped_duplicate" yaml:"skipped_duplicate"`

	// SkippedFailed counts candidates that already failed in an earlier set
	// of the same run.
	SkippedFailed int `json:"skipped_failed" yaml:"skipped_failed"`

	Succeeded     int       `json:"succeeded" yaml:"succeeded"`
	Failed        int       `json:"failed" yaml:"failed"`
	PublishFailed int       `json:"publish_failed" yaml:"publish_failed"`
	SourceError   string    `json:"source_error,omitempty" yaml:"source_error,omitempty"`
	Failures      []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`

	// Partial is set when the set stopped before its candidates ran out.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`
}

// RecordSuccess counts a recorded candidate and advances NextSince to its
// publication time when later.
func (s *SetStats) RecordSuccess(publishedAt time.Time) {
	s.Succeeded++
	if publishedAt.After(s.NextSince) {
		s.NextSince = publishedAt
	}
}

// RecordDuplicate counts a candidate another set recorded first. Its entry
// exists, so the cursor may move past it.
func (s *SetStats) RecordDuplicate(publishedAt time.Time) {
	s.SkippedDuplicate++
	if publishedAt.After(s.NextSince) {
		s.NextSince = publishedAt
	}
}

// RecordFailure counts a failed candidate.
func (s *SetStats) RecordFailure(candidateID, stage, reason string) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{CandidateID: candidateID, Stage: stage, Reason: reason})
}

// Hold marks the set as stopped early. Candidates older than the ones seen
// were never attempted, so the cursor stays at Since.
func (s *SetStats) Hold() {
	s.Partial = true
	s.NextSince = s.Since
}

// Unreachable reports whether the source failed before yielding anything.
func (s *SetStats) Unreachable() bool {
	return s.SourceError != "" && s.Discovered == 0
}

// Totals aggregates SetStats across a run.
type Totals struct {
	Discovered       int `json:"discovered" yaml:"discovered"`
	SkippedDuplicate int `json:"skipped_duplicate" yaml:"skipped_duplicate"`
	SkippedFailed    int `json:"skipped_failed" yaml:"skipped_failed"`
	Succeeded        int `json:"succeeded" yaml:"succeeded"`
	Failed           int `json:"failed" yaml:"failed"`
	PublishFailed    int `json:"publish_failed" yaml:"publish_failed"`
	SourceErrors     int `json:"source_errors" yaml:"source_errors"`
}

// Manifest is the record of one invocation.
type Manifest struct {
	RunID         string      `json:"run_id" yaml:"run_id"`
	RunStartedAt  time.Time   `json:"run_started_at" yaml:"run_started_at"`
	RunFinishedAt time.Time   `json:"run_finished_at,omitempty" yaml:"run_finished_at,omitempty"`
	Mode          Mode        `json:"mode" yaml:"mode"`
	TestMode      bool        `json:"test_mode" yaml:"test_mode"`
	Sets          []*SetStats `json:"sets" yaml:"sets"`
	Totals        Totals      `json:"totals" yaml:"totals"`
}

// New starts a manifest for a run beginning at now.
func New(mode Mode, testMode bool, now time.Time) *Manifest {
	if mode == "" {
		mode = ModeCurrentOnly
	}
	return &Manifest{
		RunID:        uuid.NewString(),
		RunStartedAt: now.UTC(),
		Mode:         mode,
		TestMode:     testMode,
	}
}

// StartSet appends stats for a set whose query starts from since.
func (m *Manifest) StartSet(name string, since time.Time) *SetStats {
	s := &SetStats{Name: name, Since: since, NextSince: since}
	m.Sets = append(m.Sets, s)
	return s
}

// Set returns the stats for name, or nil.
func (m *Manifest) Set(name string) *SetStats {
	for _, s := range m.Sets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Finish stamps the end time and recomputes Totals.
func (m *Manifest) Finish(now time.Time) {
	m.RunFinishedAt = now.UTC()
	var t Totals
	for _, s := range m.Sets {
		t.Discovered += s.Discovered
		t.SkippedDuplicate += s.SkippedDuplicate
		t.SkippedFailed += s.SkippedFailed
		t.Succeeded += s.Succeeded
		t.Failed += s.Failed
		t.PublishFailed += s.PublishFailed
		if s.SourceError != "" {
			t.SourceErrors++
		}
	}
	m.Totals = t
}

// Advancing returns the sets whose NextSince may be persisted. A test-mode
// run moves no cursors.
func (m *Manifest) Advancing() []*SetStats {
	if m.TestMode {
		return nil
	}
	return m.Sets
}

// Cursors merges the run's NextSince values into prior. A cursor never
// moves backwards and sets without successes keep their prior value.
func (m *Manifest) Cursors(prior types.Cursors) types.Cursors {
	out := prior.Clone()
	for _, s := range m.Advancing() {
		out[s.Name] = later(out[s.Name], s.NextSince)
	}
	for name, t := range out {
		if t.IsZero() {
			delete(out, name)
		}
	}
	return out
}

// Unreachable lists sets whose source failed before yielding any candidate.
func (m *Manifest) Unreachable() []string {
	var names []string
	for _, s := range m.Sets {
		if s.Unreachable() {
			names = append(names, s.Name)
		}
	}
	return names
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
