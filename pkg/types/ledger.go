// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Outcome is the terminal success state a candidate was recorded with.
type Outcome string

const (
	// OutcomePublished means the summary was posted to the feed.
	OutcomePublished Outcome = "published"

	// OutcomeSummarizedOnly means a summary exists but was not posted, either
	// because publishing was disabled or because the publish call failed.
	OutcomeSummarizedOnly Outcome = "summarized-only"

	// OutcomeSkipped marks a candidate deliberately retired without a summary.
	OutcomeSkipped Outcome = "skipped"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePublished, OutcomeSummarizedOnly, OutcomeSkipped:
		return true
	}
	return false
}

// LedgerEntry proves a candidate was fully processed. There is at most one
// entry per CandidateID and it is never rewritten.
type LedgerEntry struct {
	CandidateID   string    `json:"candidate_id" yaml:"candidate_id"`
	ProcessedAt   time.Time `json:"processed_at" yaml:"processed_at"`
	Outcome       Outcome   `json:"outcome" yaml:"outcome"`
	SearchSetName string    `json:"search_set_name" yaml:"search_set_name"`
}
