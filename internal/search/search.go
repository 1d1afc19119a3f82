// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search turns a keyword query into a lazy, newest-first sequence of
// candidate papers published after a cursor. Page fetches run under a retry
// policy; a failure that survives the retries ends the sequence with a
// *SourceQueryError.
package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/retry"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Defaults applied when the source config leaves a field zero.
const (
	DefaultPageSize   = 10
	DefaultPageDelay  = 3 * time.Second
	DefaultAttempts   = 3
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxResults = 100
)

// Query selects candidates for one search set.
type Query struct {
	Keywords   []string
	UseOr      bool
	MaxResults int

	// Since is exclusive: only candidates published strictly after it are
	// yielded. The zero value disables the filter.
	Since time.Time
}

// IsEmpty reports whether the query has no usable keyword.
func (q Query) IsEmpty() bool {
	for _, k := range q.Keywords {
		if strings.TrimSpace(k) != "" {
			return false
		}
	}
	return true
}

// PageRequest asks a backend for one page of results, newest first.
type PageRequest struct {
	Query Query
	Start int
	Size  int
}

// Page is one page of backend results.
type Page struct {
	Candidates []types.Candidate

	// TotalResults is the backend's match count, or zero when unknown.
	TotalResults int
}

// Backend fetches pages from a paper-search API.
type Backend interface {
	Name() string
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// ErrMalformedResponse marks a response the backend could not interpret.
// It is not retried.
var ErrMalformedResponse = errors.New("malformed source response")

// SourceQueryError reports a page fetch that failed after all retries or
// with a non-retryable error.
type SourceQueryError struct {
	Source string
	Start  int
	Err    error
}

func (e *SourceQueryError) Error() string {
	return fmt.Sprintf("%s query at offset %d: %v", e.Source, e.Start, e.Err)
}

func (e *SourceQueryError) Unwrap() error { return e.Err }

// Adapter pages through a Backend. It is stateless between calls: each
// Search re-queries from the newest result.
type Adapter struct {
	backend   Backend
	pageSize  int
	pageDelay time.Duration
	policy    retry.Policy
	log       zerolog.Logger
}

// NewAdapter wraps b with the paging and retry settings from cfg.
func NewAdapter(b Backend, cfg types.SourceConfig, log zerolog.Logger) *Adapter {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageDelay := cfg.PageDelay
	if pageDelay < 0 {
		pageDelay = 0
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return &Adapter{
		backend:   b,
		pageSize:  pageSize,
		pageDelay: pageDelay,
		policy:    retry.Exponential(attempts, base, isRetryable),
		log:       log.With().Str("source", b.Name()).Logger(),
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrRejected) {
		return false
	}
	return httputil.IsRetryable(err)
}

// Search returns the candidates matching q, newest first. The sequence is
// finite: it ends after q.MaxResults source results, after the first page
// that reaches q.Since, or when the source runs out. Ids repeated across
// pages are yielded once. A fetch failure is yielded as the final element
// with a *SourceQueryError.
func (a *Adapter) Search(ctx context.Context, q Query) iter.Seq2[types.Candidate, error] {
	return func(yield func(types.Candidate, error) bool) {
		if q.IsEmpty() {
			yield(types.Candidate{}, &SourceQueryError{Source: a.backend.Name(), Err: errors.New("query has no keywords")})
			return
		}
		maxResults := q.MaxResults
		if maxResults <= 0 {
			maxResults = DefaultMaxResults
		}

		a.log.Debug().Strs("keywords", q.Keywords).Str("since", formatSince(q.Since)).Int("max_results", maxResults).Msg("searching")

		seen := make(map[string]struct{})
		for start := 0; start < maxResults; {
			if start > 0 && a.pageDelay > 0 {
				if err := retry.Sleep(ctx, a.pageDelay); err != nil {
					yield(types.Candidate{}, &SourceQueryError{Source: a.backend.Name(), Start: start, Err: err})
					return
				}
			}

			req := PageRequest{Query: q, Start: start, Size: min(a.pageSize, maxResults-start)}
			var page Page
			err := a.policy.Do(ctx, func(ctx context.Context, attempt int) error {
				var ferr error
				page, ferr = a.backend.FetchPage(ctx, req)
				if ferr != nil {
					a.log.Warn().Err(ferr).Int("start", start).Int("attempt", attempt).Msg("page fetch failed")
				}
				return ferr
			})
			if err != nil {
				yield(types.Candidate{}, &SourceQueryError{Source: a.backend.Name(), Start: start, Err: err})
				return
			}
			a.log.Debug().Int("start", start).Int("entries", len(page.Candidates)).Msg("fetched page")

			reachedCursor := false
			for _, c := range page.Candidates {
				if _, dup := seen[c.ID]; dup {
					continue
				}
				seen[c.ID] = struct{}{}

				if !q.Since.IsZero() && !c.PublishedAt.After(q.Since) {
					reachedCursor = true
					continue
				}
				if !yield(c, nil) {
					return
				}
			}

			start += len(page.Candidates)
			switch {
			case reachedCursor:
				return
			case len(page.Candidates) < req.Size:
				return
			case page.TotalResults > 0 && start >= page.TotalResults:
				return
			}
		}
	}
}
