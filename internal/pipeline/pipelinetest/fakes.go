// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipelinetest provides in-memory collaborators for exercising the
// pipeline and the coordinator without network or subprocess calls.
package pipelinetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/publish"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// PDF is a minimal body that passes the PDF magic check.
var PDF = []byte("%PDF-1.4\nfake")

// Fetcher serves PDF for every URL unless Fail says otherwise.
type Fetcher struct {
	mu    sync.Mutex
	Fail  func(url string, attempt int) error
	calls map[string]int
}

func (f *Fetcher) FetchPDF(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	n := f.calls[url]
	f.mu.Unlock()
	if f.Fail != nil {
		if err := f.Fail(url, n); err != nil {
			return nil, err
		}
	}
	return PDF, nil
}

// Calls returns how many times url was fetched.
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Extractor returns Text for every PDF.
type Extractor struct {
	Text  string
	Err   error
	Calls int
}

func (e *Extractor) Name() string { return "fake" }

func (e *Extractor) Extract(context.Context, []byte) (string, error) {
	e.Calls++
	if e.Err != nil {
		return "", e.Err
	}
	if e.Text == "" {
		return "Some paper body text.", nil
	}
	return e.Text, nil
}

// Summarizer returns "summary of <title>" unless Fail returns an error for
// the given title and attempt.
type Summarizer struct {
	Fail  func(title string, attempt int) error
	calls map[string]int
}

func (s *Summarizer) Name() string { return "fake" }

func (s *Summarizer) Summarize(_ context.Context, req summarize.Request) (string, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[req.Title]++
	if s.Fail != nil {
		if err := s.Fail(req.Title, s.calls[req.Title]); err != nil {
			return "", err
		}
	}
	return "summary of " + req.Title, nil
}

// Calls returns how many times title was summarized.
func (s *Summarizer) Calls(title string) int { return s.calls[title] }

// Total returns the number of Summarize calls.
func (s *Summarizer) Total() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Quota is a retryable summarize failure.
func Quota() error {
	return &summarize.SummarizeError{Backend: "fake", Kind: summarize.KindQuota, StatusCode: 429, Err: errors.New("rate limited")}
}

// Publisher records every post and assigns sequential ids.
type Publisher struct {
	Fail  func(text string, attempt int) error
	Posts []publish.Post
	calls int
}

func (p *Publisher) Name() string { return "fake" }

func (p *Publisher) Publish(_ context.Context, text string) (publish.Post, error) {
	p.calls++
	if p.Fail != nil {
		if err := p.Fail(text, p.calls); err != nil {
			return publish.Post{}, err
		}
	}
	post := publish.Post{ID: fmt.Sprintf("post-%d", len(p.Posts)+1), Text: text}
	p.Posts = append(p.Posts, post)
	return post, nil
}

// Calls returns the number of Publish calls, failed ones included.
func (p *Publisher) Calls() int { return p.calls }

// BrokenRecorder fails every ledger write, simulating a crash between
// publishing and recording.
type BrokenRecorder struct{}

func (BrokenRecorder) Record(_ context.Context, id, _ string, _ types.Outcome) (types.LedgerEntry, error) {
	return types.LedgerEntry{}, &ledger.WriteError{CandidateID: id, Err: errors.New("disk I/O error")}
}
