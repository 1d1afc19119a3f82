// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline carries one candidate from discovery to a ledger entry:
// download, extract, summarize, publish, record. Every failure is confined
// to the candidate and reported in its Result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/observability"
	"github.com/pdiddy/paper-digest/internal/publish"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// State is a step in a candidate's lifecycle.
type State string

const (
	StateDiscovered    State = "discovered"
	StateDownloaded    State = "downloaded"
	StateTextExtracted State = "text_extracted"
	StateSummarized    State = "summarized"
	StatePublished     State = "published"
	StateRecorded      State = "recorded"
	StateFailed        State = "failed"
)

// Stage names the step a failure happened in.
type Stage string

const (
	StageDownload  Stage = "download"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageRecord    Stage = "record"
)

// Failure is the terminal error of a candidate.
type Failure struct {
	Stage  Stage
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed: %s", f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// PDFFetcher downloads PDF bytes.
type PDFFetcher interface {
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}

// Recorder writes ledger entries. *ledger.Ledger satisfies it.
type Recorder interface {
	Record(ctx context.Context, id, searchSet string, outcome types.Outcome) (types.LedgerEntry, error)
}

// Result describes where a candidate ended up.
type Result struct {
	Candidate types.Candidate
	State     State
	Outcome   types.Outcome
	Summary   string
	PostText  string
	PostID    string

	// PublishErr is set when a publish was attempted and failed. The
	// candidate is still recorded as summarized-only.
	PublishErr error

	// Duplicate is set when the ledger already held an entry at record time.
	Duplicate bool

	// LogPath is the written post log, empty when none was written.
	LogPath string

	Failure *Failure
}

// Succeeded reports whether the candidate reached Recorded.
func (r Result) Succeeded() bool { return r.State == StateRecorded }

// Options are the per-set inputs for one candidate.
type Options struct {
	SearchSet string

	// Prompt overrides the pipeline's default prompt.
	Prompt *summarize.Prompt

	// Publish enables the publish step.
	Publish bool

	// LogDir receives the post log. Empty disables it.
	LogDir string
}

// Config holds the knobs for each stage.
type Config struct {
	DownloadAttempts   int
	DownloadDelay      time.Duration
	ExtractTimeout     time.Duration
	SummarizeAttempts  int
	SummarizeBaseDelay time.Duration
	MaxInputChars      int
	Prompt             *summarize.Prompt
	PostPrefix         string
	MaxPostLength      int
}

// ConfigFrom builds a Config from the run configuration.
func ConfigFrom(cfg types.Config) (Config, error) {
	prompt, err := summarize.ParsePrompt(cfg.Summarize.Prompt)
	if err != nil {
		return Config{}, err
	}
	return Config{
		DownloadAttempts:   cfg.Download.Attempts,
		DownloadDelay:      cfg.Download.RetryDelay,
		ExtractTimeout:     cfg.Extract.Timeout,
		SummarizeAttempts:  cfg.Summarize.MaxRetries + 1,
		SummarizeBaseDelay: cfg.Summarize.BaseDelay,
		MaxInputChars:      cfg.Summarize.MaxInputChars,
		Prompt:             prompt,
		PostPrefix:         cfg.Publish.Prefix,
		MaxPostLength:      cfg.Publish.MaxLength,
	}, nil
}

func (c *Config) applyDefaults() {
	if c.DownloadAttempts <= 0 {
		c.DownloadAttempts = 3
	}
	if c.DownloadDelay <= 0 {
		c.DownloadDelay = 2 * time.Second
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = convert.DefaultTimeout
	}
	if c.SummarizeAttempts <= 0 {
		c.SummarizeAttempts = 3
	}
	if c.SummarizeBaseDelay <= 0 {
		c.SummarizeBaseDelay = 2 * time.Second
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = summarize.DefaultMaxInputChars
	}
	if c.MaxPostLength <= 0 {
		c.MaxPostLength = publish.DefaultMaxLength
	}
}

// Deps are the collaborators a Pipeline drives. Publisher may be nil when
// no set publishes; Metrics may be nil.
type Deps struct {
	Fetcher    PDFFetcher
	Papers     *acquire.Store
	Extractor  convert.Extractor
	Summarizer summarize.Summarizer
	Publisher  publish.Publisher
	Ledger     Recorder
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

// Pipeline processes candidates one at a time.
type Pipeline struct {
	Deps
	cfg Config
	now func() time.Time
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	cfg.applyDefaults()
	if cfg.Prompt == nil {
		cfg.Prompt, _ = summarize.ParsePrompt("")
	}
	return &Pipeline{Deps: deps, cfg: cfg, now: time.Now}
}

// Process runs c through every stage. The ledger write is the last action,
// so a candidate is only recorded once everything before it completed.
func (p *Pipeline) Process(ctx context.Context, c types.Candidate, opts Options) Result {
	log := observability.WithCandidate(p.Logger, c.ID)
	res := Result{Candidate: c, State: StateDiscovered}

	fail := func(stage Stage, reason string, err error) Result {
		res.State = StateFailed
		res.Failure = &Failure{Stage: stage, Reason: reason, Err: err}
		log.Warn().Err(err).Str("stage", string(stage)).Str("reason", reason).Msg("candidate failed")
		return res
	}

	start := time.Now()
	pdf, err := p.download(ctx, c, opts.SearchSet, log)
	p.Metrics.ObserveStage(string(StageDownload), time.Since(start))
	if err != nil {
		return fail(StageDownload, reason(err), err)
	}
	res.State = StateDownloaded

	start = time.Now()
	text, err := convert.Run(ctx, p.Extractor, pdf, p.cfg.ExtractTimeout)
	p.Metrics.ObserveStage(string(StageExtract), time.Since(start))
	switch {
	case errors.Is(err, convert.ErrEmptyText):
		return fail(StageExtract, "empty text", err)
	case errors.Is(err, convert.ErrNotPDF):
		return fail(StageExtract, "not a PDF", err)
	case err != nil:
		return fail(StageExtract, reason(err), err)
	}
	res.State = StateTextExtracted
	log.Debug().Int("chars", len(text)).Msg("text extracted")

	start = time.Now()
	summary, err := p.summarize(ctx, c, text, opts.Prompt, log)
	p.Metrics.ObserveStage(string(StageSummarize), time.Since(start))
	if err != nil {
		return fail(StageSummarize, summarizeReason(err), err)
	}
	res.State = StateSummarized
	res.Summary = summary
	res.PostText = publish.ComposeText(p.cfg.PostPrefix, summary, c.AbsURL, p.cfg.MaxPostLength)
	res.Outcome = types.OutcomeSummarizedOnly

	if opts.Publish && p.Publisher != nil {
		start = time.Now()
		post, err := p.publish(ctx, res.PostText, log)
		p.Metrics.ObserveStage("publish", time.Since(start))
		if err != nil {
			res.PublishErr = err
			var pe *publish.PublishError
			if errors.As(err, &pe) {
				p.Metrics.RecordPublishFailure(string(pe.Kind))
			} else {
				p.Metrics.RecordPublishFailure("other")
			}
			log.Warn().Err(err).Msg("publish failed, keeping summary")
		} else {
			res.State = StatePublished
			res.Outcome = types.OutcomePublished
			res.PostID = post.ID
			log.Info().Str("post_id", post.ID).Msg("published")
		}
	}

	if opts.LogDir != "" {
		path, err := publish.WriteLog(opts.LogDir, p.postLog(res, opts.SearchSet))
		if err != nil {
			log.Warn().Err(err).Msg("writing post log")
		} else {
			res.LogPath = path
		}
	}

	_, err = p.Ledger.Record(ctx, c.ID, opts.SearchSet, res.Outcome)
	var dup *ledger.DuplicateEntryError
	switch {
	case err == nil:
		p.Metrics.RecordLedgerWrite("ok")
	case errors.As(err, &dup):
		p.Metrics.RecordLedgerWrite("duplicate")
		res.Duplicate = true
		log.Warn().Msg("ledger already holds this candidate")
	default:
		p.Metrics.RecordLedgerWrite("error")
		return fail(StageRecord, reason(err), err)
	}
	res.State = StateRecorded
	log.Info().Str("outcome", string(res.Outcome)).Msg("recorded")
	return res
}

func (p *Pipeline) postLog(res Result, set string) publish.PostLog {
	l := publish.NewPostLog(p.now())
	l.Title = res.Candidate.Title
	l.Summary = res.Summary
	l.PostText = res.PostText
	l.ArxivID = res.Candidate.ID
	l.SearchSet = set
	l.Authors = res.Candidate.Authors
	if !res.Candidate.PublishedAt.IsZero() {
		l.Published = res.Candidate.PublishedAt.UTC().Format(time.RFC3339)
	}
	if res.PostID != "" {
		l.Tweets = append(l.Tweets, publish.PostRecord{Type: "post", ID: res.PostID, Text: res.PostText})
	}
	if res.PublishErr != nil {
		l.Error = res.PublishErr.Error()
	}
	return l
}

// reason shortens err for the manifest.
func reason(err error) string {
	msg := strings.TrimSpace(err.Error())
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

func summarizeReason(err error) string {
	var se *summarize.SummarizeError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: %s", se.Kind, reason(se.Err))
	}
	return reason(err)
}
