// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator runs every search set of an invocation in order,
// sharing one ledger so a paper matched by several sets is processed once.
package coordinator

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/manifest"
	"github.com/pdiddy/paper-digest/internal/observability"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/retry"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Source yields candidates for a query. *search.Adapter satisfies it.
type Source interface {
	Search(ctx context.Context, q search.Query) iter.Seq2[types.Candidate, error]
}

// Processor runs one candidate through the pipeline. *pipeline.Pipeline
// satisfies it.
type Processor interface {
	Process(ctx context.Context, c types.Candidate, opts pipeline.Options) pipeline.Result
}

// Ledger answers whether a candidate was already processed.
type Ledger interface {
	HasProcessed(ctx context.Context, id string) (bool, error)
}

// Options control one invocation.
type Options struct {
	Mode     manifest.Mode
	TestMode bool

	// WaitBetweenSets pauses before every set after the first.
	WaitBetweenSets time.Duration

	// CandidateDelay pauses between pipeline runs within a set.
	CandidateDelay time.Duration

	// MaxPostsPerSet caps publishes per set. Zero means no cap.
	MaxPostsPerSet int
}

// Coordinator drives the search sets.
type Coordinator struct {
	source   Source
	pipeline Processor
	ledger   Ledger
	store    manifest.Store
	opts     Options
	log      zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// New creates a Coordinator. store may be nil when only Run is used.
func New(source Source, p Processor, l Ledger, store manifest.Store, opts Options, log zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		source:   source,
		pipeline: p,
		ledger:   l,
		store:    store,
		opts:     opts,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Execute loads the stored cursors, runs every set and saves the manifest.
// The manifest is saved even when ctx was cancelled mid-run.
func (c *Coordinator) Execute(ctx context.Context, sets []types.SearchSet) (*manifest.Manifest, error) {
	prior, err := c.store.LoadCursors(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cursors: %w", err)
	}
	m := c.Run(ctx, sets, prior)
	if err := c.store.Save(context.WithoutCancel(ctx), m); err != nil {
		return m, fmt.Errorf("saving manifest: %w", err)
	}
	return m, nil
}

// runState is shared across the sets of one invocation.
type runState struct {
	failed        map[string]bool
	testRemaining int
}

// Run processes sets strictly in order and returns the manifest. It never
// fails as a whole: source errors end a set and candidate errors end a
// candidate.
func (c *Coordinator) Run(ctx context.Context, sets []types.SearchSet, prior types.Cursors) *manifest.Manifest {
	m := manifest.New(c.opts.Mode, c.opts.TestMode, c.now())
	log := observability.WithRun(c.log, m.RunID, c.opts.TestMode)
	log.Info().Int("sets", len(sets)).Str("mode", string(m.Mode)).Msg("run started")

	st := &runState{failed: make(map[string]bool), testRemaining: 1}
	for i, set := range sets {
		if i > 0 && c.opts.WaitBetweenSets > 0 {
			log.Debug().Dur("wait", c.opts.WaitBetweenSets).Msg("waiting before next set")
			if err := retry.Sleep(ctx, c.opts.WaitBetweenSets); err != nil {
				log.Warn().Err(err).Msg("run interrupted")
				break
			}
		}
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("run interrupted")
			break
		}
		if c.opts.TestMode && st.testRemaining == 0 {
			break
		}
		c.runSet(ctx, m, set, prior[set.Name], st, log)
	}

	m.Finish(c.now())
	c.metrics.MarkRunFinished(m.RunFinishedAt)
	log.Info().
		Int("succeeded", m.Totals.Succeeded).
		Int("failed", m.Totals.Failed).
		Int("skipped_duplicate", m.Totals.SkippedDuplicate).
		Msg("run finished")
	return m
}

func (c *Coordinator) runSet(ctx context.Context, m *manifest.Manifest, set types.SearchSet, since time.Time, st *runState, runLog zerolog.Logger) {
	log := observability.WithSearchSet(runLog, set.Name)
	stats := m.StartSet(set.Name, since)

	var prompt *summarize.Prompt
	if set.Prompt != "" {
		p, err := summarize.ParsePrompt(set.Prompt)
		if err != nil {
			stats.SourceError = err.Error()
			log.Error().Err(err).Msg("invalid prompt, skipping set")
			return
		}
		prompt = p
	}

	q := search.Query{
		Keywords:   set.Keywords,
		UseOr:      set.UseOr,
		MaxResults: set.MaxResults,
		Since:      since,
	}
	log.Info().Strs("keywords", set.Keywords).Time("since", since).Msg("searching")

	processed, posts := 0, 0
	stopped := false
	for cand, err := range c.source.Search(ctx, q) {
		if err != nil {
			stopped = true
			stats.SourceError = err.Error()
			c.metrics.RecordSourceFailure(set.Name)
			log.Error().Err(err).Int("discovered", stats.Discovered).Msg("source query failed")
			break
		}
		stats.Discovered++
		c.metrics.RecordDiscovered(set.Name)

		if st.failed[cand.ID] {
			stats.SkippedFailed++
			c.metrics.RecordSkipped(set.Name, "failed_earlier")
			log.Debug().Str("candidate_id", cand.ID).Msg("failed earlier in this run, skipping")
			continue
		}
		done, err := c.ledger.HasProcessed(ctx, cand.ID)
		if err != nil {
			stats.RecordFailure(cand.ID, "ledger", err.Error())
			c.metrics.RecordFailed(set.Name, "ledger")
			log.Warn().Err(err).Str("candidate_id", cand.ID).Msg("ledger lookup failed")
			continue
		}
		if done {
			stats.SkippedDuplicate++
			c.metrics.RecordSkipped(set.Name, "duplicate")
			continue
		}

		if set.MaxProcess > 0 && processed >= set.MaxProcess {
			log.Info().Int("max_process", set.MaxProcess).Msg("processing limit reached")
			stopped = true
			break
		}
		if c.opts.TestMode && st.testRemaining == 0 {
			stopped = true
			break
		}
		if processed > 0 && c.opts.CandidateDelay > 0 {
			if err := retry.Sleep(ctx, c.opts.CandidateDelay); err != nil {
				log.Warn().Err(err).Msg("set interrupted")
				stopped = true
				break
			}
		}

		publish := set.PublishEnabled && !c.opts.TestMode &&
			(c.opts.MaxPostsPerSet == 0 || posts < c.opts.MaxPostsPerSet)

		res := c.pipeline.Process(ctx, cand, pipeline.Options{
			SearchSet: set.Name,
			Prompt:    prompt,
			Publish:   publish,
			LogDir:    set.LogDir,
		})
		processed++
		if c.opts.TestMode {
			st.testRemaining--
		}

		switch {
		case res.Succeeded() && res.Duplicate:
			stats.RecordDuplicate(cand.PublishedAt)
			c.metrics.RecordSkipped(set.Name, "duplicate")
		case res.Succeeded():
			stats.RecordSuccess(cand.PublishedAt)
			c.metrics.RecordSucceeded(set.Name, string(res.Outcome))
			if res.Outcome == types.OutcomePublished {
				posts++
			}
			if res.PublishErr != nil {
				stats.PublishFailed++
			}
		default:
			st.failed[cand.ID] = true
			stage, reason := "unknown", "unknown"
			if res.Failure != nil {
				stage, reason = string(res.Failure.Stage), res.Failure.Reason
			}
			stats.RecordFailure(cand.ID, stage, reason)
			c.metrics.RecordFailed(set.Name, stage)
		}
	}

	if stopped || ctx.Err() != nil {
		stats.Hold()
		log.Info().Time("since", since).Msg("set stopped early, cursor held")
	}

	log.Info().
		Int("discovered", stats.Discovered).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped_duplicate", stats.SkippedDuplicate).
		Msg("set finished")
}
