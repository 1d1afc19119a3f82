// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/coordinator"
	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/manifest"
	"github.com/pdiddy/paper-digest/internal/observability"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/publish"
	"github.com/pdiddy/paper-digest/internal/report"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/internal/summarize"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every search set once",
	Long: `Run executes each configured search set in order: query arXiv for papers
newer than the set's cursor, skip papers already in the ledger, then
download, extract, summarize and post the rest. Per-paper failures are
reported and retried on the next run; the command fails only when a set's
source could not be reached at all.

--current-only and --all-pages select which archive pages the site
generator rebuilds afterwards; they are recorded in the run manifest.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("current-only", false, "rebuild only the current archive page (default)")
	runCmd.Flags().Bool("all-pages", false, "rebuild every archive page")
	runCmd.Flags().BoolP("verbose", "v", false, "log at debug level")
	runCmd.Flags().Bool("test-mode", false, "process a single paper and never publish")
	runCmd.Flags().StringSlice("set", nil, "run only the named search sets")
	runCmd.MarkFlagsMutuallyExclusive("current-only", "all-pages")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode := manifest.ModeCurrentOnly
	if all, _ := cmd.Flags().GetBool("all-pages"); all {
		mode = manifest.ModeAllPages
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	testMode, _ := cmd.Flags().GetBool("test-mode")
	testMode = testMode || cfg.Execution.TestMode

	only, _ := cmd.Flags().GetStringSlice("set")
	sets, err := selectSets(cfg.SearchSets, only)
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Logging, os.Stderr)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	store, err := manifest.Open(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("opening manifest store: %w", err)
	}
	defer store.Close()

	p, err := buildPipeline(ctx, cfg, sets, testMode, l, log, metrics)
	if err != nil {
		return err
	}

	adapter := search.NewAdapter(search.NewArxivBackend(cfg.Source), cfg.Source, log)
	coord := coordinator.New(adapter, p, l, store, coordinator.Options{
		Mode:            mode,
		TestMode:        testMode,
		WaitBetweenSets: cfg.Execution.WaitBetweenSets,
		CandidateDelay:  cfg.Execution.CandidateDelay,
		MaxPostsPerSet:  cfg.Publish.MaxPostsPerSet,
	}, log, metrics)

	m, err := coord.Execute(ctx, sets)
	if m != nil {
		if rerr := report.New(os.Stdout, !color.NoColor).Run(m); rerr != nil {
			log.Warn().Err(rerr).Msg("printing summary")
		}
		if perr := metrics.Push(context.WithoutCancel(ctx), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, m.RunID); perr != nil {
			log.Warn().Err(perr).Msg("pushing metrics")
		}
	}
	if err != nil {
		return err
	}

	if down := m.Unreachable(); len(down) > 0 {
		return fmt.Errorf("source unreachable for search set(s): %s", strings.Join(down, ", "))
	}
	return nil
}

// selectSets keeps the sets named in only, in config order.
func selectSets(all []types.SearchSet, only []string) ([]types.SearchSet, error) {
	if len(only) == 0 {
		return all, nil
	}
	var out []types.SearchSet
	for _, s := range all {
		if slices.Contains(only, s.Name) {
			out = append(out, s)
		}
	}
	for _, name := range only {
		if !slices.ContainsFunc(out, func(s types.SearchSet) bool { return s.Name == name }) {
			return nil, fmt.Errorf("unknown search set %q", name)
		}
	}
	return out, nil
}

func buildPipeline(ctx context.Context, cfg *types.Config, sets []types.SearchSet, testMode bool, l *ledger.Ledger, log zerolog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	extractor, err := convert.New(ctx, cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("text extraction: %w", err)
	}
	summarizer, err := summarize.New(cfg.Summarize)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}

	var publisher publish.Publisher
	needsPublisher := !testMode && slices.ContainsFunc(sets, func(s types.SearchSet) bool { return s.PublishEnabled })
	if needsPublisher {
		x, err := publish.NewXBackend(cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("publisher: %w (set publish_enabled: false or provide .secrets/x-access-token)", err)
		}
		publisher = x
	}

	pcfg, err := pipeline.ConfigFrom(*cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Deps{
		Fetcher:    acquire.NewDownloader(cfg.Download),
		Papers:     acquire.NewStore(cfg.Download.PapersDir),
		Extractor:  extractor,
		Summarizer: summarizer,
		Publisher:  publisher,
		Ledger:     l,
		Logger:     log,
		Metrics:    metrics,
	}, pcfg), nil
}
