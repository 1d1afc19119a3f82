// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the run logger and the Prometheus metrics a
// batch run pushes when it finishes.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// NewLogger creates a zerolog logger from cfg writing to w (stderr when nil).
// Console and pretty formats use zerolog's human-readable writer.
func NewLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(cfg.Level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRun tags log lines with the run id.
func WithRun(logger zerolog.Logger, runID string, testMode bool) zerolog.Logger {
	return logger.With().Str("run_id", runID).Bool("test_mode", testMode).Logger()
}

// WithSearchSet tags log lines with the search set being processed.
func WithSearchSet(logger zerolog.Logger, set string) zerolog.Logger {
	return logger.With().Str("search_set", set).Logger()
}

// WithCandidate tags log lines with a candidate id.
func WithCandidate(logger zerolog.Logger, id string) zerolog.Logger {
	return logger.With().Str("candidate_id", id).Logger()
}
