// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every metric name.
const Namespace = "paper_digest"

// Metrics holds the counters and histograms for one run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CandidatesDiscovered counts candidates yielded by the source, by set.
	CandidatesDiscovered *prometheus.CounterVec

	// CandidatesSkipped counts candidates not sent through the pipeline, by
	// set and reason (duplicate, failed_earlier, limit).
	CandidatesSkipped *prometheus.CounterVec

	// CandidatesSucceeded counts recorded candidates, by set and outcome.
	CandidatesSucceeded *prometheus.CounterVec

	// CandidatesFailed counts failed candidates, by set and stage.
	CandidatesFailed *prometheus.CounterVec

	// StageDuration observes time spent per pipeline stage.
	StageDuration *prometheus.HistogramVec

	// LedgerWrites counts ledger writes by result (ok, duplicate, error).
	LedgerWrites *prometheus.CounterVec

	// SourceQueryFailures counts source errors that ended a set.
	SourceQueryFailures *prometheus.CounterVec

	// PublishFailures counts failed posts by error kind.
	PublishFailures *prometheus.CounterVec

	// LastSuccess is the unix time of the last completed run.
	LastSuccess prometheus.Gauge
}

// NewMetrics registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		CandidatesDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "candidates_discovered_total",
			Help:      "Candidates yielded by the source",
		}, []string{"search_set"}),
		CandidatesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "candidates_skipped_total",
			Help:      "Candidates not sent through the pipeline",
		}, []string{"search_set", "reason"}),
		CandidatesSucceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "candidates_succeeded_total",
			Help:      "Candidates recorded in the ledger",
		}, []string{"search_set", "outcome"}),
		CandidatesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "candidates_failed_total",
			Help:      "Candidates that ended in a failed state",
		}, []string{"search_set", "stage"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		LedgerWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ledger_writes_total",
			Help:      "Ledger write attempts by result",
		}, []string{"result"}),
		SourceQueryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_query_failures_total",
			Help:      "Source errors that ended a search set",
		}, []string{"search_set"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "publish_failures_total",
			Help:      "Failed publish attempts by kind",
		}, []string{"kind"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordDiscovered(set string) {
	if m == nil {
		return
	}
	m.CandidatesDiscovered.WithLabelValues(set).Inc()
}

func (m *Metrics) RecordSkipped(set, reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkipped.WithLabelValues(set, reason).Inc()
}

func (m *Metrics) RecordSucceeded(set, outcome string) {
	if m == nil {
		return
	}
	m.CandidatesSucceeded.WithLabelValues(set, outcome).Inc()
}

func (m *Metrics) RecordFailed(set, stage string) {
	if m == nil {
		return
	}
	m.CandidatesFailed.WithLabelValues(set, stage).Inc()
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordLedgerWrite(result string) {
	if m == nil {
		return
	}
	m.LedgerWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSourceFailure(set string) {
	if m == nil {
		return
	}
	m.SourceQueryFailures.WithLabelValues(set).Inc()
}

func (m *Metrics) RecordPublishFailure(kind string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(kind).Inc()
}

// MarkRunFinished sets the last-run gauge.
func (m *Metrics) MarkRunFinished(t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(t.Unix()))
}

// Push sends every metric to a Prometheus Pushgateway under job, grouped by
// run id.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job, runID string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = Namespace
	}
	err := push.New(gatewayURL, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
