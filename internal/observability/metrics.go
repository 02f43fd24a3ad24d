// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/pkg/types"
)

const namespace = "litpipe"

// Metrics holds the pipeline's Prometheus collectors. Each instance owns a
// private registry, so several runs in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	// RunsTotal counts finished runs by outcome (ok, cancelled, source_error).
	RunsTotal *prometheus.CounterVec

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration prometheus.Histogram

	// CandidatesTotal counts candidates by source origin (live, cache).
	CandidatesTotal *prometheus.CounterVec

	// DuplicatesMerged counts candidates folded into another record.
	DuplicatesMerged prometheus.Counter

	// ExcludedByRecency counts records dropped by the recency window.
	ExcludedByRecency prometheus.Counter

	// FulltextTotal counts acquisition outcomes by final state and origin
	// (network, store).
	FulltextTotal *prometheus.CounterVec

	// FulltextAttempts observes HTTP attempts spent per record.
	FulltextAttempts prometheus.Histogram

	// FulltextDuration observes acquisition time per record in seconds.
	FulltextDuration prometheus.Histogram

	// SummariesTotal counts summaries by derivation (fulltext, metadata).
	SummariesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		CandidatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates returned by the metadata source",
		}, []string{"origin"}),
		DuplicatesMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_merged_total",
			Help:      "Candidates merged into an earlier record with the same fingerprint",
		}),
		ExcludedByRecency: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excluded_by_recency_total",
			Help:      "Records excluded by the recency window",
		}),
		FulltextTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulltext_total",
			Help:      "Fulltext acquisition outcomes",
		}, []string{"state", "origin"}),
		FulltextAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fulltext_attempts",
			Help:      "HTTP attempts spent acquiring one record",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		FulltextDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fulltext_duration_seconds",
			Help:      "Time spent acquiring one record",
			Buckets:   prometheus.DefBuckets,
		}),
		SummariesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summaries produced by derivation",
		}, []string{"derivation"}),
	}
}

// RecordRank records rank-dedup counters for one run.
func (m *Metrics) RecordRank(origin string, seen, merged, excluded int) {
	m.CandidatesTotal.WithLabelValues(origin).Add(float64(seen))
	m.DuplicatesMerged.Add(float64(merged))
	m.ExcludedByRecency.Add(float64(excluded))
}

// RecordFulltext records one acquisition outcome.
func (m *Metrics) RecordFulltext(out fulltext.Outcome, elapsed time.Duration) {
	origin := "network"
	if out.FromStore {
		origin = "store"
	}
	m.FulltextTotal.WithLabelValues(out.State.String(), origin).Inc()
	m.FulltextAttempts.Observe(float64(out.Attempts))
	m.FulltextDuration.Observe(elapsed.Seconds())
}

// RecordSummary records the derivation of one summary.
func (m *Metrics) RecordSummary(derivation types.TextSource) {
	m.SummariesTotal.WithLabelValues(string(derivation)).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(stats types.RunStats) {
	outcome := "ok"
	switch {
	case stats.SourceError != "":
		outcome = "source_error"
	case stats.Cancelled:
		outcome = "cancelled"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(stats.Duration.Seconds())
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
