// Package metrics exposes the prometheus collectors the core registers for
// query execution, transaction outcomes, and index maintenance. The core
// never opens its own HTTP listener (owning network I/O is a non-goal); a
// host process mounts Handler() wherever it serves its own metrics surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query execution metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helix_queries_total",
			Help: "Total number of executed queries by query_id and outcome",
		},
		[]string{"query_id", "outcome"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helix_query_duration_seconds",
			Help:    "Query execution duration in seconds by query_id",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_id"},
	)

	CompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_compile_duration_seconds",
			Help:    "Time taken to parse, analyze, and register an HQL source in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transaction metrics
	TxnCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helix_txn_commits_total",
			Help: "Total number of transaction outcomes by kind (read/write) and result (commit/abort)",
		},
		[]string{"kind", "result"},
	)

	// HNSW metrics
	HNSWSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_hnsw_search_duration_seconds",
			Help:    "HNSW k-NN search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	HNSWCandidatesVisited = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_hnsw_candidates_visited",
			Help:    "Number of candidate vertices visited per HNSW search",
			Buckets: prometheus.ExponentialBuckets(8, 2, 10),
		},
	)

	// BM25 metrics
	BM25QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_bm25_query_duration_seconds",
			Help:    "BM25 lexical query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Arena metrics
	ArenaHighWaterBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_arena_high_water_bytes",
			Help:    "Per-query arena high-water mark in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
	)

	ArenaExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helix_arena_exhausted_total",
			Help: "Total number of queries aborted for exceeding their arena budget",
		},
	)

	// Maintenance metrics
	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_compaction_duration_seconds",
			Help:    "Time taken for a compaction cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompactionCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helix_compaction_cycles_total",
			Help: "Total number of compaction cycles by outcome",
		},
		[]string{"outcome"},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helix_schema_reconcile_duration_seconds",
			Help:    "Time taken to apply a schema migration step in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryDuration,
		CompileDuration,
		TxnCommitsTotal,
		HNSWSearchDuration,
		HNSWCandidatesVisited,
		BM25QueryDuration,
		ArenaHighWaterBytes,
		ArenaExhaustedTotal,
		CompactionDuration,
		CompactionCyclesTotal,
		ReconciliationDuration,
	)
}

// Handler returns the Prometheus HTTP handler for a host process to mount.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
