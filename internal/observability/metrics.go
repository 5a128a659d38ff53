package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessions_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records store latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confessions_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// InteractionsTotal counts engine operations by kind and outcome
	// (applied, noop, declined, rejected, failed).
	InteractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessions_interactions_total",
		Help: "Total interaction operations by kind and outcome",
	}, []string{"kind", "outcome"})

	// PartialFailures counts multi-step mutations that stopped halfway.
	PartialFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessions_partial_failures_total",
		Help: "Multi-step mutations that left counters stale",
	}, []string{"kind"})

	// FeedCacheResults counts feed cache lookups by result (hit, miss, error).
	FeedCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessions_feed_cache_results_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"})

	// RetentionDeleted counts rows removed by the retention sweeper.
	RetentionDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessions_retention_deleted_total",
		Help: "Rows removed by the retention sweeper",
	}, []string{"table"})
)

// Interaction outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeDeclined = "declined"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// RecordInteraction increments InteractionsTotal.
func RecordInteraction(kind, outcome string) {
	InteractionsTotal.WithLabelValues(kind, outcome).Inc()
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
