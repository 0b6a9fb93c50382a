package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records record store latency by operation and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veritas_database_query_latency_seconds",
		Help:    "Record store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ScoringRequests counts scoring pipeline outcomes.
	ScoringRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_scoring_requests_total",
		Help: "Scoring pipeline invocations by outcome",
	}, []string{"outcome"})

	// ScoringLatency records the oracle round-trip time.
	ScoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veritas_scoring_latency_seconds",
		Help:    "Scoring oracle latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	// MediaUploads counts media uploads by kind and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_media_uploads_total",
		Help: "Media uploads by kind and outcome",
	}, []string{"kind", "outcome"})

	// ReactionToggles counts toggle operations by kind and resulting state.
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_reaction_toggles_total",
		Help: "Upvote and flag toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// FeedCacheLookups counts feed cache hits and misses.
	FeedCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_feed_cache_lookups_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
