// Package metrics holds the Prometheus collectors of the service. They are
// registered on the default registry and exposed by promhttp on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation sources
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_source_requests_total",
			Help: "Source calls made by the mixed engine, by outcome",
		},
		[]string{"source", "outcome"}, // ok, error, timeout, open
	)

	SourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_source_duration_seconds",
			Help:    "Duration of a single source call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommend_source_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Interaction matrix
	MatrixBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_matrix_build_duration_seconds",
			Help:    "Duration of interaction matrix builds (cache misses only)",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatrixEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_matrix_events_skipped_total",
			Help: "Malformed or out-of-universe events skipped while building a matrix",
		},
		[]string{"reason"},
	)

	// Cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_lookups_total",
			Help: "Redis cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // hit, miss, error
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meme_like_toggles_total",
			Help: "Like toggles by resulting action",
		},
		[]string{"action"},
	)

	BatchUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_batch_users_total",
			Help: "Users processed by batch recommendation requests",
		},
		[]string{"status"},
	)
)

// RecordSource records the outcome and duration of one source call.
func RecordSource(source, outcome string, d time.Duration) {
	SourceRequests.WithLabelValues(source, outcome).Inc()
	SourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

func RecordCacheLookup(cache string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
