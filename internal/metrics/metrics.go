// Package metrics defines the Prometheus instruments exported by the
// scheduler and its collaborators.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawld_fetch_attempts_total",
			Help: "HTTP fetch attempts, labeled by outcome (success, transient, client_error, policy).",
		},
		[]string{"outcome"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawld_fetch_bytes_total",
			Help: "Bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	taskOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawld_task_outcomes_total",
			Help: "Task transitions, labeled by outcome (completed, retried, failed).",
		},
		[]string{"outcome"},
	)

	frontierDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawld_frontier_depth",
			Help: "URLs currently queued in the frontier.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawld_rate_limit_delay_seconds",
			Help:    "Delay introduced by the per-domain rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	robotsCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawld_robots_cache_total",
			Help: "Robots cache lookups, labeled by result (hit, miss, expired, failopen).",
		},
		[]string{"result"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawld_http_request_duration_seconds",
			Help:    "API request latencies, labeled by method, route and status.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"method", "route", "status"},
	)

	eventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawld_events_dropped_total",
			Help: "Lifecycle events dropped because the hub buffer was full.",
		},
	)
)

// ObserveFetchAttempt counts one fetch attempt with its classified outcome.
func ObserveFetchAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchBytes accumulates the response size for a site.
func ObserveFetchBytes(site string, n int) {
	if n > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(n))
	}
}

// ObserveTaskOutcome counts a task transition outcome.
func ObserveTaskOutcome(outcome string) {
	taskOutcomesTotal.WithLabelValues(outcome).Inc()
}

// SetFrontierDepth records the current frontier size.
func SetFrontierDepth(n int) {
	frontierDepth.Set(float64(n))
}

// ObserveRateLimitDelay records time a caller spent waiting on a domain token.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// ObserveRobotsCache counts a robots cache lookup result.
func ObserveRobotsCache(result string) {
	robotsCacheTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records an API request latency with its response status.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveEventDropped counts one lifecycle event lost to backpressure.
func ObserveEventDropped() {
	eventsDroppedTotal.Inc()
}
