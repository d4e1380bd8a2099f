// Package metrics provides Prometheus metrics for the PBS authority
// API:
//   - http_request_total: counter with method, path, and status labels
//   - http_request_duration_seconds: histogram with method and path labels
//   - http_request_in_flight: gauge for concurrent requests
//   - rate_limiter_buckets_total: gauge for active rate limiter buckets
//   - pbs_upstream_request_total: counter with endpoint and outcome labels
//   - pbs_upstream_request_duration_seconds: histogram with endpoint label
//
// All metrics are registered with the Prometheus default registry
// during package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen recently)",
		},
	)

	UpstreamRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbs_upstream_request_total",
			Help: "Total requests issued against the PBS catalog",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pbs_upstream_request_duration_seconds",
			Help:    "PBS catalog request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(UpstreamRequestTotals)
	prometheus.MustRegister(UpstreamRequestDuration)
}

// ObserveUpstream records one catalog request. The outcome label is the
// caller's error classification (ok, timeout, unavailable,
// protocol_error) so dashboards can split timeouts from outages.
func ObserveUpstream(endpoint, outcome string, duration time.Duration) {
	UpstreamRequestTotals.WithLabelValues(endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
