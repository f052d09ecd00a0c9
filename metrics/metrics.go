// Package metrics exposes Prometheus instrumentation for the platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApplyDeltaDuration tracks the latency of balance-changing operations.
	ApplyDeltaDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "adboost_apply_delta_duration_seconds",
			Help: "Duration of ledger ApplyDelta calls in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
			},
		},
		[]string{"tx_type", "status"}, // status: applied, rejected, conflict, error
	)

	// CASRetries counts compare-and-swap retries inside ApplyDelta.
	CASRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adboost_ledger_cas_retries_total",
		Help: "Number of balance CAS retries",
	})

	// HTTPDuration tracks request latency per route and status code.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adboost_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ClicksThrottled counts click simulations rejected by the rate limiter.
	ClicksThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adboost_clicks_throttled_total",
		Help: "Number of ad click requests rejected by the rate limiter",
	})
)

// RecordApplyDelta records the outcome and duration of an ApplyDelta call.
func RecordApplyDelta(txType, status string, seconds float64) {
	ApplyDeltaDuration.WithLabelValues(txType, status).Observe(seconds)
}
