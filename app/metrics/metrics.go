// Package metrics provides Prometheus instruments for the feed pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rssfeeds"

// Refresh results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// RefreshAttempts counts fetch-extract-store cycles by outcome.
	RefreshAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_attempts_total",
			Help:      "Total number of feed refresh attempts",
		},
		[]string{"result"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of feed refresh attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// WorkersActive tracks worker loops currently running.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Number of feed workers with a running loop",
		},
	)

	// WorkersExhausted counts loops that ended after running out of backoff steps.
	WorkersExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_exhausted_total",
			Help:      "Total number of feed workers that gave up after repeated failures",
		},
	)

	PostsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_inserted_total",
			Help:      "Total number of new posts stored",
		},
	)
)

// RecordRefresh records the outcome of one refresh attempt.
func RecordRefresh(success bool, seconds float64, inserted int) {
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	RefreshAttempts.WithLabelValues(result).Inc()
	RefreshDuration.Observe(seconds)
	if inserted > 0 {
		PostsInserted.Add(float64(inserted))
	}
}
