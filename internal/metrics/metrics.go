// Package metrics defines the Prometheus counters and histograms
// spec.md §6.1's Metrics() operation exposes, in the package-level
// var + init-registration style of cuemby-warren's pkg/metrics/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signalpress_jobs_submitted_total",
			Help: "Total number of sync jobs submitted",
		},
	)

	JobsTerminalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalpress_jobs_terminal_total",
			Help: "Total number of sync jobs reaching a terminal state, by status",
		},
		[]string{"status"},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signalpress_job_duration_seconds",
			Help:    "Time from job start to terminal state",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChannelPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalpress_channel_publishes_total",
			Help: "Total per-channel publish results, by channel and result status",
		},
		[]string{"channel", "status"},
	)

	ChannelPublishAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalpress_channel_publish_attempts",
			Help:    "Attempts consumed per channel publish, before a terminal result",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"channel"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalpress_circuit_breaker_state",
			Help: "Circuit breaker state per channel (0=closed, 1=half_open, 2=open)",
		},
		[]string{"channel"},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalpress_dead_letters_total",
			Help: "Total dead-lettered publish failures, by channel",
		},
		[]string{"channel"},
	)

	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalpress_cache_invalidations_total",
			Help: "Total cache entries invalidated, per tier",
		},
		[]string{"tier"},
	)

	JobsRetentionEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signalpress_jobs_retention_evicted_total",
			Help: "Total terminal jobs evicted by retention age policy",
		},
	)
)

func init() {
	prometheus.MustRegister(
		JobsSubmittedTotal,
		JobsTerminalTotal,
		JobDuration,
		ChannelPublishesTotal,
		ChannelPublishAttempts,
		CircuitBreakerState,
		DeadLettersTotal,
		CacheInvalidationsTotal,
		JobsRetentionEvictedTotal,
	)
}

// CircuitStateValue maps a gobreaker-style state name to the gauge
// value CircuitBreakerState expects.
func CircuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open", "half-open":
		return 1
	default:
		return 0
	}
}
