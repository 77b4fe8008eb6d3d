package remote

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors for outgoing remote requests.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	RateLimitWaitSec   prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsync_remote_requests_total",
			Help: "Total number of requests sent to the remote dataset service.",
		}, []string{"endpoint", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsync_remote_request_duration_seconds",
			Help:    "Remote request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method", "status"}),
		RateLimitWaitSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsync_remote_ratelimit_wait_seconds",
			Help:    "Time spent waiting on the outgoing rate limiter.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.RateLimitWaitSec,
	)

	return m
}
