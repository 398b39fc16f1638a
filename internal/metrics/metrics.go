// Package metrics defines the Prometheus collectors for the mutation pipeline.
// Every method is safe to call on a nil *Metrics, so components can run without
// instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moxie"

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// Metrics holds all collectors
type Metrics struct {
	// Mutations counts content mutations. Labels: kind, outcome
	Mutations *prometheus.CounterVec

	// LikeToggles counts settled like intents. Labels: outcome
	LikeToggles *prometheus.CounterVec

	// Rollbacks counts optimistic rollbacks applied to a view store
	Rollbacks prometheus.Counter

	// ViewLoads counts view reads. Labels: kind, result (hit, miss, error)
	ViewLoads *prometheus.CounterVec

	// Invalidations counts invalidated view contexts. Labels: kind
	Invalidations *prometheus.CounterVec

	// MediaBytes observes stored payload sizes
	MediaBytes prometheus.Histogram

	// HTTPRequests counts handled requests. Labels: route, status
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes request latency. Labels: route
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "mutations_total",
			Help:      "Content mutations by kind and outcome",
		}, []string{"kind", "outcome"}),

		LikeToggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "likes",
			Name:      "toggles_total",
			Help:      "Settled like toggles by outcome",
		}, []string{"outcome"}),

		Rollbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "likes",
			Name:      "rollbacks_total",
			Help:      "Optimistic like rollbacks",
		}),

		ViewLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "reads_total",
			Help:      "View reads by context kind and result",
		}, []string{"kind", "result"}),

		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "invalidations_total",
			Help:      "Invalidated view contexts by kind",
		}, []string{"kind"}),

		MediaBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "payload_bytes",
			Help:      "Size of stored media payloads",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveMutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveLikeToggle(outcome string) {
	if m == nil {
		return
	}
	m.LikeToggles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) ObserveViewRead(kind, result string) {
	if m == nil {
		return
	}
	m.ViewLoads.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveInvalidation(kind string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveMediaBytes(n int) {
	if m == nil {
		return
	}
	m.MediaBytes.Observe(float64(n))
}

func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
