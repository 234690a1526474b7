// Package metrics provides Prometheus instrumentation for the workspace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStopped = "stopped"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visra_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// MessagesTotal counts messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visra_messages_total",
			Help: "Total messages appended, by role",
		},
		[]string{"role"},
	)

	// GenerationsTotal counts generations by provider and outcome.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visra_generations_total",
			Help: "Total generation requests, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// GenerationDuration tracks how long the external model call took.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visra_generation_duration_seconds",
			Help:    "External generation call duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"provider"},
	)

	// SessionsActive is the number of sessions in the directory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visra_sessions",
			Help: "Number of chat sessions in the directory",
		},
	)

	// PersistFailuresTotal counts failed writes to the persistent store.
	PersistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visra_persist_failures_total",
			Help: "Failed persistent store writes, by key",
		},
		[]string{"key"},
	)

	// EventClients tracks connected WebSocket event subscribers.
	EventClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visra_event_clients",
			Help: "Connected WebSocket event subscribers",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
}

// RecordGeneration records the outcome and latency of one model call.
func RecordGeneration(provider, outcome string, seconds float64) {
	GenerationsTotal.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeStopped {
		GenerationDuration.WithLabelValues(provider).Observe(seconds)
	}
}
