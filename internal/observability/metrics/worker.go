package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics holds the history worker registry.
type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsConsumed *prometheus.CounterVec
	eventsFailed   *prometheus.CounterVec
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsConsumed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "worker",
			Name:      "events_consumed_total",
			Help:      "Total question answered events consumed.",
		},
		[]string{"service"},
	)
	eventsFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "worker",
			Name:      "events_failed_total",
			Help:      "Total events that failed to persist.",
		},
		[]string{"service"},
	)

	registry.MustRegister(eventsConsumed, eventsFailed)

	return &WorkerMetrics{
		registry:       registry,
		eventsConsumed: eventsConsumed,
		eventsFailed:   eventsFailed,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) RecordEvent(service string, failed bool) {
	m.eventsConsumed.WithLabelValues(service).Inc()
	if failed {
		m.eventsFailed.WithLabelValues(service).Inc()
	}
}
