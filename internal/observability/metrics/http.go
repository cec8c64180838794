package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the api process registry: HTTP surface counters
// plus question-answering pipeline observations.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	questionsTotal    *prometheus.CounterVec
	questionDuration  *prometheus.HistogramVec
	templateFallback  *prometheus.CounterVec
	insufficientTotal *prometheus.CounterVec
	graphRows         *prometheus.HistogramVec
	retrievedChunks   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rsa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "questions_total",
			Help:      "Total answered questions.",
		},
		[]string{"service"},
	)
	questionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "question_duration_seconds",
			Help:      "End-to-end question answering duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"service"},
	)
	templateFallback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "template_fallback_total",
			Help:      "Total questions answered with a template Cypher query.",
		},
		[]string{"service"},
	)
	insufficientTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "insufficient_context_total",
			Help:      "Total answers degraded to the insufficient-context phrase.",
		},
		[]string{"service"},
	)
	graphRows := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "graph_rows",
			Help:      "Distribution of graph rows per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rsa",
			Subsystem: "qa",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		questionsTotal,
		questionDuration,
		templateFallback,
		insufficientTotal,
		graphRows,
		retrievedChunks,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		questionsTotal:    questionsTotal,
		questionDuration:  questionDuration,
		templateFallback:  templateFallback,
		insufficientTotal: insufficientTotal,
		graphRows:         graphRows,
		retrievedChunks:   retrievedChunks,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordQuestion observes one completed question-answering request.
func (m *HTTPServerMetrics) RecordQuestion(service string, duration time.Duration, insufficient, usedTemplate bool, graphRows, chunks int) {
	m.questionsTotal.WithLabelValues(service).Inc()
	m.questionDuration.WithLabelValues(service).Observe(duration.Seconds())
	if insufficient {
		m.insufficientTotal.WithLabelValues(service).Inc()
	}
	if usedTemplate {
		m.templateFallback.WithLabelValues(service).Inc()
	}
	m.graphRows.WithLabelValues(service).Observe(float64(graphRows))
	m.retrievedChunks.WithLabelValues(service).Observe(float64(chunks))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
