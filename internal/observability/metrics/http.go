package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal         *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	prefilterCandidates *prometheus.HistogramVec
	outcomeTotal        *prometheus.CounterVec
	registrationTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pcm",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcm",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total hybrid searches by ranking path.",
		},
		[]string{"service", "ai_used"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcm",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Hybrid search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	prefilterCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcm",
			Subsystem: "search",
			Name:      "prefilter_candidates",
			Help:      "Distribution of candidates produced by the pre-filter.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 20, 40},
		},
		[]string{"service"},
	)
	outcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcm",
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Total completed analyses by required action.",
		},
		[]string{"service", "action"},
	)
	registrationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcm",
			Subsystem: "analysis",
			Name:      "registrations_total",
			Help:      "Total automatic product registrations by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		prefilterCandidates,
		outcomeTotal,
		registrationTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchTotal:         searchTotal,
		searchDuration:      searchDuration,
		prefilterCandidates: prefilterCandidates,
		outcomeTotal:        outcomeTotal,
		registrationTotal:   registrationTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
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
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/outcomes/"):
		return "/v1/outcomes/{outcome_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service string, aiUsed bool, candidates int, duration time.Duration) {
	m.searchTotal.WithLabelValues(service, strconv.FormatBool(aiUsed)).Inc()
	m.searchDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.prefilterCandidates.WithLabelValues(service).Observe(float64(candidates))
}

func (m *HTTPServerMetrics) RecordOutcome(service, action string) {
	if action == "" {
		action = "unknown"
	}
	m.outcomeTotal.WithLabelValues(service, action).Inc()
}

func (m *HTTPServerMetrics) RecordRegistration(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.registrationTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
