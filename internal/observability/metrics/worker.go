package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	itemTotal    *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec
	itemInFlight prometheus.Gauge
	queueLag     *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	itemTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pcm",
			Subsystem: "worker",
			Name:      "item_analyses_total",
			Help:      "Total analyzed invoice items by required action.",
		},
		[]string{"service", "action"},
	)
	itemDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcm",
			Subsystem: "worker",
			Name:      "item_analysis_duration_seconds",
			Help:      "Invoice item analysis duration in seconds by action.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "action"},
	)
	itemInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pcm",
			Subsystem: "worker",
			Name:      "item_analyses_in_flight",
			Help:      "Number of invoice items currently being analyzed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pcm",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between item publication and analysis start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(itemTotal, itemDuration, itemInFlight, queueLag)

	return &WorkerMetrics{
		registry:     registry,
		itemTotal:    itemTotal,
		itemDuration: itemDuration,
		itemInFlight: itemInFlight,
		queueLag:     queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartItem() {
	m.itemInFlight.Inc()
}

func (m *WorkerMetrics) FinishItem(service, action string, duration time.Duration) {
	m.itemInFlight.Dec()

	if action == "" {
		action = "unknown"
	}
	m.itemTotal.WithLabelValues(service, action).Inc()
	m.itemDuration.WithLabelValues(service, action).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
