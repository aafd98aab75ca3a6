// Package metrics exposes prometheus instruments for store operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	swept      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buddy_store_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buddy_store_operation_duration_seconds",
				Help:    "Duration of store operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buddy_orphan_sessions_swept_total",
			Help: "Total number of sessions removed because nobody was joined",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.duration,
		m.swept,
		collectors.NewGoCollector(),
	)

	return m
}

// Observe records one operation. Use with defer:
//
//	defer func() { m.Observe("send_message", start, err) }()
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddSwept counts sessions removed by the orphan sweep.
func (m *Metrics) AddSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// TrackSubscriptions exports the live subscription count reported by count.
func (m *Metrics) TrackSubscriptions(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "buddy_subscriptions_active",
			Help: "Number of live query subscriptions",
		},
		func() float64 { return float64(count()) },
	))
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
