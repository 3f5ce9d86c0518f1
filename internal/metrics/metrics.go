// Package metrics exposes inventory state and activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inventory"

// Recorder records inventory activity. A nil Recorder records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	mutations *prometheus.CounterVec
	persists  *prometheus.CounterVec
	items     prometheus.Gauge
	lowStock  prometheus.Gauge

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewRecorder registers the inventory and HTTP metrics with reg. Handler
// serves reg when it is also a Gatherer, the default gatherer otherwise.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Recorder{
		gatherer: gatherer,
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Inventory mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		persists: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_operations_total",
				Help:      "Inventory file loads and saves by result",
			},
			[]string{"operation", "result"},
		),
		items: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "items",
				Help:      "Number of distinct items held",
			},
		),
		lowStock: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "low_stock_items",
				Help:      "Number of items below the configured low-stock threshold",
			},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
	}
}

// Handler serves the registry the recorder was created with.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// RequestStarted marks one HTTP request as in flight.
func (r *Recorder) RequestStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// RequestFinished records a completed HTTP request against its route template.
func (r *Recorder) RequestFinished(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Mutation counts one add or remove call.
func (r *Recorder) Mutation(operation, outcome string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(operation, outcome).Inc()
}

// FileOperation counts one load or save.
func (r *Recorder) FileOperation(operation string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.persists.WithLabelValues(operation, result).Inc()
}

// Snapshot sets the gauges from the current inventory size and low-stock count.
func (r *Recorder) Snapshot(items, lowStock int) {
	if r == nil {
		return
	}
	r.items.Set(float64(items))
	r.lowStock.Set(float64(lowStock))
}
