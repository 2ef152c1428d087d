// Package telemetry exposes Prometheus metrics and request tracing for the
// API.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "hms"

// Metrics holds the server's Prometheus collectors. All observer methods are
// safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  prometheus.Gauge
	prescriptions prometheus.Counter
	shortfalls    prometheus.Counter
	idRetries     *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry with
// the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
		prescriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pharmacy",
			Name:      "prescriptions_created_total",
			Help:      "Prescriptions committed",
		}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pharmacy",
			Name:      "stock_shortfalls_total",
			Help:      "Prescription attempts rejected for insufficient stock",
		}),
		idRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seqid",
			Name:      "identifier_retries_total",
			Help:      "Units of work retried after a generated identifier collided",
		}, []string{"scope"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read-model cache lookups by key and result",
		}, []string{"key", "result"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.httpInFlight,
		m.prescriptions, m.shortfalls, m.idRetries, m.cacheLookups,
	)
	return m
}

// Registry returns the registry backing the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) PrescriptionCreated() {
	if m == nil {
		return
	}
	m.prescriptions.Inc()
}

func (m *Metrics) StockShortfall() {
	if m == nil {
		return
	}
	m.shortfalls.Inc()
}

func (m *Metrics) IdentifierRetry(scope string) {
	if m == nil {
		return
	}
	m.idRetries.WithLabelValues(scope).Inc()
}

// CacheLookup satisfies cache.Recorder.
func (m *Metrics) CacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(key, result).Inc()
}
