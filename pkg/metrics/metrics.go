// Package metrics exposes Prometheus instruments for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orixis"

// Import outcome labels
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the collectors on a private registry so tests can create
// as many instances as they need.
type Metrics struct {
	registry        *prometheus.Registry
	importsTotal    *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	rowsDropped     *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	retentionPurged prometheus.Counter
}

// New registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		importsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Statement imports by detected format and outcome.",
		}, []string{"format", "status"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Normalized statement rows by detected format.",
		}, []string{"format"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_dropped_total",
			Help:      "Statement rows that could not be normalized.",
		}, []string{"format"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Time spent importing one statement file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		retentionPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_purged_total",
			Help:      "Archived imports removed by the retention job.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.importsTotal,
		m.rowsTotal,
		m.rowsDropped,
		m.importDuration,
		m.httpRequests,
		m.retentionPurged,
	)
	return m
}

// ObserveImport records one finished import. kind is "text" or "spreadsheet".
func (m *Metrics) ObserveImport(format, kind string, rows, dropped int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.importsTotal.WithLabelValues(format, status).Inc()
	m.importDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err == nil {
		m.rowsTotal.WithLabelValues(format).Add(float64(rows))
		m.rowsDropped.WithLabelValues(format).Add(float64(dropped))
	}
}

// ObserveRequest counts one HTTP response
func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// AddPurged counts imports removed by retention
func (m *Metrics) AddPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionPurged.Add(float64(n))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
