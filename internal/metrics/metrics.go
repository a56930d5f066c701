// Package metrics exposes export and change-log counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "citation_export"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	exportsTotal    *prometheus.CounterVec
	exportDuration  *prometheus.HistogramVec
	operationsTotal *prometheus.CounterVec
	skipsTotal      *prometheus.CounterVec
	changesAppended *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		gatherer: g,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Exports by mode and outcome (ok or fallback).",
		}, []string{"mode", "outcome"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent assembling an export.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_applied_total",
			Help:      "Substitutions applied to containers by scope.",
		}, []string{"scope"}),
		skipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Subjects skipped during reconciliation or assembly by kind.",
		}, []string{"kind"}),
		changesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_records_appended_total",
			Help:      "Change records appended to the log by type.",
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.exportsTotal,
		m.exportDuration,
		m.operationsTotal,
		m.skipsTotal,
		m.changesAppended,
		m.httpRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveExport(mode string, fallback bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	m.exportsTotal.WithLabelValues(mode, outcome).Inc()
	m.exportDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) AddApplied(scope string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.operationsTotal.WithLabelValues(scope).Add(float64(n))
}

func (m *Metrics) IncSkip(kind string) {
	if m == nil {
		return
	}
	m.skipsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncChangeAppended(changeType string) {
	if m == nil {
		return
	}
	m.changesAppended.WithLabelValues(changeType).Inc()
}

func (m *Metrics) IncHTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, fmt.Sprint(status)).Inc()
}
