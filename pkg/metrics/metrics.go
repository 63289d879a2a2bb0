// Package metrics defines the Prometheus collectors oppy records and exposes
// an HTTP handler for scraping them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for oppy.
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        prometheus.Histogram
	QueryResults         prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	VaultCommandsTotal   *prometheus.CounterVec
	VaultCommandDuration *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry, so tests can build as many Metrics as they like.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppy_queries_total",
				Help: "Total TQL queries by result (match, zero_result, error).",
			},
			[]string{"result"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oppy_query_duration_seconds",
				Help:    "TQL compile and evaluation latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
			},
		),
		QueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oppy_query_results",
				Help:    "Number of items matched per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oppy_cache_hits_total",
				Help: "Item listings served from the cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oppy_cache_misses_total",
				Help: "Item listings fetched from the vault.",
			},
		),
		VaultCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppy_vault_commands_total",
				Help: "op invocations by command and status.",
			},
			[]string{"command", "status"},
		),
		VaultCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppy_vault_command_duration_seconds",
				Help:    "op invocation latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"command"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oppy_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VaultCommandsTotal,
		m.VaultCommandDuration,
		m.CircuitBreakerState,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
