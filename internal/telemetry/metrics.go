// Package telemetry exposes Prometheus metrics for stage runs and sandbox
// executions.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "s4h"

// Config controls metrics collection.
type Config struct {
	Enabled   bool
	Namespace string
}

// Metrics records workbench activity. The zero value and a disabled
// instance are valid no-ops.
type Metrics struct {
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	snippets      *prometheus.CounterVec
	snippetTime   prometheus.Histogram
	datasets      prometheus.Gauge
	dictionaryRow prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a metrics collector with its own registry.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_runs_total",
				Help:      "Total number of stage invocations by outcome",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of stage invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		snippets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snippet_executions_total",
				Help:      "Total number of sandbox snippet executions",
			},
			[]string{"outcome"},
		),
		snippetTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snippet_duration_seconds",
				Help:      "Duration of sandbox snippet executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		datasets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "datasets_loaded",
				Help:      "Current number of datasets in the session",
			},
		),
		dictionaryRow: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dictionary_variables",
				Help:      "Number of variables in the active dictionary",
			},
		),
	}

	registry.MustRegister(
		m.stageRuns,
		m.stageDuration,
		m.snippets,
		m.snippetTime,
		m.datasets,
		m.dictionaryRow,
		collectors.NewGoCollector(),
	)
	return m
}

// Enabled reports whether metrics are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordStage records one stage invocation.
func (m *Metrics) RecordStage(stage, status string, d time.Duration) {
	if !m.Enabled() {
		return
	}
	m.stageRuns.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSnippet records one sandbox execution.
func (m *Metrics) RecordSnippet(failed bool, d time.Duration) {
	if !m.Enabled() {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.snippets.WithLabelValues(outcome).Inc()
	m.snippetTime.Observe(d.Seconds())
}

// SetSession updates the session gauges.
func (m *Metrics) SetSession(datasets, dictionaryRows int) {
	if !m.Enabled() {
		return
	}
	m.datasets.Set(float64(datasets))
	m.dictionaryRow.Set(float64(dictionaryRows))
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.Enabled() {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
