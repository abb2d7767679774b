// Package metrics exposes Prometheus instrumentation for the wakeup daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// TriggersTotal counts trigger attempts by source and outcome
	TriggersTotal *prometheus.CounterVec
	// TriggerDuration tracks per-model trigger latency
	TriggerDuration *prometheus.HistogramVec
	// UnusedModelsDetected tracks how many models the last scan found unused
	UnusedModelsDetected prometheus.Gauge
	// ModelRemainingPct tracks remaining quota percentage per model
	ModelRemainingPct *prometheus.GaugeVec
	// CycleDuration tracks full detection-cycle latency
	CycleDuration prometheus.Histogram
	// SnapshotFetchErrors counts failed snapshot fetches
	SnapshotFetchErrors prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TriggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Trigger attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		TriggerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trigger_duration_seconds",
				Help:      "Per-model trigger request latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"model"},
		),
		UnusedModelsDetected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "unused_models_detected",
				Help:      "Models found unused by the last reset scan",
			},
		),
		ModelRemainingPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_remaining_pct",
				Help:      "Remaining quota percentage per model",
			},
			[]string{"model"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Full detection-cycle latency in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		SnapshotFetchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_errors_total",
				Help:      "Failed quota snapshot fetches",
			},
		),
	}

	registry.MustRegister(
		m.TriggersTotal,
		m.TriggerDuration,
		m.UnusedModelsDetected,
		m.ModelRemainingPct,
		m.CycleDuration,
		m.SnapshotFetchErrors,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot records per-model gauges from a snapshot scan.
func (m *Metrics) ObserveSnapshot(remaining map[string]float64, unusedCount int) {
	for model, pct := range remaining {
		m.ModelRemainingPct.WithLabelValues(model).Set(pct)
	}
	m.UnusedModelsDetected.Set(float64(unusedCount))
}
