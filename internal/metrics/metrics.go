// Package metrics holds the prometheus instrumentation of a pipeline run.
// Each run owns its registry; nothing is registered globally.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes for the records_total counter.
const (
	OutcomeKept    = "kept"
	OutcomeDropped = "dropped"
)

// Metrics groups the collectors of one run.
type Metrics struct {
	Registry        *prometheus.Registry
	Records         *prometheus.CounterVec
	WindowsEmitted  *prometheus.CounterVec
	FeatureFailures *prometheus.CounterVec
	AlertsTriggered prometheus.Counter
	StageDuration   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddospectra",
			Name:      "records_total",
			Help:      "Packet rows seen by the normalizer, by source and outcome.",
		}, []string{"source", "outcome"}),
		WindowsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddospectra",
			Name:      "windows_emitted_total",
			Help:      "Aggregate windows emitted per source, empty windows included.",
		}, []string{"source"}),
		FeatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ddospectra",
			Name:      "feature_failures_total",
			Help:      "Signal features that could not be computed.",
		}, []string{"feature"}),
		AlertsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ddospectra",
			Name:      "alerts_triggered_total",
			Help:      "Alert rules that fired.",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ddospectra",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

// ObserveStage records the time elapsed since start for a stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
