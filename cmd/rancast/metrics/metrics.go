// Package metrics provides Prometheus metrics instrumentation for the pipeline.
//
// rancast is a batch tool, so instead of serving a scrape endpoint the metrics
// are written once at the end of the run to a textfile. The file is compatible
// with the node_exporter textfile collector, which is how batch jobs usually
// surface Prometheus metrics.
//
// Metrics exposed:
//   - rancast_stage_duration_seconds: Histogram of pipeline stage duration
//   - rancast_rows_total: Counter of rows by stage and outcome
//   - rancast_selected_cell: Gauge carrying the evaluated cell identifier
//   - rancast_accuracy: Gauge of the final uniform-average R² score
//   - rancast_errors_total: Counter of errors by stage and reason
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one pipeline run.
type Metrics struct {
	registry *prometheus.Registry

	StageDurationSeconds *prometheus.HistogramVec
	RowsTotal            *prometheus.CounterVec
	SelectedCell         prometheus.Gauge
	Accuracy             prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates all metrics on a private registry so repeated in-process runs
// (tests in particular) never collide on registration.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		StageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rancast_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		RowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rancast_rows_total",
			Help: "Rows processed by stage and outcome",
		}, []string{"stage", "outcome"}),

		SelectedCell: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rancast_selected_cell",
			Help: "Identifier of the cell chosen for evaluation",
		}),

		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rancast_accuracy",
			Help: "Uniform average of the per-target R2 scores on the held-out rows",
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rancast_errors_total",
			Help: "Total number of errors by stage and reason",
		}, []string{"stage", "reason"}),
	}
}

// RecordStage records the time spent in one pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordRows counts rows flowing through (or dropped by) a stage.
func (m *Metrics) RecordRows(stage, outcome string, n int) {
	m.RowsTotal.WithLabelValues(stage, outcome).Add(float64(n))
}

// RecordError counts an error by stage and reason.
func (m *Metrics) RecordError(stage, reason string) {
	m.ErrorsTotal.WithLabelValues(stage, reason).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// An empty path disables the write.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
