// Package metrics provides Prometheus metrics for monitoring sweeps.
package metrics

import (
	"fmt"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics contains the Prometheus metrics of sweeps and monitor executions.
type SweepMetrics struct {
	SweepsTotal       *prometheus.CounterVec   // Sweeps by result: ok, aborted
	SweepDuration     prometheus.Histogram     // Wall time of a sweep
	LastSweepSession  prometheus.Gauge         // Session id of the latest sweep
	LastSweepTime     prometheus.Gauge         // Unix time the latest sweep finished
	MonitorsTotal     *prometheus.CounterVec   // Monitor executions by resulting status
	MonitorDuration   *prometheus.HistogramVec // Execution time by resulting status
	RecordsTotal      *prometheus.CounterVec   // Records created by kind
	SuppressedTotal   prometheus.Counter       // Candidates suppressed by deduplication
	PersistenceErrors prometheus.Counter       // Monitor units that failed to persist

	registry *prometheus.Registry
}

// NewSweepMetrics creates the sweep metrics and registers them on registry.
func NewSweepMetrics(registry *prometheus.Registry) (*SweepMetrics, error) {
	m := &SweepMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sweep metrics: %w", err)
	}
	return m, nil
}

func (m *SweepMetrics) initMetrics() {
	m.SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_sweeps_total",
			Help: "Total number of sweeps by result",
		},
		[]string{"result"},
	)

	m.SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driftwatch_sweep_duration_seconds",
			Help:    "Time taken by a full sweep",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	m.LastSweepSession = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftwatch_last_sweep_session",
			Help: "Session id of the most recent sweep",
		},
	)

	m.LastSweepTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftwatch_last_sweep_timestamp_seconds",
			Help: "Unix timestamp at which the most recent sweep finished",
		},
	)

	m.MonitorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_monitor_executions_total",
			Help: "Total number of monitor executions by resulting monitor status",
		},
		[]string{"status"},
	)

	m.MonitorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftwatch_monitor_execution_duration_seconds",
			Help:    "Time taken to fetch, compare and persist one monitor",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	m.RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_records_created_total",
			Help: "Total number of workflow records created by kind",
		},
		[]string{"kind"},
	)

	m.SuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_records_suppressed_total",
			Help: "Total number of candidate records suppressed by an open duplicate",
		},
	)

	m.PersistenceErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_persistence_errors_total",
			Help: "Total number of monitor executions that failed to persist",
		},
	)
}

// ObserveMonitor records one monitor execution.
func (m *SweepMetrics) ObserveMonitor(o models.MonitorOutcome, elapsed time.Duration) {
	status := string(o.Status)
	if o.PersistenceError {
		status = "error"
		m.PersistenceErrors.Inc()
	}
	m.MonitorsTotal.WithLabelValues(status).Inc()
	m.MonitorDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	if o.ChangeCreated {
		m.RecordsTotal.WithLabelValues("change").Inc()
	}
	if o.ReviewOpened {
		m.RecordsTotal.WithLabelValues("review").Inc()
	}
	if o.AlertRaised {
		m.RecordsTotal.WithLabelValues("alert").Inc()
	}
	if o.FailureRecorded {
		m.RecordsTotal.WithLabelValues("failure").Inc()
	}
	if o.Suppressed > 0 {
		m.SuppressedTotal.Add(float64(o.Suppressed))
	}
}

// ObserveSweep records a finished sweep.
func (m *SweepMetrics) ObserveSweep(r models.SweepReport) {
	result := "ok"
	if r.Aborted {
		result = "aborted"
	}
	m.SweepsTotal.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(r.Duration().Seconds())
	m.LastSweepSession.Set(float64(r.Session))
	if !r.FinishedAt.IsZero() {
		m.LastSweepTime.Set(float64(r.FinishedAt.Unix()))
	}
}

// Collect implements the prometheus.Collector interface.
func (m *SweepMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SweepsTotal.Collect(ch)
	m.SweepDuration.Collect(ch)
	m.LastSweepSession.Collect(ch)
	m.LastSweepTime.Collect(ch)
	m.MonitorsTotal.Collect(ch)
	m.MonitorDuration.Collect(ch)
	m.RecordsTotal.Collect(ch)
	m.SuppressedTotal.Collect(ch)
	m.PersistenceErrors.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *SweepMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SweepsTotal.Describe(ch)
	m.SweepDuration.Describe(ch)
	m.LastSweepSession.Describe(ch)
	m.LastSweepTime.Describe(ch)
	m.MonitorsTotal.Describe(ch)
	m.MonitorDuration.Describe(ch)
	m.RecordsTotal.Describe(ch)
	m.SuppressedTotal.Describe(ch)
	m.PersistenceErrors.Describe(ch)
}
