package metrics

import (
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSweepMetrics(registry)
	require.NoError(t, err)

	m.ObserveMonitor(models.MonitorOutcome{Status: models.MonitorStatusChange, ChangeCreated: true, ReviewOpened: true, Suppressed: 1}, 200*time.Millisecond)
	m.ObserveMonitor(models.MonitorOutcome{Status: models.MonitorStatusFailure, FailureRecorded: true}, time.Second)
	m.ObserveMonitor(models.MonitorOutcome{Status: models.MonitorStatusPending, PersistenceError: true}, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MonitorsTotal.WithLabelValues("CHANGE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MonitorsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordsTotal.WithLabelValues("review")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecordsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SuppressedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistenceErrors))

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.ObserveSweep(models.SweepReport{Session: 7, StartedAt: start, FinishedAt: start.Add(time.Minute)})
	m.ObserveSweep(models.SweepReport{Session: 8, Aborted: true, StartedAt: start, FinishedAt: start.Add(time.Second)})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepsTotal.WithLabelValues("aborted")))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.LastSweepSession))
	assert.Equal(t, float64(start.Add(time.Second).Unix()), testutil.ToFloat64(m.LastSweepTime))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewSweepMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewSweepMetrics(registry)
	require.NoError(t, err)

	_, err = NewSweepMetrics(registry)
	assert.Error(t, err)
}
