package workflow

import (
	"context"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/store"
)

// Fetcher reads the current snapshot of a monitor's content source. Errors
// should be *common.FetchError; anything else is treated as unreachable.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, m *models.ContentMonitor) ([]byte, error)
}

// Notifier delivers a newly admitted alert and returns its delivery id.
type Notifier interface {
	Notify(ctx context.Context, alert *models.ContentAlert) (string, error)
}

// Metrics receives sweep observations.
type Metrics interface {
	ObserveMonitor(outcome models.MonitorOutcome, elapsed time.Duration)
	ObserveSweep(report models.SweepReport)
}

type nopMetrics struct{}

func (nopMetrics) ObserveMonitor(models.MonitorOutcome, time.Duration) {}
func (nopMetrics) ObserveSweep(models.SweepReport)                     {}

// recordSet is satisfied by both *store.Store and *store.Tx.
type recordSet interface {
	Monitors() *store.Repo[models.ContentMonitor]
	Changes() *store.Repo[models.ContentChange]
	Reviews() *store.Repo[models.ContentReview]
	Alerts() *store.Repo[models.ContentAlert]
	Failures() *store.Repo[models.ContentFailure]
}
