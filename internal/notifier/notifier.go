package notifier

import (
	"context"

	"github.com/aleister1102/driftwatch/internal/models"
)

// Notifier delivers a newly raised alert to operators and returns a delivery id.
type Notifier interface {
	Notify(ctx context.Context, alert *models.ContentAlert) (string, error)
}

// Nop is used when notifications are disabled.
type Nop struct{}

func (Nop) Notify(context.Context, *models.ContentAlert) (string, error) {
	return "", nil
}
