// Package session issues the correlation ids that tag every record written
// during one sweep.
package session

import (
	"context"
	"sync/atomic"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/models"
)

// Source reports the highest session id already persisted.
type Source interface {
	MaxSessionID(ctx context.Context) (models.SessionID, error)
}

// Correlator hands out strictly increasing session ids. It is safe for
// concurrent use.
type Correlator struct {
	last atomic.Int64
}

// NewCorrelator creates a correlator starting after start.
func NewCorrelator(start models.SessionID) *Correlator {
	c := &Correlator{}
	c.last.Store(int64(start))
	return c
}

// Seed raises the counter to the highest id found in storage so that ids are
// never reused across restarts. It never lowers the counter.
func (c *Correlator) Seed(ctx context.Context, src Source) error {
	stored, err := src.MaxSessionID(ctx)
	if err != nil {
		return common.WrapError(err, "seed session correlator")
	}
	c.Observe(stored)
	return nil
}

// Observe raises the counter to at least id.
func (c *Correlator) Observe(id models.SessionID) {
	for {
		cur := c.last.Load()
		if int64(id) <= cur || c.last.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}

// Next allocates a new session id.
func (c *Correlator) Next() models.SessionID {
	return models.SessionID(c.last.Add(1))
}

// Current returns the most recently issued id, or the seed if none was issued.
func (c *Correlator) Current() models.SessionID {
	return models.SessionID(c.last.Load())
}
