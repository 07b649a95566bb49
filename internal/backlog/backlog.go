// Package backlog answers what operators currently have to look at: every
// open record plus whatever was created within the retention window.
package backlog

import (
	"context"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/rs/zerolog"
)

// Filter narrows a backlog listing. Zero values mean "any".
type Filter struct {
	OrgCode   string
	MonitorID int64
	Statuses  []string
	Session   models.SessionID
	Limit     int
}

// Item is one backlog entry, independent of its kind.
type Item struct {
	Kind       models.RecordKind
	Record     models.WorkflowRecord
	Status     string
	ChangeID   int64
	Notes      string
	ClosedAt   *time.Time
	DeliveryID string
}

// Engine lists backlog records.
type Engine struct {
	store     *store.Store
	retention time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the clock the retention window is measured from.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new backlog Engine
func NewEngine(st *store.Store, cfg config.SweepConfig, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		retention: cfg.RetentionWindow(),
		now:       time.Now,
		logger:    logger.With().Str("component", "Backlog").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// openStatuses are the statuses that keep a record visible however old it is.
var openStatuses = map[models.RecordKind][]string{
	models.KindReview:  {string(models.ReviewStatusNew), string(models.ReviewStatusInProgress)},
	models.KindAlert:   {string(models.AlertStatusNew)},
	models.KindFailure: {string(models.FailureStatusNew)},
}

// visible is open or created within the retention window.
func (e *Engine) visible(kind models.RecordKind) store.Predicate {
	cutoff := e.now().UTC().Add(-e.retention)
	return store.Or(store.In("status", openStatuses[kind]...), store.Since("created_at", cutoff))
}

func (e *Engine) query(kind models.RecordKind, f Filter) (store.Query, error) {
	if _, ok := openStatuses[kind]; !ok {
		return store.Query{}, common.NewValidationError("kind", kind, "unknown record kind")
	}
	preds := []store.Predicate{e.visible(kind)}
	if f.OrgCode != "" {
		preds = append(preds, store.Eq("org_code", f.OrgCode))
	}
	if f.MonitorID > 0 {
		preds = append(preds, store.Eq("monitor_id", f.MonitorID))
	}
	if f.Session > 0 {
		preds = append(preds, store.Eq("session_id", f.Session))
	}
	if len(f.Statuses) > 0 {
		if err := validateStatuses(kind, f.Statuses); err != nil {
			return store.Query{}, err
		}
		preds = append(preds, store.In("status", f.Statuses...))
	}
	return store.Query{
		Where:   preds,
		OrderBy: []string{"created_at ASC", "id ASC"},
		Limit:   f.Limit,
	}, nil
}

func validateStatuses(kind models.RecordKind, statuses []string) error {
	for _, s := range statuses {
		var err error
		switch kind {
		case models.KindReview:
			_, err = models.ParseReviewStatus(s)
		case models.KindAlert:
			_, err = models.ParseAlertStatus(s)
		case models.KindFailure:
			_, err = models.ParseFailureStatus(s)
		}
		if err != nil {
			return common.WrapError(err, "filter statuses")
		}
	}
	return nil
}

// ListOpen returns the visible records of kind, oldest first.
func (e *Engine) ListOpen(ctx context.Context, kind models.RecordKind, f Filter) ([]Item, error) {
	q, err := e.query(kind, f)
	if err != nil {
		return nil, err
	}

	var items []Item
	switch kind {
	case models.KindReview:
		recs, err := e.store.Reviews().List(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			items = append(items, Item{Kind: kind, Record: r.WorkflowRecord, Status: string(r.Status), ChangeID: r.ChangeID, Notes: r.Notes, ClosedAt: r.ResolvedAt})
		}
	case models.KindAlert:
		recs, err := e.store.Alerts().List(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, a := range recs {
			items = append(items, Item{Kind: kind, Record: a.WorkflowRecord, Status: string(a.Status), ChangeID: a.ChangeID, ClosedAt: a.ResolvedAt, DeliveryID: a.DeliveryID})
		}
	case models.KindFailure:
		recs, err := e.store.Failures().List(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, fl := range recs {
			items = append(items, Item{Kind: kind, Record: fl.WorkflowRecord, Status: string(fl.Status), Notes: fl.Notes, ClosedAt: fl.ReviewedAt})
		}
	}

	e.logger.Debug().Str("kind", string(kind)).Int("count", len(items)).Msg("Backlog listed")
	return items, nil
}

// Summary counts visible records of every kind.
type Summary struct {
	Reviews  KindSummary
	Alerts   KindSummary
	Failures KindSummary
}

// KindSummary splits the visible records of one kind.
type KindSummary struct {
	Open    int
	Visible int
}

// Summarize counts the backlog, optionally for one organisation.
func (e *Engine) Summarize(ctx context.Context, orgCode string) (Summary, error) {
	var sum Summary
	targets := []struct {
		kind models.RecordKind
		dst  *KindSummary
	}{
		{models.KindReview, &sum.Reviews},
		{models.KindAlert, &sum.Alerts},
		{models.KindFailure, &sum.Failures},
	}

	for _, t := range targets {
		q, err := e.query(t.kind, Filter{OrgCode: orgCode})
		if err != nil {
			return sum, err
		}
		if t.dst.Visible, err = e.count(ctx, t.kind, q.Where); err != nil {
			return sum, err
		}
		open := append(q.Where[:len(q.Where):len(q.Where)], store.In("status", openStatuses[t.kind]...))
		if t.dst.Open, err = e.count(ctx, t.kind, open); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (e *Engine) count(ctx context.Context, kind models.RecordKind, preds []store.Predicate) (int, error) {
	switch kind {
	case models.KindReview:
		return e.store.Reviews().Count(ctx, preds...)
	case models.KindAlert:
		return e.store.Alerts().Count(ctx, preds...)
	default:
		return e.store.Failures().Count(ctx, preds...)
	}
}
