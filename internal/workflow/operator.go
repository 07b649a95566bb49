package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/dedup"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/monitor"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/rs/zerolog"
)

// ErrRecordClosed is returned when an operator acts on a record whose status
// no longer allows it.
var ErrRecordClosed = errors.New("record is not open for this action")

// Operator applies human decisions on reviews, alerts and failures and moves
// the owning monitor accordingly.
type Operator struct {
	store    *store.Store
	gate     *dedup.Gate
	notifier Notifier
	now      func() time.Time
	actor    string
	logger   zerolog.Logger
}

// NewOperator creates a new Operator. deps.Fetcher and deps.Sessions are not used.
func NewOperator(cfg config.SweepConfig, deps Deps, logger zerolog.Logger) (*Operator, error) {
	if deps.Store == nil {
		return nil, common.NewError("operator requires a store")
	}
	o := &Operator{
		store:    deps.Store,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		now:      deps.Now,
		actor:    cfg.Actor,
		logger:   logger.With().Str("component", "Operator").Logger(),
	}
	if o.gate == nil {
		o.gate = dedup.NewGate(logger)
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.actor == "" {
		o.actor = config.DefaultSweepActor
	}
	return o, nil
}

// ReviewDecision is the operator's verdict on a review.
type ReviewDecision struct {
	Substantive bool
	Notes       string
	Actor       string
}

// ReviewOutcome is the committed effect of ResolveReview.
type ReviewOutcome struct {
	Review  *models.ContentReview
	Monitor *models.ContentMonitor
	// Alert is the alert raised by a substantive review. It is nil when the
	// review was rejected or an equivalent alert was already open.
	Alert *models.ContentAlert
}

func (o *Operator) actorOr(actor string) string {
	if actor != "" {
		return actor
	}
	return o.actor
}

// locked runs fn in one transaction under the admission lock of orgCode.
func (o *Operator) locked(ctx context.Context, orgCode string, fn func(tx *store.Tx) error) error {
	return o.gate.Do(orgCode, func() error {
		return o.store.WithTx(ctx, func(tx *store.Tx) error {
			if err := tx.LockOrg(ctx, orgCode); err != nil {
				return err
			}
			return fn(tx)
		})
	})
}

// moveMonitor applies an operator event to the monitor owning a record. The
// record must already carry its new status so open work excludes it.
func moveMonitor(ctx context.Context, tx *store.Tx, monitorID int64, event monitor.Event, now time.Time) (*models.ContentMonitor, monitor.Plan, error) {
	m, err := tx.Monitors().GetByID(ctx, monitorID)
	if err != nil {
		return nil, monitor.Plan{}, err
	}
	open, err := openWorkOf(ctx, tx, monitorID)
	if err != nil {
		return nil, monitor.Plan{}, err
	}
	plan, err := monitor.Resolve(m, event, open)
	if err != nil {
		return nil, monitor.Plan{}, err
	}
	if err := monitor.Apply(m, plan, now); err != nil {
		return nil, monitor.Plan{}, err
	}
	if plan.From != plan.To {
		if err := tx.Monitors().Update(ctx, m); err != nil {
			return nil, monitor.Plan{}, err
		}
	}
	return m, plan, nil
}

// StartReview marks a NEW review as being worked on.
func (o *Operator) StartReview(ctx context.Context, reviewID int64, actor string) (*models.ContentReview, error) {
	review, err := o.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	err = o.locked(ctx, review.OrgCode, func(tx *store.Tx) error {
		r, err := tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if r.Status != models.ReviewStatusNew {
			return fmt.Errorf("%w: review %d is %s", ErrRecordClosed, r.ID, r.Status)
		}
		r.Status = models.ReviewStatusInProgress
		r.Attributes = withAssignee(r.Attributes, o.actorOr(actor))
		if err := tx.Reviews().Update(ctx, r); err != nil {
			return err
		}
		review = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info().Int64("review_id", reviewID).Str("actor", o.actorOr(actor)).Msg("Review started")
	return review, nil
}

// ResolveReview confirms or rejects an open review. A substantive review
// raises an alert tagged with the review's session; a rejected one re-arms the
// monitor when nothing else is open.
func (o *Operator) ResolveReview(ctx context.Context, reviewID int64, decision ReviewDecision) (ReviewOutcome, error) {
	review, err := o.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return ReviewOutcome{}, err
	}

	var out ReviewOutcome
	err = o.locked(ctx, review.OrgCode, func(tx *store.Tx) error {
		out = ReviewOutcome{}
		now := o.now().UTC()

		r, err := tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if !r.Status.IsOpen() {
			return fmt.Errorf("%w: review %d is %s", ErrRecordClosed, r.ID, r.Status)
		}

		r.Substantive = decision.Substantive
		r.Notes = decision.Notes
		r.ResolvedBy = o.actorOr(decision.Actor)
		r.ResolvedAt = &now
		event := monitor.EventReviewRejected
		r.Status = models.ReviewStatusRejected
		if decision.Substantive {
			event = monitor.EventReviewConfirmed
			r.Status = models.ReviewStatusConfirmed
		}
		if err := tx.Reviews().Update(ctx, r); err != nil {
			return err
		}

		m, plan, err := moveMonitor(ctx, tx, r.MonitorID, event, now)
		if err != nil {
			return err
		}

		if plan.Alert {
			attrs := r.Attributes.Clone()
			attrs[models.AttrTrigger] = plan.AlertTrigger
			attrs[models.AttrReviewID] = formatID(r.ID)
			attrs[models.AttrChangeID] = formatID(r.ChangeID)
			alert := &models.ContentAlert{
				WorkflowRecord: models.WorkflowRecord{
					RecordKey:   models.ReviewAlertRecordKey(r.ID),
					MonitorID:   r.MonitorID,
					OrgCode:     r.OrgCode,
					ContentType: r.ContentType,
					Reason:      r.Reason,
					SessionID:   r.SessionID,
					Attributes:  attrs,
					CreatedBy:   o.actorOr(decision.Actor),
				},
				ChangeID:  r.ChangeID,
				Status:    models.AlertStatusNew,
				StartedAt: now,
			}
			verdict, err := admitAlert(ctx, tx, alert)
			if err != nil {
				return err
			}
			if verdict.Admitted() {
				out.Alert = alert
			}
		}

		out.Review = r
		out.Monitor = m
		return nil
	})
	if err != nil {
		return ReviewOutcome{}, err
	}

	log := o.logger.With().Int64("review_id", reviewID).Int64("monitor_id", out.Monitor.ID).Logger()
	log.Info().Str("status", string(out.Review.Status)).Str("monitor_status", string(out.Monitor.Status)).Msg("Review resolved")
	if out.Alert != nil && out.Monitor.AlertingEnabled {
		deliverAlerts(context.WithoutCancel(ctx), o.store, o.notifier, []*models.ContentAlert{out.Alert}, log)
	}
	return out, nil
}

// AcknowledgeAlert records that an operator has seen a NEW alert. The monitor
// does not move.
func (o *Operator) AcknowledgeAlert(ctx context.Context, alertID int64, actor string) (*models.ContentAlert, error) {
	alert, err := o.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	err = o.locked(ctx, alert.OrgCode, func(tx *store.Tx) error {
		a, err := tx.Alerts().GetByID(ctx, alertID)
		if err != nil {
			return err
		}
		if a.Status != models.AlertStatusNew {
			return fmt.Errorf("%w: alert %d is %s", ErrRecordClosed, a.ID, a.Status)
		}
		now := o.now().UTC()
		a.Status = models.AlertStatusAcknowledged
		a.AcknowledgedAt = &now
		a.Attributes = withResolver(a.Attributes, o.actorOr(actor))
		if err := tx.Alerts().Update(ctx, a); err != nil {
			return err
		}
		alert = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info().Int64("alert_id", alertID).Msg("Alert acknowledged")
	return alert, nil
}

// ResolveAlert closes a NEW or ACKNOWLEDGED alert. The monitor completes when
// no other alert is open.
func (o *Operator) ResolveAlert(ctx context.Context, alertID int64, actor string) (*models.ContentAlert, *models.ContentMonitor, error) {
	alert, err := o.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, nil, err
	}

	var m *models.ContentMonitor
	err = o.locked(ctx, alert.OrgCode, func(tx *store.Tx) error {
		a, err := tx.Alerts().GetByID(ctx, alertID)
		if err != nil {
			return err
		}
		if a.Status == models.AlertStatusResolved {
			return fmt.Errorf("%w: alert %d is %s", ErrRecordClosed, a.ID, a.Status)
		}
		now := o.now().UTC()
		a.Status = models.AlertStatusResolved
		a.ResolvedAt = &now
		a.Attributes = withResolver(a.Attributes, o.actorOr(actor))
		if err := tx.Alerts().Update(ctx, a); err != nil {
			return err
		}

		moved, _, err := moveMonitor(ctx, tx, a.MonitorID, monitor.EventAlertResolved, now)
		if err != nil {
			return err
		}
		alert, m = a, moved
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	o.logger.Info().Int64("alert_id", alertID).Str("monitor_status", string(m.Status)).Msg("Alert resolved")
	return alert, m, nil
}

// ResolveFailure marks a failure as reviewed. The monitor completes once no
// failure of it is left open.
func (o *Operator) ResolveFailure(ctx context.Context, failureID int64, substantive bool, actor string) (*models.ContentFailure, *models.ContentMonitor, error) {
	failure, err := o.store.Failures().GetByID(ctx, failureID)
	if err != nil {
		return nil, nil, err
	}

	var m *models.ContentMonitor
	err = o.locked(ctx, failure.OrgCode, func(tx *store.Tx) error {
		f, err := tx.Failures().GetByID(ctx, failureID)
		if err != nil {
			return err
		}
		if !f.Status.IsOpen() {
			return fmt.Errorf("%w: failure %d is %s", ErrRecordClosed, f.ID, f.Status)
		}
		now := o.now().UTC()
		f.Status = models.FailureStatusResolved
		f.Substantive = substantive
		f.ReviewedAt = &now
		f.Attributes = withResolver(f.Attributes, o.actorOr(actor))
		if err := tx.Failures().Update(ctx, f); err != nil {
			return err
		}

		moved, _, err := moveMonitor(ctx, tx, f.MonitorID, monitor.EventFailureResolved, now)
		if err != nil {
			return err
		}
		failure, m = f, moved
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	o.logger.Info().Int64("failure_id", failureID).Str("monitor_status", string(m.Status)).Msg("Failure resolved")
	return failure, m, nil
}

func withAssignee(attrs models.Attributes, actor string) models.Attributes {
	out := attrs.Clone()
	out[models.AttrAssignee] = actor
	return out
}

func withResolver(attrs models.Attributes, actor string) models.Attributes {
	out := attrs.Clone()
	out[models.AttrResolvedBy] = actor
	return out
}
