package workflow

import (
	"context"
	"errors"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/differ"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/monitor"
	"github.com/aleister1102/driftwatch/internal/store"
)

// execution is what a worker learned about one monitor outside the transaction.
type execution struct {
	monitorID int64
	orgCode   string
	snapshot  []byte
	fetchErr  *common.FetchError
}

// unitResult is the committed effect of one monitor's atomic unit. It is
// rebuilt from scratch on every transaction attempt.
type unitResult struct {
	outcome models.MonitorOutcome
	alerts  []*models.ContentAlert
	monitor *models.ContentMonitor
	skipped bool
}

// classify compares the fetched snapshot with the one stored on m.
func (r *Router) classify(m *models.ContentMonitor, ex execution) (monitor.Outcome, differ.Result) {
	if ex.fetchErr != nil {
		return monitor.Failed(ex.fetchErr), differ.Result{}
	}
	if !m.HasBaseline() {
		return monitor.Outcome{Kind: monitor.OutcomeUnchanged, Snapshot: ex.snapshot}, differ.Result{}
	}

	res := r.differ.Compare(m.Snapshot, ex.snapshot)
	out := monitor.Outcome{Snapshot: ex.snapshot}
	switch res.Verdict {
	case differ.Unchanged:
		out.Kind = monitor.OutcomeUnchanged
	case differ.Trivial:
		out.Kind = monitor.OutcomeTrivial
	default:
		out.Kind = monitor.OutcomeDrift
		out.Severity = res.Severity
		out.LinesAdded = res.LinesAdded
		out.LinesDeleted = res.LinesDeleted
	}
	return out, res
}

// persist runs the atomic unit of one monitor: re-read, decide, admit and
// insert records, move the monitor. Nothing is written when it fails.
func (r *Router) persist(ctx context.Context, session models.SessionID, ex execution) (unitResult, error) {
	var result unitResult

	err := r.gate.Do(ex.orgCode, func() error {
		return r.store.WithTx(ctx, func(tx *store.Tx) error {
			result = unitResult{outcome: models.MonitorOutcome{MonitorID: ex.monitorID}}
			if err := tx.LockOrg(ctx, ex.orgCode); err != nil {
				return err
			}
			return r.persistTx(ctx, tx, session, ex, &result)
		})
	})
	return result, err
}

func (r *Router) persistTx(ctx context.Context, tx *store.Tx, session models.SessionID, ex execution, result *unitResult) error {
	m, err := tx.Monitors().GetByID(ctx, ex.monitorID)
	if err != nil {
		return err
	}
	if !m.Active {
		result.skipped = true
		return nil
	}

	outcome, diff := r.classify(m, ex)
	open, err := openWorkOf(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	plan, err := monitor.Decide(m, outcome, open, r.policy)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	target := m.Target()
	base := func(key, reason string, attrs models.Attributes) models.WorkflowRecord {
		attrs[models.AttrEntity] = target.Entity
		return models.WorkflowRecord{
			RecordKey:   key,
			MonitorID:   m.ID,
			OrgCode:     m.OrgCode,
			ContentType: m.ContentType,
			Reason:      reason,
			SessionID:   session,
			Attributes:  attrs,
			CreatedBy:   r.actor,
		}
	}

	var change *models.ContentChange
	if plan.Change {
		change = &models.ContentChange{
			RecordKey:      models.ChangeRecordKey(session, m.ID),
			MonitorID:      m.ID,
			OrgCode:        m.OrgCode,
			SessionID:      session,
			BeforeSnapshot: m.Snapshot,
			AfterSnapshot:  outcome.Snapshot,
			BeforeHash:     diff.BeforeHash,
			AfterHash:      diff.AfterHash,
			Severity:       outcome.Severity,
			LinesAdded:     outcome.LinesAdded,
			LinesDeleted:   outcome.LinesDeleted,
			DetectedAt:     now,
		}
		prior, err := existingByKey(ctx, tx.Changes(), change.RecordKey)
		if err != nil {
			return err
		}
		if prior != nil {
			change = prior
		} else {
			if err := tx.Changes().Add(ctx, change); err != nil {
				return err
			}
			result.outcome.ChangeCreated = true
		}
	}

	changeAttrs := func(extra models.Attributes) models.Attributes {
		attrs := models.Attributes{models.AttrSeverity: formatSeverity(outcome.Severity)}
		if change != nil {
			attrs[models.AttrChangeID] = formatID(change.ID)
		}
		for k, v := range extra {
			attrs[k] = v
		}
		return attrs
	}

	if plan.Review {
		review := &models.ContentReview{
			WorkflowRecord: base(models.ReviewRecordKey(session, m.ID, models.ReasonContentDrift), models.ReasonContentDrift, changeAttrs(nil)),
			ChangeID:       change.ID,
			Status:         models.ReviewStatusNew,
		}
		verdict, err := admitReview(ctx, tx, review)
		if err != nil {
			return err
		}
		if verdict.Admitted() {
			result.outcome.ReviewOpened = true
		} else {
			result.outcome.Suppressed++
		}
	}

	if plan.Alert {
		alert := &models.ContentAlert{
			WorkflowRecord: base(models.AlertRecordKey(session, m.ID, models.ReasonContentDrift), models.ReasonContentDrift,
				changeAttrs(models.Attributes{models.AttrTrigger: plan.AlertTrigger})),
			Status:    models.AlertStatusNew,
			StartedAt: now,
		}
		if change != nil {
			alert.ChangeID = change.ID
		}
		verdict, err := admitAlert(ctx, tx, alert)
		if err != nil {
			return err
		}
		if verdict.Admitted() {
			result.outcome.AlertRaised = true
			result.alerts = append(result.alerts, alert)
		} else {
			result.outcome.Suppressed++
		}
	}

	if plan.Failure {
		reason := models.FailureReason(outcome.Err.Kind)
		failure := &models.ContentFailure{
			WorkflowRecord: base(models.FailureRecordKey(session, m.ID, reason), reason,
				models.Attributes{models.AttrError: outcome.Err.Kind}),
			Notes:  outcome.Err.Error(),
			Status: models.FailureStatusNew,
		}
		verdict, err := admitFailure(ctx, tx, failure)
		if err != nil {
			return err
		}
		if verdict.Admitted() {
			result.outcome.FailureRecorded = true
		} else {
			result.outcome.Suppressed++
		}
	}

	if err := monitor.Apply(m, plan, now); err != nil {
		return err
	}
	if change != nil {
		changeID := change.ID
		m.ChangeID = &changeID
	}
	if err := tx.Monitors().Update(ctx, m); err != nil {
		return err
	}

	result.outcome.Status = m.Status
	result.monitor = m
	return nil
}

// isAlreadyRecorded reports a unit that lost an insert race on an idempotency
// key. The competing writer committed the same work.
func isAlreadyRecorded(err error) bool {
	return errors.Is(err, models.ErrDuplicateKey)
}
