package workflow

import (
	"context"
	"strconv"

	"github.com/aleister1102/driftwatch/internal/dedup"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/monitor"
	"github.com/aleister1102/driftwatch/internal/store"
)

var (
	openReviewStatuses  = []models.ReviewStatus{models.ReviewStatusNew, models.ReviewStatusInProgress}
	openAlertStatuses   = []models.AlertStatus{models.AlertStatusNew}
	openFailureStatuses = []models.FailureStatus{models.FailureStatusNew}
)

// openWorkOf summarises the open records of one monitor.
func openWorkOf(ctx context.Context, rs recordSet, monitorID int64) (monitor.OpenWork, error) {
	var open monitor.OpenWork
	byMonitor := store.Eq("monitor_id", monitorID)

	n, err := rs.Reviews().Count(ctx, byMonitor, store.In("status", openReviewStatuses...))
	if err != nil {
		return open, err
	}
	open.Review = n > 0

	if n, err = rs.Alerts().Count(ctx, byMonitor, store.In("status", openAlertStatuses...)); err != nil {
		return open, err
	}
	open.Alert = n > 0

	if n, err = rs.Failures().Count(ctx, byMonitor, store.In("status", openFailureStatuses...)); err != nil {
		return open, err
	}
	open.Failure = n > 0

	return open, nil
}

// admissionQuery narrows candidates for deduplication using the
// (org_code, reason, status) index.
func admissionQuery[S ~string](orgCode, reason string, open []S) store.Query {
	return store.Query{Where: []store.Predicate{
		store.Eq("org_code", orgCode),
		store.Eq("reason", reason),
		store.In("status", open...),
	}}
}

func baseRecords[T any](items []*T, base func(*T) *models.WorkflowRecord) []*models.WorkflowRecord {
	out := make([]*models.WorkflowRecord, 0, len(items))
	for _, it := range items {
		out = append(out, base(it))
	}
	return out
}

// existingByKey returns the record already stored under key, if any.
func existingByKey[T any](ctx context.Context, repo *store.Repo[T], key string) (*T, error) {
	found, err := repo.List(ctx, store.Query{Where: []store.Predicate{store.Eq("record_key", key)}, Limit: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// admitReview inserts r unless an open review covers the same target and reason.
func admitReview(ctx context.Context, rs recordSet, r *models.ContentReview) (dedup.Verdict, error) {
	if prior, err := existingByKey(ctx, rs.Reviews(), r.RecordKey); err != nil || prior != nil {
		return alreadyStored(r, prior, err)
	}
	open, err := rs.Reviews().List(ctx, admissionQuery(r.OrgCode, r.Reason, openReviewStatuses))
	if err != nil {
		return dedup.Verdict{}, err
	}
	verdict := dedup.Admit(&r.WorkflowRecord, baseRecords(open, func(x *models.ContentReview) *models.WorkflowRecord { return &x.WorkflowRecord }))
	if !verdict.Admitted() {
		return verdict, nil
	}
	return verdict, rs.Reviews().Add(ctx, r)
}

// admitAlert inserts a unless an open alert covers the same target and reason.
func admitAlert(ctx context.Context, rs recordSet, a *models.ContentAlert) (dedup.Verdict, error) {
	if prior, err := existingByKey(ctx, rs.Alerts(), a.RecordKey); err != nil || prior != nil {
		return alreadyStored(a, prior, err)
	}
	open, err := rs.Alerts().List(ctx, admissionQuery(a.OrgCode, a.Reason, openAlertStatuses))
	if err != nil {
		return dedup.Verdict{}, err
	}
	verdict := dedup.Admit(&a.WorkflowRecord, baseRecords(open, func(x *models.ContentAlert) *models.WorkflowRecord { return &x.WorkflowRecord }))
	if !verdict.Admitted() {
		return verdict, nil
	}
	return verdict, rs.Alerts().Add(ctx, a)
}

// admitFailure inserts f unless an open failure covers the same target and reason.
func admitFailure(ctx context.Context, rs recordSet, f *models.ContentFailure) (dedup.Verdict, error) {
	if prior, err := existingByKey(ctx, rs.Failures(), f.RecordKey); err != nil || prior != nil {
		return alreadyStored(f, prior, err)
	}
	open, err := rs.Failures().List(ctx, admissionQuery(f.OrgCode, f.Reason, openFailureStatuses))
	if err != nil {
		return dedup.Verdict{}, err
	}
	verdict := dedup.Admit(&f.WorkflowRecord, baseRecords(open, func(x *models.ContentFailure) *models.WorkflowRecord { return &x.WorkflowRecord }))
	if !verdict.Admitted() {
		return verdict, nil
	}
	return verdict, rs.Failures().Add(ctx, f)
}

// alreadyStored treats a record written earlier under the same idempotency
// key as a suppression by that record.
func alreadyStored[T any](candidate, prior *T, err error) (dedup.Verdict, error) {
	if err != nil {
		return dedup.Verdict{}, err
	}
	*candidate = *prior
	return dedup.Verdict{Decision: dedup.DecisionSuppress, ExistingID: idOf(prior)}, nil
}

func idOf(rec any) int64 {
	switch r := rec.(type) {
	case *models.ContentReview:
		return r.ID
	case *models.ContentAlert:
		return r.ID
	case *models.ContentFailure:
		return r.ID
	}
	return 0
}

func formatSeverity(s float64) string {
	return strconv.FormatFloat(s, 'f', 4, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
