package workflow

import (
	"testing"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driftedMonitor returns a monitor in CHANGE with one open review.
func driftedMonitor(t *testing.T, h *harness, name string) (*models.ContentMonitor, *models.ContentReview) {
	t.Helper()
	m := h.addMonitor(name, models.MonitorStatusPending, []byte(listingS0))
	h.fetcher.Serve(m.SourceURL, listingS1)
	h.sweep()
	reviews := h.reviews(m.ID)
	require.Len(t, reviews, 1)
	return h.monitor(m.ID), reviews[0]
}

func TestOperator_StartReview(t *testing.T) {
	h := newHarness(t)
	_, review := driftedMonitor(t, h, "flat-1")

	started, err := h.operator.StartReview(h.ctx, review.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusInProgress, started.Status)
	assert.Equal(t, "alice", started.Attributes[models.AttrAssignee])

	_, err = h.operator.StartReview(h.ctx, review.ID, "bob")
	assert.ErrorIs(t, err, ErrRecordClosed)

	// in progress still counts as open for the next sweep
	h.fetcher.Serve("https://acme.example/flat-1", listingS2)
	report := h.sweep()
	assert.Equal(t, 1, report.Suppressed)
}

func TestOperator_RejectReviewRearms(t *testing.T) {
	h := newHarness(t)
	m, review := driftedMonitor(t, h, "flat-2")

	out, err := h.operator.ResolveReview(h.ctx, review.ID, ReviewDecision{Substantive: false, Notes: "price typo", Actor: "alice"})
	require.NoError(t, err)
	assert.Nil(t, out.Alert)
	assert.Equal(t, models.ReviewStatusRejected, out.Review.Status)
	assert.Equal(t, "alice", out.Review.ResolvedBy)
	require.NotNil(t, out.Review.ResolvedAt)
	assert.Equal(t, models.MonitorStatusPending, h.monitor(m.ID).Status)
	assert.Empty(t, h.alerts(m.ID))

	_, err = h.operator.ResolveReview(h.ctx, review.ID, ReviewDecision{Substantive: true})
	assert.ErrorIs(t, err, ErrRecordClosed)

	// a new drift opens a fresh review
	h.fetcher.Serve(m.SourceURL, listingS2)
	report := h.sweep()
	assert.Equal(t, 1, report.ReviewsOpened)
	assert.Len(t, h.reviews(m.ID), 2)
}

func TestOperator_ConfirmWhileAlertOpenIsSuppressed(t *testing.T) {
	h := newHarness(t, withThreshold(0.1))
	m, review := driftedMonitor(t, h, "flat-3")
	require.Equal(t, models.MonitorStatusAlert, m.Status)
	require.Len(t, h.alerts(m.ID), 1)

	out, err := h.operator.ResolveReview(h.ctx, review.ID, ReviewDecision{Substantive: true})
	require.NoError(t, err)
	assert.Nil(t, out.Alert)
	assert.Equal(t, models.MonitorStatusAlert, out.Monitor.Status)
	assert.Len(t, h.alerts(m.ID), 1)
	assert.Len(t, h.notifier.Sent(), 1)
}

func TestOperator_AlertLifecycle(t *testing.T) {
	h := newHarness(t, withThreshold(0.1))
	m, review := driftedMonitor(t, h, "flat-4")
	alerts := h.alerts(m.ID)
	require.Len(t, alerts, 1)

	acked, err := h.operator.AcknowledgeAlert(h.ctx, alerts[0].ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.Equal(t, models.MonitorStatusAlert, h.monitor(m.ID).Status)

	_, err = h.operator.AcknowledgeAlert(h.ctx, alerts[0].ID, "alice")
	assert.ErrorIs(t, err, ErrRecordClosed)

	resolved, moved, err := h.operator.ResolveAlert(h.ctx, alerts[0].ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
	assert.Equal(t, "alice", resolved.Attributes[models.AttrResolvedBy])
	// the review raised with the alert is still open
	assert.Equal(t, models.MonitorStatusChange, moved.Status)

	_, _, err = h.operator.ResolveAlert(h.ctx, alerts[0].ID, "alice")
	assert.ErrorIs(t, err, ErrRecordClosed)

	out, err := h.operator.ResolveReview(h.ctx, review.ID, ReviewDecision{Substantive: false})
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusPending, out.Monitor.Status)
}

func TestOperator_ResolveAlertCompletes(t *testing.T) {
	h := newHarness(t)
	m, review := driftedMonitor(t, h, "flat-5")

	out, err := h.operator.ResolveReview(h.ctx, review.ID, ReviewDecision{Substantive: true})
	require.NoError(t, err)
	require.NotNil(t, out.Alert)

	_, moved, err := h.operator.ResolveAlert(h.ctx, out.Alert.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusCompleted, moved.Status)

	// the next unchanged sweep re-arms the monitor
	h.sweep()
	assert.Equal(t, models.MonitorStatusPending, h.monitor(m.ID).Status)
}

func TestOperator_ResolveFailure(t *testing.T) {
	h := newHarness(t)
	m := h.addMonitor("down", models.MonitorStatusPending, []byte(listingS0))
	h.fetcher.Fail(m.SourceURL, common.NewFetchError(common.FetchHTTPStatus, m.SourceURL, "status 503", nil))
	h.sweep()

	failures := h.failures(m.ID)
	require.Len(t, failures, 1)

	resolved, moved, err := h.operator.ResolveFailure(h.ctx, failures[0].ID, true, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.FailureStatusResolved, resolved.Status)
	assert.True(t, resolved.Substantive)
	require.NotNil(t, resolved.ReviewedAt)
	assert.Equal(t, models.MonitorStatusCompleted, moved.Status)

	_, _, err = h.operator.ResolveFailure(h.ctx, failures[0].ID, true, "alice")
	assert.ErrorIs(t, err, ErrRecordClosed)
}

func TestOperator_ResolveFailureWithOtherFailureOpen(t *testing.T) {
	h := newHarness(t)
	m := h.addMonitor("flaky", models.MonitorStatusPending, []byte(listingS0))
	h.fetcher.Fail(m.SourceURL, common.NewFetchError(common.FetchHTTPStatus, m.SourceURL, "status 503", nil))
	h.sweep()
	h.fetcher.Fail(m.SourceURL, common.NewFetchError(common.FetchTooLarge, m.SourceURL, "too big", nil))
	h.sweep()

	failures := h.failures(m.ID)
	require.Len(t, failures, 2)

	_, moved, err := h.operator.ResolveFailure(h.ctx, failures[0].ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusFailure, moved.Status)

	_, moved, err = h.operator.ResolveFailure(h.ctx, failures[1].ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusCompleted, moved.Status)
}

func TestOperator_ReviewOnNewMonitorIsInvalid(t *testing.T) {
	h := newHarness(t)
	m := h.addMonitor("new", models.MonitorStatusNew, nil)
	require.NoError(t, h.store.Reviews().Add(h.ctx, &models.ContentReview{
		WorkflowRecord: models.WorkflowRecord{RecordKey: "stray", MonitorID: m.ID, OrgCode: m.OrgCode, Reason: models.ReasonContentDrift},
		Status:         models.ReviewStatusNew,
	}))
	reviews := h.reviews(m.ID)
	require.Len(t, reviews, 1)

	_, err := h.operator.ResolveReview(h.ctx, reviews[0].ID, ReviewDecision{Substantive: true})
	assert.ErrorIs(t, err, monitor.ErrInvalidTransition)

	// the rolled back transaction left the review open
	assert.Equal(t, models.ReviewStatusNew, h.reviews(m.ID)[0].Status)
}

func TestOperator_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.operator.ResolveReview(h.ctx, 42, ReviewDecision{})
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	_, _, err = h.operator.ResolveAlert(h.ctx, 42, "")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	_, _, err = h.operator.ResolveFailure(h.ctx, 42, false, "")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}
