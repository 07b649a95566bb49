package monitor

import (
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var policy = Policy{AlertThreshold: 0.5}

func monitorIn(status models.MonitorStatus, snapshot []byte) *models.ContentMonitor {
	return &models.ContentMonitor{ID: 1, OrgCode: "ACME", ContentType: "listing", Name: "m", Status: status, Active: true, Snapshot: snapshot}
}

func TestDecide(t *testing.T) {
	fetchErr := common.NewFetchError(common.FetchUnreachable, "https://example.com", "request failed", nil)

	tests := []struct {
		name     string
		status   models.MonitorStatus
		snapshot []byte
		outcome  Outcome
		open     OpenWork
		want     Plan
	}{
		{
			name:    "first run captures baseline",
			status:  models.MonitorStatusNew,
			outcome: Outcome{Kind: OutcomeDrift, Snapshot: []byte("S0"), Severity: 1},
			want:    Plan{To: models.MonitorStatusPending, Baseline: true, ReplaceSnapshot: true, Snapshot: []byte("S0")},
		},
		{
			name:     "pending unchanged stays pending",
			status:   models.MonitorStatusPending,
			snapshot: []byte("S0"),
			outcome:  Outcome{Kind: OutcomeUnchanged, Snapshot: []byte("S0")},
			want:     Plan{To: models.MonitorStatusPending},
		},
		{
			name:     "completed unchanged re-arms",
			status:   models.MonitorStatusCompleted,
			snapshot: []byte("S0"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			want:     Plan{To: models.MonitorStatusPending},
		},
		{
			name:     "change unchanged waits for review",
			status:   models.MonitorStatusChange,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			open:     OpenWork{Review: true},
			want:     Plan{To: models.MonitorStatusChange},
		},
		{
			name:     "alert unchanged stays alert",
			status:   models.MonitorStatusAlert,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			want:     Plan{To: models.MonitorStatusAlert},
		},
		{
			name:     "trivial replaces snapshot silently",
			status:   models.MonitorStatusPending,
			snapshot: []byte("a b"),
			outcome:  Outcome{Kind: OutcomeTrivial, Snapshot: []byte("a  b")},
			want:     Plan{To: models.MonitorStatusPending, ReplaceSnapshot: true, Snapshot: []byte("a  b")},
		},
		{
			name:     "drift below threshold opens review",
			status:   models.MonitorStatusPending,
			snapshot: []byte("S0"),
			outcome:  Outcome{Kind: OutcomeDrift, Snapshot: []byte("S1"), Severity: 0.2},
			want:     Plan{To: models.MonitorStatusChange, ReplaceSnapshot: true, Snapshot: []byte("S1"), Change: true, Review: true},
		},
		{
			name:     "drift at threshold alerts",
			status:   models.MonitorStatusPending,
			snapshot: []byte("S0"),
			outcome:  Outcome{Kind: OutcomeDrift, Snapshot: []byte("S1"), Severity: 0.5},
			want: Plan{To: models.MonitorStatusAlert, ReplaceSnapshot: true, Snapshot: []byte("S1"), Change: true, Review: true,
				Alert: true, AlertTrigger: models.TriggerThreshold},
		},
		{
			name:     "drift from alert goes back to change",
			status:   models.MonitorStatusAlert,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeDrift, Snapshot: []byte("S2"), Severity: 0.1},
			want:     Plan{To: models.MonitorStatusChange, ReplaceSnapshot: true, Snapshot: []byte("S2"), Change: true, Review: true},
		},
		{
			name:     "failure keeps snapshot",
			status:   models.MonitorStatusChange,
			snapshot: []byte("S1"),
			outcome:  Failed(fetchErr),
			want:     Plan{To: models.MonitorStatusFailure, Failure: true},
		},
		{
			name:     "failure from completed",
			status:   models.MonitorStatusCompleted,
			snapshot: []byte("S1"),
			outcome:  Failed(fetchErr),
			want:     Plan{To: models.MonitorStatusFailure, Failure: true},
		},
		{
			name:    "failure before baseline",
			status:  models.MonitorStatusNew,
			outcome: Failed(fetchErr),
			want:    Plan{To: models.MonitorStatusFailure, Failure: true},
		},
		{
			name:     "failure recovers to alert",
			status:   models.MonitorStatusFailure,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			open:     OpenWork{Alert: true, Review: true},
			want:     Plan{To: models.MonitorStatusAlert},
		},
		{
			name:     "failure recovers to change",
			status:   models.MonitorStatusFailure,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			open:     OpenWork{Review: true},
			want:     Plan{To: models.MonitorStatusChange},
		},
		{
			name:     "failure recovers to pending",
			status:   models.MonitorStatusFailure,
			snapshot: []byte("S1"),
			outcome:  Outcome{Kind: OutcomeUnchanged},
			open:     OpenWork{Failure: true},
			want:     Plan{To: models.MonitorStatusPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := monitorIn(tt.status, tt.snapshot)
			plan, err := Decide(m, tt.outcome, tt.open, policy)
			require.NoError(t, err)

			tt.want.From = tt.status
			tt.want.Executed = true
			assert.Equal(t, tt.want, plan)
			assert.True(t, CanTransition(plan.From, plan.To))
		})
	}
}

func TestDecide_EveryDriftProducesWork(t *testing.T) {
	statuses := []models.MonitorStatus{
		models.MonitorStatusPending, models.MonitorStatusChange, models.MonitorStatusAlert,
		models.MonitorStatusFailure, models.MonitorStatusCompleted,
	}
	for _, status := range statuses {
		for _, severity := range []float64{0, 0.3, 0.5, 1} {
			plan, err := Decide(monitorIn(status, []byte("old")), Outcome{Kind: OutcomeDrift, Snapshot: []byte("new"), Severity: severity}, OpenWork{}, policy)
			require.NoError(t, err)
			assert.True(t, plan.Review || plan.Alert, "%s severity %.1f", status, severity)
			assert.True(t, plan.Change)
		}
	}
}

func TestDecide_Rejects(t *testing.T) {
	inactive := monitorIn(models.MonitorStatusPending, []byte("S0"))
	inactive.Active = false
	_, err := Decide(inactive, Outcome{Kind: OutcomeUnchanged}, OpenWork{}, policy)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Decide(monitorIn("PAUSED", nil), Outcome{Kind: OutcomeUnchanged}, OpenWork{}, policy)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Decide(monitorIn(models.MonitorStatusPending, []byte("S0")), Outcome{Kind: OutcomeKind(42)}, OpenWork{}, policy)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecide_ThresholdDisabled(t *testing.T) {
	plan, err := Decide(monitorIn(models.MonitorStatusPending, []byte("S0")), Outcome{Kind: OutcomeDrift, Snapshot: []byte("S1"), Severity: 1}, OpenWork{}, Policy{})
	require.NoError(t, err)
	assert.Equal(t, models.MonitorStatusChange, plan.To)
	assert.False(t, plan.Alert)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		status    models.MonitorStatus
		event     Event
		open      OpenWork
		wantTo    models.MonitorStatus
		wantAlert bool
	}{
		{name: "confirm escalates change", status: models.MonitorStatusChange, event: EventReviewConfirmed, wantTo: models.MonitorStatusAlert, wantAlert: true},
		{name: "confirm during failure raises alert only", status: models.MonitorStatusFailure, event: EventReviewConfirmed, wantTo: models.MonitorStatusFailure, wantAlert: true},
		{name: "reject re-arms", status: models.MonitorStatusChange, event: EventReviewRejected, wantTo: models.MonitorStatusPending},
		{name: "reject with another review open", status: models.MonitorStatusChange, event: EventReviewRejected, open: OpenWork{Review: true}, wantTo: models.MonitorStatusChange},
		{name: "reject with alert open", status: models.MonitorStatusChange, event: EventReviewRejected, open: OpenWork{Alert: true}, wantTo: models.MonitorStatusAlert},
		{name: "reject outside change", status: models.MonitorStatusAlert, event: EventReviewRejected, wantTo: models.MonitorStatusAlert},
		{name: "alert resolved completes", status: models.MonitorStatusAlert, event: EventAlertResolved, wantTo: models.MonitorStatusCompleted},
		{name: "alert resolved with another open", status: models.MonitorStatusAlert, event: EventAlertResolved, open: OpenWork{Alert: true}, wantTo: models.MonitorStatusAlert},
		{name: "alert resolved with review open", status: models.MonitorStatusAlert, event: EventAlertResolved, open: OpenWork{Review: true}, wantTo: models.MonitorStatusChange},
		{name: "failure resolved completes", status: models.MonitorStatusFailure, event: EventFailureResolved, wantTo: models.MonitorStatusCompleted},
		{name: "failure resolved with another failure open", status: models.MonitorStatusFailure, event: EventFailureResolved, open: OpenWork{Failure: true}, wantTo: models.MonitorStatusFailure},
		{name: "failure resolved with alert open", status: models.MonitorStatusFailure, event: EventFailureResolved, open: OpenWork{Alert: true}, wantTo: models.MonitorStatusAlert},
		{name: "stale failure resolved after recovery", status: models.MonitorStatusPending, event: EventFailureResolved, wantTo: models.MonitorStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := monitorIn(tt.status, []byte("S1"))
			plan, err := Resolve(m, tt.event, tt.open)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTo, plan.To)
			assert.Equal(t, tt.wantAlert, plan.Alert)
			assert.False(t, plan.Executed)

			require.NoError(t, Apply(m, plan, time.Now()))
			assert.Equal(t, tt.wantTo, m.Status)
			assert.Nil(t, m.LastExecutedAt)
			assert.Equal(t, []byte("S1"), m.Snapshot)
		})
	}
}

func TestResolve_BeforeFirstExecution(t *testing.T) {
	_, err := Resolve(monitorIn(models.MonitorStatusNew, nil), EventReviewConfirmed, OpenWork{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApply(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("failed run leaves snapshot untouched", func(t *testing.T) {
		m := monitorIn(models.MonitorStatusPending, []byte("S1"))
		plan, err := Decide(m, Failed(common.NewFetchError(common.FetchHTTPStatus, "u", "503", nil)), OpenWork{}, policy)
		require.NoError(t, err)

		require.NoError(t, Apply(m, plan, now))
		assert.Equal(t, models.MonitorStatusFailure, m.Status)
		assert.Equal(t, []byte("S1"), m.Snapshot)
		require.NotNil(t, m.LastExecutedAt)
		assert.Equal(t, now, *m.LastExecutedAt)
	})

	t.Run("empty baseline is kept as captured", func(t *testing.T) {
		m := monitorIn(models.MonitorStatusNew, nil)
		plan, err := Decide(m, Outcome{Kind: OutcomeUnchanged}, OpenWork{}, policy)
		require.NoError(t, err)

		require.NoError(t, Apply(m, plan, now))
		assert.True(t, m.HasBaseline())
	})

	t.Run("stale plan rejected", func(t *testing.T) {
		m := monitorIn(models.MonitorStatusChange, []byte("S1"))
		err := Apply(m, Plan{From: models.MonitorStatusPending, To: models.MonitorStatusPending}, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("illegal target rejected", func(t *testing.T) {
		m := monitorIn(models.MonitorStatusAlert, []byte("S1"))
		err := Apply(m, Plan{From: models.MonitorStatusAlert, To: models.MonitorStatusPending}, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, models.MonitorStatusAlert, m.Status)
	})
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.MonitorStatusNew, models.MonitorStatusNew))
	assert.False(t, CanTransition(models.MonitorStatusPending, models.MonitorStatusNew))
	assert.False(t, CanTransition(models.MonitorStatusChange, models.MonitorStatusCompleted))
	assert.False(t, CanTransition("BOGUS", models.MonitorStatusPending))
}
