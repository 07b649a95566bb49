package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/models"
)

// ErrInvalidTransition is returned when an event is not legal for the
// monitor's current status.
var ErrInvalidTransition = errors.New("invalid monitor transition")

// allowed lists the legal targets of each status. Staying put is always legal.
var allowed = map[models.MonitorStatus][]models.MonitorStatus{
	models.MonitorStatusNew:       {models.MonitorStatusPending, models.MonitorStatusChange, models.MonitorStatusAlert, models.MonitorStatusFailure},
	models.MonitorStatusPending:   {models.MonitorStatusChange, models.MonitorStatusAlert, models.MonitorStatusFailure},
	models.MonitorStatusChange:    {models.MonitorStatusPending, models.MonitorStatusAlert, models.MonitorStatusFailure},
	models.MonitorStatusAlert:     {models.MonitorStatusChange, models.MonitorStatusCompleted, models.MonitorStatusFailure},
	models.MonitorStatusFailure:   {models.MonitorStatusPending, models.MonitorStatusChange, models.MonitorStatusAlert, models.MonitorStatusCompleted},
	models.MonitorStatusCompleted: {models.MonitorStatusPending, models.MonitorStatusChange, models.MonitorStatusAlert, models.MonitorStatusFailure},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to models.MonitorStatus) bool {
	targets, ok := allowed[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

func invalid(m *models.ContentMonitor, what string) error {
	return fmt.Errorf("%w: monitor %d in %s: %s", ErrInvalidTransition, m.ID, m.Status, what)
}

// OutcomeKind classifies the comparison of a fetched snapshot.
type OutcomeKind int

const (
	OutcomeUnchanged OutcomeKind = iota
	OutcomeTrivial
	OutcomeDrift
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeTrivial:
		return "trivial"
	case OutcomeDrift:
		return "drift"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of one execution of a monitor.
type Outcome struct {
	Kind         OutcomeKind
	Snapshot     []byte
	Severity     float64
	LinesAdded   int
	LinesDeleted int
	Err          *common.FetchError
}

// Failed builds the outcome of an execution that could not complete.
func Failed(err *common.FetchError) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// OpenWork summarises the open records of one monitor, excluding the record
// being resolved when used with Resolve.
type OpenWork struct {
	Review  bool
	Alert   bool
	Failure bool
}

// Policy holds the tunables of the state machine.
type Policy struct {
	// AlertThreshold is the drift severity at or above which an alert is
	// raised without waiting for review. Zero or less disables it.
	AlertThreshold float64
}

// Plan is a decided transition and the records it requires. Review, Alert and
// Failure are candidates; the deduplicator still decides admission.
type Plan struct {
	From, To        models.MonitorStatus
	Baseline        bool
	ReplaceSnapshot bool
	Snapshot        []byte
	Executed        bool

	Change       bool
	Review       bool
	Alert        bool
	AlertTrigger string
	Failure      bool
}

// Decide applies the result of an execution to the monitor's current status.
func Decide(m *models.ContentMonitor, outcome Outcome, open OpenWork, policy Policy) (Plan, error) {
	if _, known := allowed[m.Status]; !known {
		return Plan{}, invalid(m, "unknown status")
	}
	if !m.Active {
		return Plan{}, invalid(m, "monitor is inactive")
	}

	plan := Plan{From: m.Status, To: m.Status, Executed: true}

	if outcome.Kind == OutcomeFailed {
		// The baseline is never touched by a failed run.
		plan.To = models.MonitorStatusFailure
		plan.Failure = true
		return plan, nil
	}

	if !m.HasBaseline() {
		plan.To = models.MonitorStatusPending
		plan.Baseline = true
		plan.ReplaceSnapshot = true
		plan.Snapshot = outcome.Snapshot
		return plan, nil
	}

	switch outcome.Kind {
	case OutcomeUnchanged, OutcomeTrivial:
		plan.To = settled(m.Status, open)
		if outcome.Kind == OutcomeTrivial {
			plan.ReplaceSnapshot = true
			plan.Snapshot = outcome.Snapshot
		}
	case OutcomeDrift:
		plan.To = models.MonitorStatusChange
		plan.ReplaceSnapshot = true
		plan.Snapshot = outcome.Snapshot
		plan.Change = true
		plan.Review = true
		if policy.AlertThreshold > 0 && outcome.Severity >= policy.AlertThreshold {
			plan.To = models.MonitorStatusAlert
			plan.Alert = true
			plan.AlertTrigger = models.TriggerThreshold
		}
	default:
		return Plan{}, invalid(m, "unknown outcome "+outcome.Kind.String())
	}

	return plan, nil
}

// settled is the status after a run that found nothing new.
func settled(current models.MonitorStatus, open OpenWork) models.MonitorStatus {
	switch current {
	case models.MonitorStatusChange, models.MonitorStatusAlert:
		return current
	case models.MonitorStatusFailure:
		return recovered(open, models.MonitorStatusPending)
	default:
		return models.MonitorStatusPending
	}
}

// recovered picks the status reflecting the most severe open work.
func recovered(open OpenWork, otherwise models.MonitorStatus) models.MonitorStatus {
	switch {
	case open.Alert:
		return models.MonitorStatusAlert
	case open.Review:
		return models.MonitorStatusChange
	default:
		return otherwise
	}
}

// Event is an operator resolution that may move a monitor.
type Event int

const (
	EventReviewConfirmed Event = iota
	EventReviewRejected
	EventAlertResolved
	EventFailureResolved
)

func (e Event) String() string {
	switch e {
	case EventReviewConfirmed:
		return "review_confirmed"
	case EventReviewRejected:
		return "review_rejected"
	case EventAlertResolved:
		return "alert_resolved"
	case EventFailureResolved:
		return "failure_resolved"
	}
	return "unknown"
}

// Resolve applies an operator resolution. open describes what remains open
// after the resolved record is closed.
func Resolve(m *models.ContentMonitor, event Event, open OpenWork) (Plan, error) {
	if _, known := allowed[m.Status]; !known {
		return Plan{}, invalid(m, "unknown status")
	}
	if m.Status == models.MonitorStatusNew {
		return Plan{}, invalid(m, event.String()+" before first execution")
	}

	plan := Plan{From: m.Status, To: m.Status}

	switch event {
	case EventReviewConfirmed:
		plan.Alert = true
		plan.AlertTrigger = models.TriggerReview
		if m.Status != models.MonitorStatusFailure {
			plan.To = models.MonitorStatusAlert
		}
	case EventReviewRejected:
		if m.Status == models.MonitorStatusChange {
			plan.To = recovered(open, models.MonitorStatusPending)
		}
	case EventAlertResolved:
		if m.Status == models.MonitorStatusAlert {
			plan.To = recovered(open, models.MonitorStatusCompleted)
		}
	case EventFailureResolved:
		if m.Status == models.MonitorStatusFailure && !open.Failure {
			plan.To = recovered(open, models.MonitorStatusCompleted)
		}
	default:
		return Plan{}, invalid(m, "unknown event")
	}

	return plan, nil
}

// Apply moves the monitor according to plan. It is the only place monitor
// status is written.
func Apply(m *models.ContentMonitor, plan Plan, now time.Time) error {
	if plan.From != m.Status {
		return invalid(m, fmt.Sprintf("plan decided for %s", plan.From))
	}
	if !CanTransition(plan.From, plan.To) {
		return invalid(m, fmt.Sprintf("cannot move to %s", plan.To))
	}

	m.Status = plan.To
	if plan.ReplaceSnapshot {
		snapshot := plan.Snapshot
		if snapshot == nil {
			snapshot = []byte{}
		}
		m.Snapshot = snapshot
	}
	if plan.Executed {
		executed := now.UTC()
		m.LastExecutedAt = &executed
	}
	return nil
}
