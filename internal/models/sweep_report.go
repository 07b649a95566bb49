package models

import "time"

// SweepReport summarises one sweep invocation.
type SweepReport struct {
	Session           SessionID `json:"session"`
	MonitorsProcessed int       `json:"monitors_processed"`
	ChangesFound      int       `json:"changes_found"`
	AlertsRaised      int       `json:"alerts_raised"`
	ReviewsOpened     int       `json:"reviews_opened"`
	FailuresRecorded  int       `json:"failures_recorded"`
	Suppressed        int       `json:"suppressed"`
	PersistenceErrors int       `json:"persistence_errors"`
	Aborted           bool      `json:"aborted"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Duration returns how long the sweep ran.
func (r SweepReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Add folds the outcome of one monitor into the report.
func (r *SweepReport) Add(o MonitorOutcome) {
	r.MonitorsProcessed++
	if o.ChangeCreated {
		r.ChangesFound++
	}
	if o.ReviewOpened {
		r.ReviewsOpened++
	}
	if o.AlertRaised {
		r.AlertsRaised++
	}
	if o.FailureRecorded {
		r.FailuresRecorded++
	}
	r.Suppressed += o.Suppressed
	if o.PersistenceError {
		r.PersistenceErrors++
	}
}

// MonitorOutcome describes what a sweep did for a single monitor.
type MonitorOutcome struct {
	MonitorID        int64
	Status           MonitorStatus
	ChangeCreated    bool
	ReviewOpened     bool
	AlertRaised      bool
	FailureRecorded  bool
	Suppressed       int
	PersistenceError bool
}
