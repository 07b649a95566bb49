package models

import (
	"fmt"
	"strings"
)

// MonitorStatus is the lifecycle state of a ContentMonitor.
type MonitorStatus string

const (
	MonitorStatusNew       MonitorStatus = "NEW"
	MonitorStatusPending   MonitorStatus = "PENDING"
	MonitorStatusChange    MonitorStatus = "CHANGE"
	MonitorStatusAlert     MonitorStatus = "ALERT"
	MonitorStatusFailure   MonitorStatus = "FAILURE"
	MonitorStatusCompleted MonitorStatus = "COMPLETED"
)

var monitorStatuses = []MonitorStatus{
	MonitorStatusNew,
	MonitorStatusPending,
	MonitorStatusChange,
	MonitorStatusAlert,
	MonitorStatusFailure,
	MonitorStatusCompleted,
}

// ParseMonitorStatus converts a stored value into a MonitorStatus.
// Unknown values are rejected with ErrUnknownStatus rather than defaulted.
func ParseMonitorStatus(raw string) (MonitorStatus, error) {
	for _, s := range monitorStatuses {
		if string(s) == strings.TrimSpace(raw) {
			return s, nil
		}
	}
	return "", unknownStatus("content_monitor", raw)
}

// ReviewStatus is the lifecycle state of a ContentReview.
type ReviewStatus string

const (
	ReviewStatusNew        ReviewStatus = "NEW"
	ReviewStatusInProgress ReviewStatus = "IN_PROGRESS"
	ReviewStatusConfirmed  ReviewStatus = "CONFIRMED"
	ReviewStatusRejected   ReviewStatus = "REJECTED"
)

var reviewStatuses = []ReviewStatus{
	ReviewStatusNew,
	ReviewStatusInProgress,
	ReviewStatusConfirmed,
	ReviewStatusRejected,
}

// ParseReviewStatus converts a stored value into a ReviewStatus.
func ParseReviewStatus(raw string) (ReviewStatus, error) {
	for _, s := range reviewStatuses {
		if string(s) == strings.TrimSpace(raw) {
			return s, nil
		}
	}
	return "", unknownStatus("content_review", raw)
}

// IsOpen reports whether the review still awaits a decision.
func (s ReviewStatus) IsOpen() bool {
	return s == ReviewStatusNew || s == ReviewStatusInProgress
}

// AlertStatus is the lifecycle state of a ContentAlert.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "NEW"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

var alertStatuses = []AlertStatus{
	AlertStatusNew,
	AlertStatusAcknowledged,
	AlertStatusResolved,
}

// ParseAlertStatus converts a stored value into an AlertStatus.
func ParseAlertStatus(raw string) (AlertStatus, error) {
	for _, s := range alertStatuses {
		if string(s) == strings.TrimSpace(raw) {
			return s, nil
		}
	}
	return "", unknownStatus("content_alert", raw)
}

// IsOpen reports whether the alert still represents an outstanding condition.
func (s AlertStatus) IsOpen() bool {
	return s == AlertStatusNew
}

// FailureStatus is the lifecycle state of a ContentFailure.
type FailureStatus string

const (
	FailureStatusNew      FailureStatus = "NEW"
	FailureStatusResolved FailureStatus = "RESOLVED"
)

// ParseFailureStatus converts a stored value into a FailureStatus.
func ParseFailureStatus(raw string) (FailureStatus, error) {
	switch strings.TrimSpace(raw) {
	case string(FailureStatusNew):
		return FailureStatusNew, nil
	case string(FailureStatusResolved):
		return FailureStatusResolved, nil
	}
	return "", unknownStatus("content_failure", raw)
}

// IsOpen reports whether the failure has not been reviewed yet.
func (s FailureStatus) IsOpen() bool {
	return s == FailureStatusNew
}

func unknownStatus(entity, raw string) error {
	return fmt.Errorf("%w: %s status %q", ErrUnknownStatus, entity, raw)
}
