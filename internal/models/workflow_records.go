package models

import (
	"fmt"
	"time"
)

// Reason codes carried by workflow records.
const (
	ReasonContentDrift = "content_drift"
	reasonFetchPrefix  = "fetch_"
)

// FailureReason builds the reason code of a failure from the fetch error kind.
func FailureReason(kind string) string {
	return reasonFetchPrefix + kind
}

// Attribute keys used in workflow record payloads.
const (
	AttrEntity     = "entity"
	AttrTrigger    = "trigger"
	AttrSeverity   = "severity"
	AttrChangeID   = "change_id"
	AttrReviewID   = "review_id"
	AttrError      = "error"
	AttrResolvedBy = "resolved_by"
	AttrAssignee   = "assignee"
)

// Alert triggers stored under AttrTrigger.
const (
	TriggerThreshold = "threshold"
	TriggerReview    = "review"
)

// Attributes is the structured payload attached to workflow records.
type Attributes map[string]string

// Clone returns a copy that can be mutated independently.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// WorkflowRecord holds the fields shared by reviews, alerts and failures.
type WorkflowRecord struct {
	ID          int64
	RecordKey   string
	MonitorID   int64
	OrgCode     string
	ContentType string
	Reason      string
	SessionID   SessionID
	Attributes  Attributes
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Target returns the deduplication target of the record.
func (r *WorkflowRecord) Target() Target {
	return Target{
		MonitorID:   r.MonitorID,
		OrgCode:     r.OrgCode,
		ContentType: r.ContentType,
		Entity:      r.Attributes[AttrEntity],
	}
}

// ContentChange is an immutable record of a detected difference.
type ContentChange struct {
	ID             int64
	RecordKey      string
	MonitorID      int64
	OrgCode        string
	SessionID      SessionID
	BeforeSnapshot []byte
	AfterSnapshot  []byte
	BeforeHash     string
	AfterHash      string
	Severity       float64
	LinesAdded     int
	LinesDeleted   int
	DetectedAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ContentReview is a human work item opened for a detected change.
type ContentReview struct {
	WorkflowRecord
	ChangeID    int64
	Notes       string
	Substantive bool
	Status      ReviewStatus
	ResolvedBy  string
	ResolvedAt  *time.Time
}

// ContentAlert is an operator facing notification record.
type ContentAlert struct {
	WorkflowRecord
	ChangeID       int64
	Status         AlertStatus
	StartedAt      time.Time
	DeliveryID     string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// ContentFailure records that a monitor execution could not complete.
type ContentFailure struct {
	WorkflowRecord
	Notes       string
	Substantive bool
	Status      FailureStatus
	ReviewedAt  *time.Time
}

// Record keys make inserts idempotent when a sweep is retried.

func ChangeRecordKey(session SessionID, monitorID int64) string {
	return fmt.Sprintf("s%d:m%d:change", session, monitorID)
}

func ReviewRecordKey(session SessionID, monitorID int64, reason string) string {
	return fmt.Sprintf("s%d:m%d:review:%s", session, monitorID, reason)
}

func AlertRecordKey(session SessionID, monitorID int64, reason string) string {
	return fmt.Sprintf("s%d:m%d:alert:%s", session, monitorID, reason)
}

// ReviewAlertRecordKey keys alerts promoted from a review so that a repeated
// resolution does not raise a second alert.
func ReviewAlertRecordKey(reviewID int64) string {
	return fmt.Sprintf("review%d:alert", reviewID)
}

func FailureRecordKey(session SessionID, monitorID int64, reason string) string {
	return fmt.Sprintf("s%d:m%d:failure:%s", session, monitorID, reason)
}
