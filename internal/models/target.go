package models

import "fmt"

// SessionID correlates every record produced during one sweep.
type SessionID int64

// Target identifies the logical subject of a workflow record: one entity of one
// monitor within an organisation and content type.
type Target struct {
	MonitorID   int64
	OrgCode     string
	ContentType string
	Entity      string
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", t.OrgCode, t.ContentType, t.MonitorID, t.Entity)
}

// RecordKind names the workflow record families.
type RecordKind string

const (
	KindReview  RecordKind = "reviews"
	KindAlert   RecordKind = "alerts"
	KindFailure RecordKind = "failures"
)

// ParseRecordKind accepts singular or plural kind names.
func ParseRecordKind(raw string) (RecordKind, error) {
	switch raw {
	case "review", "reviews":
		return KindReview, nil
	case "alert", "alerts":
		return KindAlert, nil
	case "failure", "failures":
		return KindFailure, nil
	}
	return "", fmt.Errorf("unknown record kind %q", raw)
}
