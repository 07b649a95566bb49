package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ContentMonitor tracks one content source for one organisation and content type.
type ContentMonitor struct {
	ID                int64
	OrgCode           string
	ContentType       string
	Name              string
	SourceURL         string
	Selector          string
	EntityID          string
	Snapshot          []byte
	Status            MonitorStatus
	Active            bool
	AlertingEnabled   bool
	LastExecutedAt    *time.Time
	ChangeID          *int64
	ExternalEventType string
	ExternalEventID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Entity returns the identity of the underlying listing or article.
func (m *ContentMonitor) Entity() string {
	if m.EntityID != "" {
		return m.EntityID
	}
	return m.Name
}

// Target returns the deduplication target of records produced for this monitor.
func (m *ContentMonitor) Target() Target {
	return Target{
		MonitorID:   m.ID,
		OrgCode:     m.OrgCode,
		ContentType: m.ContentType,
		Entity:      m.Entity(),
	}
}

// HasBaseline reports whether a snapshot was ever captured.
func (m *ContentMonitor) HasBaseline() bool {
	return m.Snapshot != nil
}

// SnapshotHash returns the hex encoded sha256 of a snapshot blob.
func SnapshotHash(snapshot []byte) string {
	if snapshot == nil {
		return ""
	}
	sum := sha256.Sum256(snapshot)
	return hex.EncodeToString(sum[:])
}
