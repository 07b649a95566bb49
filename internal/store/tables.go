package store

import (
	"github.com/aleister1102/driftwatch/internal/models"
)

var monitorTable = &Table[models.ContentMonitor]{
	name:   "content_monitors",
	entity: "content_monitor",
	bind: func(m *models.ContentMonitor) (recordMeta, []field) {
		return recordMeta{id: &m.ID, createdAt: &m.CreatedAt, updatedAt: &m.UpdatedAt}, []field{
			stringCol("org_code", &m.OrgCode),
			stringCol("content_type", &m.ContentType),
			stringCol("name", &m.Name),
			stringCol("source_url", &m.SourceURL),
			stringCol("selector", &m.Selector),
			stringCol("entity_id", &m.EntityID),
			bytesCol("snapshot", &m.Snapshot),
			snapshotHashCol(m),
			enumCol("status", &m.Status, models.ParseMonitorStatus),
			boolCol("active", &m.Active),
			boolCol("alerting_enabled", &m.AlertingEnabled),
			nullTimeCol("last_executed_at", &m.LastExecutedAt),
			nullInt64Col("change_id", &m.ChangeID),
			stringCol("external_event_type", &m.ExternalEventType),
			stringCol("external_event_id", &m.ExternalEventID),
		}
	},
}

// snapshotHashCol records that a baseline exists, so an empty captured
// snapshot stays distinct from one never captured.
func snapshotHashCol(m *models.ContentMonitor) field {
	var raw string
	return field{
		column: "snapshot_hash",
		value:  func() (any, error) { return models.SnapshotHash(m.Snapshot), nil },
		dest: func() (any, func() error) {
			return &raw, func() error {
				if raw != "" && m.Snapshot == nil {
					m.Snapshot = []byte{}
				}
				return nil
			}
		},
	}
}

var changeTable = &Table[models.ContentChange]{
	name:   "content_changes",
	entity: "content_change",
	bind: func(c *models.ContentChange) (recordMeta, []field) {
		return recordMeta{id: &c.ID, createdAt: &c.CreatedAt, updatedAt: &c.UpdatedAt}, []field{
			stringCol("record_key", &c.RecordKey),
			int64Col("monitor_id", &c.MonitorID),
			stringCol("org_code", &c.OrgCode),
			sessionCol(&c.SessionID),
			bytesCol("before_snapshot", &c.BeforeSnapshot),
			bytesCol("after_snapshot", &c.AfterSnapshot),
			stringCol("before_hash", &c.BeforeHash),
			stringCol("after_hash", &c.AfterHash),
			floatCol("severity", &c.Severity),
			intCol("lines_added", &c.LinesAdded),
			intCol("lines_deleted", &c.LinesDeleted),
			timeCol("detected_at", &c.DetectedAt),
		}
	},
}

func sessionCol(p *models.SessionID) field {
	return int64Col("session_id", (*int64)(p))
}

// workflowFields binds the columns shared by reviews, alerts and failures.
func workflowFields(r *models.WorkflowRecord) (recordMeta, []field) {
	return recordMeta{id: &r.ID, createdAt: &r.CreatedAt, updatedAt: &r.UpdatedAt}, []field{
		stringCol("record_key", &r.RecordKey),
		int64Col("monitor_id", &r.MonitorID),
		stringCol("org_code", &r.OrgCode),
		stringCol("content_type", &r.ContentType),
		stringCol("reason", &r.Reason),
		sessionCol(&r.SessionID),
		attrsCol("attributes", &r.Attributes),
		stringCol("created_by", &r.CreatedBy),
	}
}

var reviewTable = &Table[models.ContentReview]{
	name:   "content_reviews",
	entity: "content_review",
	bind: func(r *models.ContentReview) (recordMeta, []field) {
		meta, fields := workflowFields(&r.WorkflowRecord)
		return meta, append(fields,
			int64Col("change_id", &r.ChangeID),
			stringCol("notes", &r.Notes),
			boolCol("substantive", &r.Substantive),
			enumCol("status", &r.Status, models.ParseReviewStatus),
			stringCol("resolved_by", &r.ResolvedBy),
			nullTimeCol("resolved_at", &r.ResolvedAt),
		)
	},
}

var alertTable = &Table[models.ContentAlert]{
	name:   "content_alerts",
	entity: "content_alert",
	bind: func(a *models.ContentAlert) (recordMeta, []field) {
		meta, fields := workflowFields(&a.WorkflowRecord)
		return meta, append(fields,
			int64Col("change_id", &a.ChangeID),
			enumCol("status", &a.Status, models.ParseAlertStatus),
			timeCol("started_at", &a.StartedAt),
			stringCol("delivery_id", &a.DeliveryID),
			nullTimeCol("acknowledged_at", &a.AcknowledgedAt),
			nullTimeCol("resolved_at", &a.ResolvedAt),
		)
	},
}

var failureTable = &Table[models.ContentFailure]{
	name:   "content_failures",
	entity: "content_failure",
	bind: func(f *models.ContentFailure) (recordMeta, []field) {
		meta, fields := workflowFields(&f.WorkflowRecord)
		return meta, append(fields,
			stringCol("notes", &f.Notes),
			boolCol("substantive", &f.Substantive),
			enumCol("status", &f.Status, models.ParseFailureStatus),
			nullTimeCol("reviewed_at", &f.ReviewedAt),
		)
	},
}
