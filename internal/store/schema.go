package store

import (
	"context"
	"fmt"
	"strings"
)

// column types per dialect, substituted into the DDL templates below.
var ddlTypes = map[dialect]*strings.Replacer{
	dialectSQLite: strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{int}}", "INTEGER",
		"{{real}}", "REAL",
		"{{blob}}", "BLOB",
	),
	dialectPostgres: strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{int}}", "BIGINT",
		"{{real}}", "DOUBLE PRECISION",
		"{{blob}}", "BYTEA",
	),
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS content_monitors (
		id {{pk}},
		org_code TEXT NOT NULL,
		content_type TEXT NOT NULL,
		name TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		selector TEXT NOT NULL DEFAULT '',
		entity_id TEXT NOT NULL DEFAULT '',
		snapshot {{blob}},
		snapshot_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		active {{int}} NOT NULL DEFAULT 1,
		alerting_enabled {{int}} NOT NULL DEFAULT 1,
		last_executed_at TEXT,
		change_id {{int}},
		external_event_type TEXT NOT NULL DEFAULT '',
		external_event_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (org_code, content_type, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_monitors_sweep ON content_monitors (active, last_executed_at)`,
	`CREATE TABLE IF NOT EXISTS content_changes (
		id {{pk}},
		record_key TEXT NOT NULL UNIQUE,
		monitor_id {{int}} NOT NULL,
		org_code TEXT NOT NULL,
		session_id {{int}} NOT NULL,
		before_snapshot {{blob}},
		after_snapshot {{blob}},
		before_hash TEXT NOT NULL DEFAULT '',
		after_hash TEXT NOT NULL DEFAULT '',
		severity {{real}} NOT NULL DEFAULT 0,
		lines_added {{int}} NOT NULL DEFAULT 0,
		lines_deleted {{int}} NOT NULL DEFAULT 0,
		detected_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_changes_monitor ON content_changes (monitor_id, session_id)`,
	workflowTableDDL("content_reviews", `
		change_id {{int}} NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		substantive {{int}} NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		resolved_by TEXT NOT NULL DEFAULT '',
		resolved_at TEXT,`),
	workflowTableDDL("content_alerts", `
		change_id {{int}} NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		delivery_id TEXT NOT NULL DEFAULT '',
		acknowledged_at TEXT,
		resolved_at TEXT,`),
	workflowTableDDL("content_failures", `
		notes TEXT NOT NULL DEFAULT '',
		substantive {{int}} NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		reviewed_at TEXT,`),
}

func init() {
	for _, table := range []string{"content_reviews", "content_alerts", "content_failures"} {
		schemaStatements = append(schemaStatements,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_open ON %s (org_code, reason, status)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_monitor ON %s (monitor_id, status)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_session ON %s (session_id)", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created ON %s (created_at)", table, table),
		)
	}
}

func workflowTableDDL(table, specific string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id {{pk}},
		record_key TEXT NOT NULL UNIQUE,
		monitor_id {{int}} NOT NULL,
		org_code TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		session_id {{int}} NOT NULL,
		attributes TEXT NOT NULL DEFAULT '{}',
		created_by TEXT NOT NULL DEFAULT '',%s
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`, table, specific)
}

func (s *Store) initSchema(ctx context.Context) error {
	replacer := ddlTypes[s.dialect]
	for _, stmt := range schemaStatements {
		if _, err := s.exec(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
