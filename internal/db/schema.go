package db

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

const escalationTablesSQL = `
-- Escalations (one row per triage-to-resolution workflow)
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	tier TEXT NOT NULL CHECK(tier IN ('peer-support', 'crisis-counselor', 'emergency-team', 'emergency-services')),
	status TEXT NOT NULL CHECK(status IN ('initiated', 'acknowledged', 'in-progress', 'resolved', 'cancelled', 'failed')) DEFAULT 'initiated',
	responder_id TEXT,
	responder_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	primary_category TEXT,
	actions TEXT NOT NULL DEFAULT '[]',
	region TEXT,
	language TEXT,
	session_id TEXT,
	initiated_at DATETIME NOT NULL,
	acknowledged_at DATETIME,
	started_at DATETIME,
	resolved_at DATETIME,
	closed_at DATETIME,
	last_escalated_at DATETIME NOT NULL,
	outcome_requires_followup INTEGER,
	outcome_safety_achieved INTEGER,
	outcome_next_steps TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_escalations_user ON escalations(user_id);
CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status);

-- Escalation notes (append-only)
CREATE TABLE IF NOT EXISTS escalation_notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	escalation_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	text TEXT NOT NULL,
	actor_id TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (escalation_id) REFERENCES escalations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_escalation_notes_escalation ON escalation_notes(escalation_id);
`

const auditTablesSQL = `
-- Escalation events (audit trail; rows survive even if the escalation row was never written)
CREATE TABLE IF NOT EXISTS escalation_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	escalation_id TEXT NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	actor_id TEXT,
	action TEXT NOT NULL CHECK(action IN ('create', 'transition', 'override', 'timeout')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_escalation_events_escalation ON escalation_events(escalation_id);
CREATE INDEX IF NOT EXISTS idx_escalation_events_timestamp ON escalation_events(timestamp);
`

const profileTablesSQL = `
-- User profiles (context used to enrich analysis)
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	mood_history TEXT NOT NULL DEFAULT '[]',
	protective_factors TEXT NOT NULL DEFAULT '[]',
	language TEXT,
	region TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SchemaSQL is the complete modern schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(); if repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `go test ./...` to verify alignment
const SchemaSQL = escalationTablesSQL + auditTablesSQL + profileTablesSQL

// InitSchema brings the database up to the current schema.
// Fresh databases get SchemaSQL directly with every migration marked applied;
// existing databases run whatever migrations are pending.
func InitSchema(db *sql.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to check schema version table: %w", err)
	}
	if tableCount > 0 {
		return RunMigrations(db, log)
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to mark migration %d applied: %w", m.Version, err)
		}
	}
	log.Debug("created fresh schema", zap.Int("version", migrations[len(migrations)-1].Version))
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
