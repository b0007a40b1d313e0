package db

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_escalation_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "create_escalation_events",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "create_user_profiles",
		Up:      migrationV3,
	},
	{
		Version: 4,
		Name:    "add_escalation_version",
		Up:      migrationV4,
	},
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations applies every migration newer than the recorded schema version.
// Each migration and its version row commit in one transaction.
func RunMigrations(db *sql.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := createVersionTable(db); err != nil {
		return err
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log.Info("running migration", zap.Int("version", migration.Version), zap.String("name", migration.Name))

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the escalations and escalation_notes tables.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(escalationTablesSQL)
	return err
}

// migrationV2 adds the audit trail.
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(auditTablesSQL)
	return err
}

// migrationV3 adds stored user context.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(profileTablesSQL)
	return err
}

// migrationV4 adds the optimistic-locking version to escalations.
// Databases whose escalations table was created by a newer migrationV1
// already have the column.
func migrationV4(tx *sql.Tx) error {
	exists, err := columnExists(tx, "escalations", "version")
	if err != nil || exists {
		return err
	}
	_, err = tx.Exec(`ALTER TABLE escalations ADD COLUMN version INTEGER NOT NULL DEFAULT 1`)
	return err
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, kind string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan %s columns: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
