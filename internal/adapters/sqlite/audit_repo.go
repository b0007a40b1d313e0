package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/triage/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create persists a new audit event. A zero Timestamp means now.
// Timestamps are stored in UTC so pruning can compare them as text.
func (r *AuditRepository) Create(ctx context.Context, event *secondary.AuditEventRecord) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO escalation_events (escalation_id, timestamp, actor_id, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EscalationID,
		ts,
		nullString(event.ActorID),
		event.Action,
		nullString(event.FieldName),
		nullString(event.OldValue),
		nullString(event.NewValue),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit event id: %w", err)
	}
	event.ID = id
	event.Timestamp = ts
	return nil
}

// List retrieves audit events matching the given filters, oldest first.
func (r *AuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditEventRecord, error) {
	query := `SELECT id, escalation_id, timestamp, actor_id, action, field_name, old_value, new_value FROM escalation_events WHERE 1=1`
	args := []any{}

	if filters.EscalationID != "" {
		query += " AND escalation_id = ?"
		args = append(args, filters.EscalationID)
	}

	if filters.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filters.ActorID)
	}

	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*secondary.AuditEventRecord
	for rows.Next() {
		var (
			actorID   sql.NullString
			fieldName sql.NullString
			oldValue  sql.NullString
			newValue  sql.NullString
		)

		event := &secondary.AuditEventRecord{}
		err := rows.Scan(&event.ID, &event.EscalationID, &event.Timestamp, &actorID, &event.Action, &fieldName, &oldValue, &newValue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.ActorID = actorID.String
		event.FieldName = fieldName.String
		event.OldValue = oldValue.String
		event.NewValue = newValue.String

		events = append(events, event)
	}

	return events, rows.Err()
}

// PruneOlderThan deletes events older than the given number of days.
func (r *AuditRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result, err := r.db.ExecContext(ctx, "DELETE FROM escalation_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// Ensure AuditRepository implements the interface
var _ secondary.AuditRepository = (*AuditRepository)(nil)
