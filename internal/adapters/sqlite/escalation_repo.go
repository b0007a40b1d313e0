// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/triage/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

const escalationColumns = `id, user_id, tier, status, responder_id, responder_type, severity, score, primary_category, actions, region, language, session_id, initiated_at, acknowledged_at, started_at, resolved_at, closed_at, last_escalated_at, outcome_requires_followup, outcome_safety_achieved, outcome_next_steps`

// selectColumns adds the version, which the database assigns on insert.
const selectColumns = escalationColumns + `, version`

// Create persists a new escalation, including its notes, at version 1.
func (r *EscalationRepository) Create(ctx context.Context, e *secondary.EscalationRecord) error {
	actions, err := json.Marshal(nonNil(e.Actions))
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	followup, safety, nextSteps, err := outcomeColumns(e.Outcome)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO escalations (`+escalationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.Tier,
		e.Status,
		nullString(e.ResponderID),
		e.ResponderType,
		e.Severity,
		e.Score,
		nullString(e.PrimaryCategory),
		string(actions),
		nullString(e.Region),
		nullString(e.Language),
		nullString(e.SessionID),
		e.InitiatedAt,
		nullTime(e.AcknowledgedAt),
		nullTime(e.StartedAt),
		nullTime(e.ResolvedAt),
		nullTime(e.ClosedAt),
		e.LastEscalatedAt,
		followup,
		safety,
		nextSteps,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	if err := insertNotes(ctx, tx, e.ID, e.Notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit escalation: %w", err)
	}
	return nil
}

// GetByID retrieves an escalation (with notes) by its ID.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM escalations WHERE id = ?`, id)
	record, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}

	notes, err := r.notes(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Notes = notes
	return record, nil
}

// List retrieves escalations matching the given filters, newest first.
// Notes are loaded for each result.
func (r *EscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM escalations WHERE 1=1`
	args := []any{}

	if filters.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filters.UserID)
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.ActiveOnly {
		query += " AND status NOT IN ('resolved', 'cancelled', 'failed')"
	}

	query += " ORDER BY initiated_at DESC, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}

	var escalations []*secondary.EscalationRecord
	for rows.Next() {
		record, err := scanEscalation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate escalations: %w", err)
	}
	rows.Close()

	// Notes are fetched after the cursor is closed; the pool may hold a single connection.
	for _, e := range escalations {
		notes, err := r.notes(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		e.Notes = notes
	}

	return escalations, nil
}

// Update writes the mutable columns and appends notes in one transaction.
// The row changes only while its version still equals e.Version; a stale
// record yields secondary.ErrConflict and nothing is written.
func (r *EscalationRepository) Update(ctx context.Context, e *secondary.EscalationRecord, notes []secondary.NoteRecord) error {
	followup, safety, nextSteps, err := outcomeColumns(e.Outcome)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE escalations SET tier = ?, status = ?, responder_id = ?, responder_type = ?, acknowledged_at = ?, started_at = ?, resolved_at = ?, closed_at = ?, last_escalated_at = ?, outcome_requires_followup = ?, outcome_safety_achieved = ?, outcome_next_steps = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND version = ?`,
		e.Tier,
		e.Status,
		nullString(e.ResponderID),
		e.ResponderType,
		nullTime(e.AcknowledgedAt),
		nullTime(e.StartedAt),
		nullTime(e.ResolvedAt),
		nullTime(e.ClosedAt),
		e.LastEscalatedAt,
		followup,
		safety,
		nextSteps,
		e.ID,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var stored int
		err := tx.QueryRowContext(ctx, "SELECT version FROM escalations WHERE id = ?", e.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("escalation %s: %w", e.ID, secondary.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read escalation version: %w", err)
		}
		return fmt.Errorf("escalation %s at version %d, stored %d: %w", e.ID, e.Version, stored, secondary.ErrConflict)
	}

	if err := insertNotes(ctx, tx, e.ID, notes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit escalation update: %w", err)
	}
	return nil
}

// AppendNotes adds notes to an escalation.
func (r *EscalationRepository) AppendNotes(ctx context.Context, escalationID string, notes []secondary.NoteRecord) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertNotes(ctx, tx, escalationID, notes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notes: %w", err)
	}
	return nil
}

// CountByUser returns how many escalations a user has had.
func (r *EscalationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM escalations WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return count, nil
}

func (r *EscalationRepository) notes(ctx context.Context, escalationID string) ([]secondary.NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag, text, actor_id, created_at FROM escalation_notes WHERE escalation_id = ? ORDER BY id`,
		escalationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []secondary.NoteRecord{}
	for rows.Next() {
		var (
			n       secondary.NoteRecord
			actorID sql.NullString
		)
		if err := rows.Scan(&n.Tag, &n.Text, &actorID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.ActorID = actorID.String
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func insertNotes(ctx context.Context, tx *sql.Tx, escalationID string, notes []secondary.NoteRecord) error {
	for _, n := range notes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO escalation_notes (escalation_id, tag, text, actor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			escalationID, n.Tag, n.Text, nullString(n.ActorID), n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEscalation(s scanner) (*secondary.EscalationRecord, error) {
	var (
		responderID     sql.NullString
		primaryCategory sql.NullString
		actions         string
		region          sql.NullString
		language        sql.NullString
		sessionID       sql.NullString
		acknowledgedAt  sql.NullTime
		startedAt       sql.NullTime
		resolvedAt      sql.NullTime
		closedAt        sql.NullTime
		followup        sql.NullBool
		safety          sql.NullBool
		nextSteps       sql.NullString
	)

	record := &secondary.EscalationRecord{}
	err := s.Scan(
		&record.ID,
		&record.UserID,
		&record.Tier,
		&record.Status,
		&responderID,
		&record.ResponderType,
		&record.Severity,
		&record.Score,
		&primaryCategory,
		&actions,
		&region,
		&language,
		&sessionID,
		&record.InitiatedAt,
		&acknowledgedAt,
		&startedAt,
		&resolvedAt,
		&closedAt,
		&record.LastEscalatedAt,
		&followup,
		&safety,
		&nextSteps,
		&record.Version,
	)
	if err != nil {
		return nil, err
	}

	record.ResponderID = responderID.String
	record.PrimaryCategory = primaryCategory.String
	record.Region = region.String
	record.Language = language.String
	record.SessionID = sessionID.String
	record.AcknowledgedAt = timePtr(acknowledgedAt)
	record.StartedAt = timePtr(startedAt)
	record.ResolvedAt = timePtr(resolvedAt)
	record.ClosedAt = timePtr(closedAt)

	if err := json.Unmarshal([]byte(actions), &record.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	if followup.Valid {
		record.Outcome = &secondary.OutcomeRecord{
			RequiresFollowup: followup.Bool,
			SafetyAchieved:   safety.Bool,
		}
		if nextSteps.Valid {
			if err := json.Unmarshal([]byte(nextSteps.String), &record.Outcome.NextSteps); err != nil {
				return nil, fmt.Errorf("failed to decode next steps: %w", err)
			}
		}
	}
	return record, nil
}

func outcomeColumns(o *secondary.OutcomeRecord) (followup, safety sql.NullBool, nextSteps sql.NullString, err error) {
	if o == nil {
		return followup, safety, nextSteps, nil
	}
	steps, err := json.Marshal(nonNil(o.NextSteps))
	if err != nil {
		return followup, safety, nextSteps, fmt.Errorf("failed to encode next steps: %w", err)
	}
	return sql.NullBool{Bool: o.RequiresFollowup, Valid: true},
		sql.NullBool{Bool: o.SafetyAchieved, Valid: true},
		sql.NullString{String: string(steps), Valid: true},
		nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)
