// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/triage/internal/adapters/sqlite"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is limited to one connection so every query sees the same database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Use the authoritative schema from schema.go
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// testTime is a fixed UTC instant used by fixtures.
var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// newEscalationRecord returns a valid initiated escalation record.
func newEscalationRecord(id, userID string) *secondary.EscalationRecord {
	return &secondary.EscalationRecord{
		ID:              id,
		UserID:          userID,
		Tier:            "crisis-counselor",
		Status:          "initiated",
		ResponderType:   "crisis-counselor",
		Severity:        "high",
		Score:           55,
		PrimaryCategory: "suicide-ideation",
		Actions:         []string{"assign-counselor", "safety-plan"},
		Region:          "US",
		Language:        "en",
		InitiatedAt:     testTime,
		LastEscalatedAt: testTime,
		Notes: []secondary.NoteRecord{
			{Tag: "assessment", Text: "score 55, severity high", CreatedAt: testTime},
		},
	}
}

// seedEscalation inserts an escalation through the repository and returns it.
func seedEscalation(t *testing.T, testDB *sql.DB, id, userID, status string, initiatedAt time.Time) *secondary.EscalationRecord {
	t.Helper()
	record := newEscalationRecord(id, userID)
	if status != "" {
		record.Status = status
	}
	if !initiatedAt.IsZero() {
		record.InitiatedAt = initiatedAt
		record.LastEscalatedAt = initiatedAt
	}
	if err := sqlite.NewEscalationRepository(testDB).Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed escalation: %v", err)
	}
	record.Version = 1
	return record
}
