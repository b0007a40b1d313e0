package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/triage/internal/adapters/sqlite"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/ports/secondary"
)

func TestAuditRepository_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAuditRepository(db)
	ctx := context.Background()

	events := []*secondary.AuditEventRecord{
		{EscalationID: "escalation-1", ActorID: "system", Action: secondary.AuditActionCreate, FieldName: "tier", NewValue: "crisis-counselor"},
		{EscalationID: "escalation-1", ActorID: "counselor-7", Action: secondary.AuditActionTransition, FieldName: "status", OldValue: "initiated", NewValue: "acknowledged"},
		{EscalationID: "escalation-2", ActorID: "system", Action: secondary.AuditActionTimeout, FieldName: "tier", OldValue: "peer-support", NewValue: "crisis-counselor"},
	}
	for _, e := range events {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if e.ID == 0 {
			t.Error("Create did not assign an ID")
		}
		if e.Timestamp.IsZero() {
			t.Error("Create did not default the timestamp")
		}
	}

	tests := []struct {
		name    string
		filters secondary.AuditFilters
		want    int
	}{
		{"all", secondary.AuditFilters{}, 3},
		{"by escalation", secondary.AuditFilters{EscalationID: "escalation-1"}, 2},
		{"by actor", secondary.AuditFilters{ActorID: "system"}, 2},
		{"by action", secondary.AuditFilters{Action: secondary.AuditActionTimeout}, 1},
		{"limit", secondary.AuditFilters{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}

	got, err := repo.List(ctx, secondary.AuditFilters{EscalationID: "escalation-1"})
	if err != nil {
		t.Fatal(err)
	}
	if got[1].OldValue != "initiated" || got[1].NewValue != "acknowledged" {
		t.Errorf("event = %+v, want initiated -> acknowledged", got[1])
	}
	if got[0].OldValue != "" {
		t.Errorf("OldValue = %q, want empty for create", got[0].OldValue)
	}
}

func TestAuditRepository_RejectsUnknownAction(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAuditRepository(db)

	err := repo.Create(context.Background(), &secondary.AuditEventRecord{EscalationID: "escalation-1", Action: "delete"})
	if err == nil {
		t.Error("expected CHECK constraint error")
	}
}

func TestAuditRepository_PruneOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAuditRepository(db)
	ctx := context.Background()

	now := time.Now()
	for _, ts := range []time.Time{now.AddDate(0, 0, -40), now.AddDate(0, 0, -31), now.AddDate(0, 0, -2), now} {
		err := repo.Create(ctx, &secondary.AuditEventRecord{EscalationID: "escalation-1", Action: secondary.AuditActionCreate, Timestamp: ts})
		if err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := repo.PruneOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	remaining, err := repo.List(ctx, secondary.AuditFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Errorf("remaining = %d, want 2", len(remaining))
	}
}

func TestLogWriterAdapter(t *testing.T) {
	db := setupTestDB(t)
	auditRepo := sqlite.NewAuditRepository(db)
	writer := sqlite.NewLogWriterAdapter(auditRepo)

	t.Run("create without actor is attributed to system", func(t *testing.T) {
		if err := writer.LogCreate(context.Background(), "escalation-1", "emergency-team"); err != nil {
			t.Fatalf("LogCreate failed: %v", err)
		}
		got, err := auditRepo.List(context.Background(), secondary.AuditFilters{EscalationID: "escalation-1"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d events, want 1", len(got))
		}
		if got[0].ActorID != ctxutil.SystemActor {
			t.Errorf("ActorID = %q, want %q", got[0].ActorID, ctxutil.SystemActor)
		}
		if got[0].FieldName != "tier" || got[0].NewValue != "emergency-team" {
			t.Errorf("event = %+v, want tier=emergency-team", got[0])
		}
	})

	t.Run("update uses actor from context", func(t *testing.T) {
		ctx := ctxutil.WithActorID(context.Background(), "counselor-7")
		err := writer.LogUpdate(ctx, "escalation-2", secondary.AuditActionOverride, "tier", "peer-support", "emergency-services")
		if err != nil {
			t.Fatalf("LogUpdate failed: %v", err)
		}
		got, err := auditRepo.List(context.Background(), secondary.AuditFilters{EscalationID: "escalation-2"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ActorID != "counselor-7" || got[0].Action != secondary.AuditActionOverride {
			t.Errorf("events = %+v, want one override by counselor-7", got)
		}
	})
}
