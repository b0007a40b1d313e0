package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/triage/internal/adapters/sqlite"
	"github.com/example/triage/internal/ports/secondary"
)

func TestProfileRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProfileRepository(db)
	ctx := context.Background()

	err := repo.SaveProfile(ctx, &secondary.ProfileRecord{
		UserID:            "user-1",
		MoodHistory:       []float64{4, 3},
		ProtectiveFactors: []string{"family"},
		Language:          "en",
		Region:            "US",
	})
	if err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	seedEscalation(t, db, "escalation-a", "user-1", "", time.Time{})
	seedEscalation(t, db, "escalation-b", "user-1", "resolved", time.Time{})

	got, err := repo.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if len(got.MoodHistory) != 2 || got.MoodHistory[1] != 3 {
		t.Errorf("MoodHistory = %v, want [4 3]", got.MoodHistory)
	}
	if len(got.ProtectiveFactors) != 1 || got.ProtectiveFactors[0] != "family" {
		t.Errorf("ProtectiveFactors = %v, want [family]", got.ProtectiveFactors)
	}
	if got.Region != "US" || got.Language != "en" {
		t.Errorf("Region/Language = %s/%s, want US/en", got.Region, got.Language)
	}
	if got.PriorEscalations != 2 {
		t.Errorf("PriorEscalations = %d, want 2", got.PriorEscalations)
	}

	t.Run("save replaces", func(t *testing.T) {
		err := repo.SaveProfile(ctx, &secondary.ProfileRecord{UserID: "user-1", Region: "GB"})
		if err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}
		got, err := repo.GetProfile(ctx, "user-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Region != "GB" || got.Language != "" {
			t.Errorf("Region/Language = %s/%s, want GB/empty", got.Region, got.Language)
		}
		if len(got.MoodHistory) != 0 {
			t.Errorf("MoodHistory = %v, want empty", got.MoodHistory)
		}
	})
}

func TestProfileRepository_GetProfile_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProfileRepository(db)

	_, err := repo.GetProfile(context.Background(), "nobody")
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileRepository_AppendMood(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProfileRepository(db)
	ctx := context.Background()

	t.Run("creates profile on first entry", func(t *testing.T) {
		if err := repo.AppendMood(ctx, "user-1", 6); err != nil {
			t.Fatalf("AppendMood failed: %v", err)
		}
		got, err := repo.GetProfile(ctx, "user-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got.MoodHistory) != 1 || got.MoodHistory[0] != 6 {
			t.Errorf("MoodHistory = %v, want [6]", got.MoodHistory)
		}
	})

	t.Run("keeps the most recent entries", func(t *testing.T) {
		for i := 0; i < sqlite.MaxMoodHistory+5; i++ {
			if err := repo.AppendMood(ctx, "user-2", float64(i%10+1)); err != nil {
				t.Fatalf("AppendMood failed: %v", err)
			}
		}
		got, err := repo.GetProfile(ctx, "user-2")
		if err != nil {
			t.Fatal(err)
		}
		if len(got.MoodHistory) != sqlite.MaxMoodHistory {
			t.Fatalf("len(MoodHistory) = %d, want %d", len(got.MoodHistory), sqlite.MaxMoodHistory)
		}
		// Last appended value was i = MaxMoodHistory+4.
		want := float64((sqlite.MaxMoodHistory+4)%10 + 1)
		if last := got.MoodHistory[len(got.MoodHistory)-1]; last != want {
			t.Errorf("last mood = %v, want %v", last, want)
		}
	})

	t.Run("rejects out of range scores", func(t *testing.T) {
		for _, score := range []float64{0, 10.5, -1} {
			if err := repo.AppendMood(ctx, "user-3", score); err == nil {
				t.Errorf("AppendMood(%v) succeeded, want error", score)
			}
		}
		if _, err := repo.GetProfile(ctx, "user-3"); !errors.Is(err, secondary.ErrNotFound) {
			t.Errorf("rejected scores created a profile: %v", err)
		}
	})
}
