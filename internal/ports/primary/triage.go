package primary

import (
	"context"

	"github.com/example/triage/internal/core/risk"
)

// TriageService defines the primary port for text analysis.
type TriageService interface {
	// Analyze scores free text. It never fails: unusable input yields an
	// assessment with no indicators.
	Analyze(ctx context.Context, req AnalyzeRequest) *risk.Assessment

	// RecordMood stores a self-reported mood score (1-10) in the user's profile.
	RecordMood(ctx context.Context, userID string, score float64) error
}

// AnalyzeRequest contains the text and whatever context the caller has.
// Empty context fields are filled from the user's stored profile when available.
type AnalyzeRequest struct {
	Text              string
	UserID            string // May be empty
	PriorMessages     []string
	MoodHistory       []float64
	PriorEscalations  int
	ProtectiveFactors []string
	Language          string
	Region            string
}
