package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/triage/internal/core/detection"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/core/risk"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// Longer messages are analysed in chunks of at most analysisChunk bytes.
// Consecutive chunks share at least analysisOverlap bytes, so any phrase
// shorter than that lies whole inside one chunk.
const (
	analysisChunk   = 8 * 1024
	analysisOverlap = 512
)

// TriageServiceImpl implements the TriageService interface.
type TriageServiceImpl struct {
	analyzer   *detection.Analyzer
	aggregator *risk.Aggregator
	profiles   secondary.ProfileRepository
	log        *zap.Logger
}

// NewTriageService creates a new TriageService. A nil library selects the
// embedded default; a nil profile repository disables context enrichment.
func NewTriageService(lib *patterns.Library, profiles secondary.ProfileRepository, log *zap.Logger) *TriageServiceImpl {
	if lib == nil {
		lib = patterns.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TriageServiceImpl{
		analyzer:   detection.NewAnalyzer(lib),
		aggregator: risk.NewAggregator(lib),
		profiles:   profiles,
		log:        log.Named("triage"),
	}
}

// Analyze scores free text. Empty text yields the no-indicators assessment;
// invalid UTF-8 is replaced rather than rejected. If analysis fails outright
// the result is held for responder review.
func (s *TriageServiceImpl) Analyze(ctx context.Context, req primary.AnalyzeRequest) (a *risk.Assessment) {
	if strings.TrimSpace(req.Text) == "" {
		return s.aggregator.NoIndicators()
	}
	text := req.Text
	if !utf8.ValidString(text) {
		s.log.Debug("replacing invalid UTF-8", zap.String("user_id", req.UserID))
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("analysis panicked; flagging for review", zap.String("user_id", req.UserID), zap.Any("panic", r))
			a = s.aggregator.Unanalysed()
		}
	}()

	rc := s.riskContext(ctx, req)
	parts := chunks(text)
	for _, part := range parts {
		next := s.aggregator.Aggregate(s.analyzer.Analyze(part, req.PriorMessages), rc)
		if a == nil || moreSevere(next, a) {
			a = next
		}
	}

	s.log.Debug("text analysed",
		zap.String("user_id", req.UserID),
		zap.Int("chunks", len(parts)),
		zap.Int("signals", len(a.Signals)),
		zap.Int("score", a.Score),
		zap.Stringer("severity", a.Severity))
	return a
}

// RecordMood stores a self-reported mood score in the user's profile.
func (s *TriageServiceImpl) RecordMood(ctx context.Context, userID string, score float64) error {
	if s.profiles == nil {
		return fmt.Errorf("no profile store configured")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := s.profiles.AppendMood(ctx, userID, score); err != nil {
		return fmt.Errorf("failed to record mood: %w", err)
	}
	return nil
}

// riskContext builds the risk context, filling whatever the caller omitted from
// the stored profile. Profile failures are logged and ignored.
func (s *TriageServiceImpl) riskContext(ctx context.Context, req primary.AnalyzeRequest) risk.Context {
	rc := risk.Context{
		MoodHistory:       req.MoodHistory,
		PriorEscalations:  req.PriorEscalations,
		ProtectiveFactors: req.ProtectiveFactors,
		Language:          req.Language,
		Region:            req.Region,
	}
	if s.profiles == nil || req.UserID == "" {
		return rc
	}

	profile, err := s.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, secondary.ErrNotFound) {
			s.log.Warn("profile lookup failed; analysing without it", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return rc
	}

	if len(rc.MoodHistory) == 0 {
		rc.MoodHistory = profile.MoodHistory
	}
	if rc.PriorEscalations == 0 {
		rc.PriorEscalations = profile.PriorEscalations
	}
	if len(rc.ProtectiveFactors) == 0 {
		rc.ProtectiveFactors = profile.ProtectiveFactors
	}
	if rc.Language == "" {
		rc.Language = profile.Language
	}
	if rc.Region == "" {
		rc.Region = profile.Region
	}
	return rc
}

// chunks splits text into overlapping pieces of at most analysisChunk bytes,
// cut between words where possible.
func chunks(text string) []string {
	if len(text) <= analysisChunk {
		return []string{text}
	}
	var out []string
	start := 0
	for len(text)-start > analysisChunk {
		end := wordBreak(text, start+analysisChunk/2, start+analysisChunk)
		out = append(out, text[start:end])
		start = wordBreak(text, end-2*analysisOverlap, end-analysisOverlap)
	}
	return append(out, text[start:])
}

// wordBreak returns the last offset in (lo, hi] that follows whitespace, or
// failing that the last rune boundary at or below hi.
func wordBreak(text string, lo, hi int) int {
	for i := hi; i > lo; i-- {
		switch text[i-1] {
		case ' ', '\t', '\n', '\r':
			return i
		}
	}
	for hi > lo && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return hi
}

// moreSevere orders chunk assessments by severity, then score.
func moreSevere(a, b *risk.Assessment) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.EmergencyServicesRequired && !b.EmergencyServicesRequired
}

// Ensure TriageServiceImpl implements the interface
var _ primary.TriageService = (*TriageServiceImpl)(nil)
