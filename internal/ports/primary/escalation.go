package primary

import (
	"context"
	"time"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/core/risk"
)

// EscalationService defines the primary port for escalation operations.
// The safety-path operations never return errors: failures degrade to the
// highest-safety tier and are recorded as notes on the escalation.
type EscalationService interface {
	// InitiateCrisisEscalation opens a new escalation for an assessment.
	// A nil or invalid assessment, or any internal failure, yields an
	// emergency-services escalation carrying a fallback note.
	InitiateCrisisEscalation(ctx context.Context, req InitiateRequest) *Escalation

	// EscalateEmergency opens an emergency-services escalation directly, bypassing scoring.
	EscalateEmergency(ctx context.Context, userID, emergencyType, description string) *Escalation

	// UpdateEscalationStatus applies a status transition. Returns false for an
	// unknown id or an illegal transition.
	UpdateEscalationStatus(ctx context.Context, req StatusUpdateRequest) bool

	// OverrideTier applies an audited manual tier change. May lower the tier.
	OverrideTier(ctx context.Context, escalationID string, tier escalation.Tier, reason string) bool

	// MonitorEscalationProgress returns a copy of the escalation's current state.
	MonitorEscalationProgress(ctx context.Context, escalationID string) (*Escalation, bool)

	// ListActive returns copies of every escalation that is not yet terminal.
	ListActive(ctx context.Context) []*Escalation

	// ListEscalations lists persisted escalations with optional filters.
	ListEscalations(ctx context.Context, filters EscalationFilters) ([]*Escalation, error)

	// GetEscalationMetrics returns aggregate counters and derived rates.
	GetEscalationMetrics() Metrics

	// LoadActive rehydrates non-terminal escalations from persistence.
	// Returns the number of escalations loaded.
	LoadActive(ctx context.Context) (int, error)
}

// UserContext is what the service knows about the user at escalation time.
type UserContext struct {
	Region            string   `json:"region,omitempty"`
	Language          string   `json:"language,omitempty"`
	ProtectiveFactors []string `json:"protective_factors,omitempty"`
}

// SessionInfo identifies the conversation that produced the escalation.
type SessionInfo struct {
	SessionID string `json:"session_id,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// InitiateRequest contains the parameters for opening a crisis escalation.
type InitiateRequest struct {
	Assessment *risk.Assessment
	UserID     string
	User       UserContext
	Session    SessionInfo
	Override   *escalation.Override // May be nil
}

// StatusUpdateRequest contains the parameters for a status transition.
type StatusUpdateRequest struct {
	EscalationID string
	Status       escalation.Status
	ResponderID  string              // May be empty
	Note         string              // May be empty
	Outcome      *escalation.Outcome // May be nil
}

// Escalation represents an escalation at the port boundary.
// Values returned by the service are copies; mutating them has no effect.
type Escalation struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"user_id"`
	Tier            escalation.Tier          `json:"tier"`
	Status          escalation.Status        `json:"status"`
	ResponderID     string                   `json:"responder_id,omitempty"`
	ResponderType   escalation.ResponderType `json:"responder_type"`
	Timeline        escalation.Timeline      `json:"timeline"`
	Notes           []escalation.Note        `json:"notes"`
	Outcome         *escalation.Outcome      `json:"outcome,omitempty"`
	Severity        patterns.Severity        `json:"severity"`
	Score           int                      `json:"score"`
	PrimaryCategory patterns.Category        `json:"primary_category,omitempty"`
	Actions         []string                 `json:"actions"`
	Region          string                   `json:"region,omitempty"`
	Language        string                   `json:"language,omitempty"`
	SessionID       string                   `json:"session_id,omitempty"`
}

// HasNote reports whether the escalation carries a note with tag.
func (e *Escalation) HasNote(tag string) bool {
	for _, n := range e.Notes {
		if n.Tag == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e *Escalation) Clone() *Escalation {
	c := *e
	c.Notes = append([]escalation.Note(nil), e.Notes...)
	c.Actions = append([]string(nil), e.Actions...)
	c.Timeline = cloneTimeline(e.Timeline)
	if e.Outcome != nil {
		o := *e.Outcome
		o.NextSteps = append([]string(nil), e.Outcome.NextSteps...)
		c.Outcome = &o
	}
	return &c
}

func cloneTimeline(tl escalation.Timeline) escalation.Timeline {
	dup := func(p *time.Time) *time.Time {
		if p == nil {
			return nil
		}
		t := *p
		return &t
	}
	tl.Acknowledged = dup(tl.Acknowledged)
	tl.Started = dup(tl.Started)
	tl.Resolved = dup(tl.Resolved)
	tl.Closed = dup(tl.Closed)
	return tl
}

// EscalationFilters contains filter options for listing escalations.
type EscalationFilters struct {
	UserID string
	Status escalation.Status
	Limit  int
}

// Metrics is a point-in-time snapshot of escalation counters.
type Metrics struct {
	Total               int64            `json:"total"`
	ByTier              map[string]int64 `json:"by_tier"`
	ByStatus            map[string]int64 `json:"by_status"`
	Emergencies         int64            `json:"emergencies"`
	Fallbacks           int64            `json:"fallbacks"`
	Overrides           int64            `json:"overrides"`
	Timeouts            int64            `json:"timeouts"`
	NotifyFailures      int64            `json:"notify_failures"`
	PersistenceFailures int64            `json:"persistence_failures"`
	Responded           int64            `json:"responded"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	Resolved            int64            `json:"resolved"`
	Terminal            int64            `json:"terminal"`
	SafeOutcomes        int64            `json:"safe_outcomes"`
	SuccessRate         float64          `json:"success_rate"`
	UserSafetyRate      float64          `json:"user_safety_rate"`
}
