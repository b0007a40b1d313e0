// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write was based on a version that another
// writer has since replaced.
var ErrConflict = errors.New("stale write")

// EscalationRepository defines the secondary port for escalation persistence.
type EscalationRepository interface {
	// Create persists a new escalation, including its notes.
	Create(ctx context.Context, escalation *EscalationRecord) error

	// GetByID retrieves an escalation (with notes) by its ID.
	GetByID(ctx context.Context, id string) (*EscalationRecord, error)

	// List retrieves escalations matching the given filters, newest first.
	List(ctx context.Context, filters EscalationFilters) ([]*EscalationRecord, error)

	// Update writes the mutable columns of an existing escalation (tier,
	// status, responder, timeline, outcome) and appends notes, in one
	// transaction. It applies only while the stored version equals
	// escalation.Version and then bumps the stored version; otherwise it
	// returns ErrConflict and writes nothing.
	Update(ctx context.Context, escalation *EscalationRecord, notes []NoteRecord) error

	// AppendNotes adds notes to an escalation. Notes are never rewritten.
	AppendNotes(ctx context.Context, escalationID string, notes []NoteRecord) error

	// CountByUser returns how many escalations a user has had.
	CountByUser(ctx context.Context, userID string) (int, error)
}

// EscalationRecord represents an escalation as stored in persistence.
type EscalationRecord struct {
	ID              string
	UserID          string
	Tier            string
	Status          string
	ResponderID     string // Empty string means null
	ResponderType   string
	Severity        string
	Score           int
	PrimaryCategory string // Empty string means null
	Actions         []string
	Region          string // Empty string means null
	Language        string // Empty string means null
	SessionID       string // Empty string means null
	InitiatedAt     time.Time
	AcknowledgedAt  *time.Time
	StartedAt       *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	LastEscalatedAt time.Time
	Outcome         *OutcomeRecord // Nil means no outcome reported
	Notes           []NoteRecord
	Version         int // Incremented by every Update; new rows start at 1
}

// OutcomeRecord is the stored outcome of an escalation.
type OutcomeRecord struct {
	RequiresFollowup bool
	SafetyAchieved   bool
	NextSteps        []string
}

// NoteRecord is one stored escalation note.
type NoteRecord struct {
	Tag       string
	Text      string
	ActorID   string // Empty string means null
	CreatedAt time.Time
}

// EscalationFilters contains filter options for querying escalations.
type EscalationFilters struct {
	UserID     string
	Status     string
	ActiveOnly bool // Excludes resolved, cancelled and failed
	Limit      int
}

// AuditRepository defines the secondary port for the escalation audit trail.
// Events are immutable - no Update operations, but old entries can be pruned.
type AuditRepository interface {
	// Create persists a new audit event.
	Create(ctx context.Context, event *AuditEventRecord) error

	// List retrieves audit events matching the given filters, oldest first.
	List(ctx context.Context, filters AuditFilters) ([]*AuditEventRecord, error)

	// PruneOlderThan deletes events older than the given number of days.
	// Returns the number of deleted entries.
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// AuditEventRecord represents an audit event as stored in persistence.
type AuditEventRecord struct {
	ID           int64
	EscalationID string
	Timestamp    time.Time
	ActorID      string // Empty string means null
	Action       string // 'create', 'transition', 'override', 'timeout'
	FieldName    string // Empty string means null
	OldValue     string // Empty string means null
	NewValue     string // Empty string means null
}

// AuditFilters contains filter options for querying audit events.
type AuditFilters struct {
	EscalationID string
	ActorID      string
	Action       string
	Limit        int
}

// ProfileRepository defines the secondary port for stored user context.
type ProfileRepository interface {
	// GetProfile retrieves a user's profile. Returns ErrNotFound for unknown users.
	GetProfile(ctx context.Context, userID string) (*ProfileRecord, error)

	// SaveProfile creates or replaces a user's profile.
	SaveProfile(ctx context.Context, profile *ProfileRecord) error

	// AppendMood records a self-reported mood score, keeping the most recent entries.
	AppendMood(ctx context.Context, userID string, score float64) error
}

// ProfileRecord represents a user profile as stored in persistence.
type ProfileRecord struct {
	UserID            string
	MoodHistory       []float64
	ProtectiveFactors []string
	Language          string
	Region            string
	PriorEscalations  int // Derived from the escalations table on read
	UpdatedAt         time.Time
}
