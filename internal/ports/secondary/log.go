package secondary

import "context"

// Audit actions.
const (
	AuditActionCreate     = "create"
	AuditActionTransition = "transition"
	AuditActionOverride   = "override"
	AuditActionTimeout    = "timeout"
)

// LogWriter defines the interface for writing audit log entries.
// Implementations extract the actor from context.
type LogWriter interface {
	// LogCreate logs the creation of an escalation.
	LogCreate(ctx context.Context, escalationID, tier string) error

	// LogUpdate logs a change to an escalation field.
	// action is one of the AuditAction constants; fieldName, oldValue, newValue describe what changed.
	LogUpdate(ctx context.Context, escalationID, action, fieldName, oldValue, newValue string) error
}
