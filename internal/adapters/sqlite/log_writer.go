package sqlite

import (
	"context"

	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.LogWriter using AuditRepository.
type LogWriterAdapter struct {
	auditRepo secondary.AuditRepository
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(auditRepo secondary.AuditRepository) *LogWriterAdapter {
	return &LogWriterAdapter{auditRepo: auditRepo}
}

// LogCreate logs the creation of an escalation.
func (w *LogWriterAdapter) LogCreate(ctx context.Context, escalationID, tier string) error {
	return w.writeLog(ctx, escalationID, secondary.AuditActionCreate, "tier", "", tier)
}

// LogUpdate logs a change to an escalation field.
func (w *LogWriterAdapter) LogUpdate(ctx context.Context, escalationID, action, fieldName, oldValue, newValue string) error {
	return w.writeLog(ctx, escalationID, action, fieldName, oldValue, newValue)
}

// writeLog writes an audit event attributed to the actor in ctx.
// Operations without an actor are attributed to the system.
func (w *LogWriterAdapter) writeLog(ctx context.Context, escalationID, action, fieldName, oldValue, newValue string) error {
	return w.auditRepo.Create(ctx, &secondary.AuditEventRecord{
		EscalationID: escalationID,
		ActorID:      ctxutil.ActorOrSystem(ctx),
		Action:       action,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
	})
}

// Ensure LogWriterAdapter implements the interface
var _ secondary.LogWriter = (*LogWriterAdapter)(nil)
