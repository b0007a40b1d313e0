// Package notify contains implementations of the secondary.Notifier port.
package notify

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/triage/internal/ports/secondary"
)

// LogNotifier writes notifications to the structured log. It is always wired,
// so a notification is never lost even when no external channel is configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger discards output.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.Named("notify")}
}

// Notify logs n at a level matching its priority.
func (n *LogNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := make([]zap.Field, 0, len(msg.Metadata)+2)
	fields = append(fields, zap.String("title", msg.Title), zap.String("priority", msg.Priority))
	for k, v := range msg.Metadata {
		fields = append(fields, zap.String(k, v))
	}

	if ce := n.log.Check(levelFor(msg.Priority), msg.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func levelFor(priority string) zapcore.Level {
	switch priority {
	case secondary.PriorityCritical:
		return zapcore.ErrorLevel
	case secondary.PriorityHigh:
		return zapcore.WarnLevel
	case secondary.PriorityLow:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Ensure LogNotifier implements the interface
var _ secondary.Notifier = (*LogNotifier)(nil)
