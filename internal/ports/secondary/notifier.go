package secondary

import "context"

// Notification priorities.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Notification is a message for responders.
type Notification struct {
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Priority string            `json:"priority"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Notifier defines the secondary port for responder notification.
// Implementations must honour ctx cancellation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
