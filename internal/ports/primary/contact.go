package primary

import (
	"context"

	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/patterns"
)

// ContactService defines the primary port for emergency contact lookup.
type ContactService interface {
	// GetEmergencyContacts returns ranked contacts. An unknown region yields the global entries.
	GetEmergencyContacts(ctx context.Context, region, language string, severity patterns.Severity) []directory.Contact

	// Regions lists the regions the directory covers.
	Regions() []string
}
