package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
)

// ContactServiceImpl implements the ContactService interface over a static directory.
type ContactServiceImpl struct {
	dir *directory.Directory
	log *zap.Logger
}

// NewContactService creates a new ContactService. A nil directory selects the
// embedded default.
func NewContactService(dir *directory.Directory, log *zap.Logger) *ContactServiceImpl {
	if dir == nil {
		dir = directory.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactServiceImpl{dir: dir, log: log.Named("contacts")}
}

// GetEmergencyContacts returns ranked contacts for the region. An unknown
// region yields the global entries.
func (s *ContactServiceImpl) GetEmergencyContacts(ctx context.Context, region, language string, severity patterns.Severity) []directory.Contact {
	contacts := s.dir.Lookup(region, language, severity)
	s.log.Debug("contact lookup",
		zap.String("region", region),
		zap.String("language", language),
		zap.Stringer("severity", severity),
		zap.Int("results", len(contacts)))
	return contacts
}

// Regions lists the regions the directory covers.
func (s *ContactServiceImpl) Regions() []string {
	return s.dir.Regions()
}

// Ensure ContactServiceImpl implements the interface
var _ primary.ContactService = (*ContactServiceImpl)(nil)
