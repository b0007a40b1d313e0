package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// Ensure mocks implement the interfaces
var (
	_ secondary.EscalationRepository = (*mockEscalationRepository)(nil)
	_ secondary.LogWriter            = (*mockLogWriter)(nil)
	_ secondary.Notifier             = (*mockNotifier)(nil)
	_ secondary.ProfileRepository    = (*mockProfileRepository)(nil)
	_ primary.ContactService         = (*panickingContacts)(nil)
)

// mockEscalationRepository implements secondary.EscalationRepository for testing.
type mockEscalationRepository struct {
	mu          sync.Mutex
	escalations map[string]*secondary.EscalationRecord
	createErr   error
	updateErr   error
	creates     int
	updates     int
	// beforeUpdate runs inside Update ahead of the version check, standing in
	// for a writer in another process.
	beforeUpdate func(stored *secondary.EscalationRecord)
}

func newMockEscalationRepository() *mockEscalationRepository {
	return &mockEscalationRepository{escalations: make(map[string]*secondary.EscalationRecord)}
}

func (m *mockEscalationRepository) Create(ctx context.Context, e *secondary.EscalationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.escalations[e.ID]; ok {
		return fmt.Errorf("duplicate escalation %s", e.ID)
	}
	cp := *e
	cp.Notes = append([]secondary.NoteRecord(nil), e.Notes...)
	cp.Version = 1
	m.escalations[e.ID] = &cp
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok {
		return nil, fmt.Errorf("escalation %s: %w", id, secondary.ErrNotFound)
	}
	cp := *e
	cp.Notes = append([]secondary.NoteRecord(nil), e.Notes...)
	return &cp, nil
}

func (m *mockEscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.EscalationRecord
	for _, e := range m.escalations {
		if filters.UserID != "" && e.UserID != filters.UserID {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.ActiveOnly && (e.Status == "resolved" || e.Status == "cancelled" || e.Status == "failed") {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockEscalationRepository) Update(ctx context.Context, e *secondary.EscalationRecord, notes []secondary.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.escalations[e.ID]
	if !ok {
		return fmt.Errorf("escalation %s: %w", e.ID, secondary.ErrNotFound)
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(existing)
	}
	if existing.Version != e.Version {
		return fmt.Errorf("escalation %s: %w", e.ID, secondary.ErrConflict)
	}
	cp := *e
	cp.Notes = append(append([]secondary.NoteRecord(nil), existing.Notes...), notes...)
	cp.Version = existing.Version + 1
	m.escalations[e.ID] = &cp
	return nil
}

func (m *mockEscalationRepository) AppendNotes(ctx context.Context, id string, notes []secondary.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok {
		return fmt.Errorf("escalation %s: %w", id, secondary.ErrNotFound)
	}
	e.Notes = append(e.Notes, notes...)
	return nil
}

func (m *mockEscalationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.escalations {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockEscalationRepository) get(id string) *secondary.EscalationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escalations[id]
}

// write changes a stored escalation the way another process would.
func (m *mockEscalationRepository) write(id string, fn func(*secondary.EscalationRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.escalations[id])
	m.escalations[id].Version++
}

// isResident reports whether svc holds id in memory.
func isResident(svc *EscalationServiceImpl, id string) bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	_, ok := svc.entries[id]
	return ok
}

// auditEntry is one call to the mock log writer.
type auditEntry struct {
	escalationID, action, field, oldValue, newValue string
}

// mockLogWriter implements secondary.LogWriter for testing.
type mockLogWriter struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockLogWriter) LogCreate(ctx context.Context, escalationID, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{escalationID, secondary.AuditActionCreate, "tier", "", tier})
	return nil
}

func (m *mockLogWriter) LogUpdate(ctx context.Context, escalationID, action, field, oldValue, newValue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{escalationID, action, field, oldValue, newValue})
	return nil
}

func (m *mockLogWriter) forID(id string) []auditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auditEntry
	for _, e := range m.entries {
		if e.escalationID == id {
			out = append(out, e)
		}
	}
	return out
}

// mockNotifier implements secondary.Notifier for testing.
type mockNotifier struct {
	mu   sync.Mutex
	sent []secondary.Notification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, n secondary.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) notifications() []secondary.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]secondary.Notification(nil), m.sent...)
}

// mockProfileRepository implements secondary.ProfileRepository for testing.
type mockProfileRepository struct {
	profiles map[string]*secondary.ProfileRecord
	getErr   error
}

func newMockProfileRepository() *mockProfileRepository {
	return &mockProfileRepository{profiles: make(map[string]*secondary.ProfileRecord)}
}

func (m *mockProfileRepository) GetProfile(ctx context.Context, userID string) (*secondary.ProfileRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, secondary.ErrNotFound)
	}
	return p, nil
}

func (m *mockProfileRepository) SaveProfile(ctx context.Context, p *secondary.ProfileRecord) error {
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockProfileRepository) AppendMood(ctx context.Context, userID string, score float64) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("mood score %.1f outside [1,10]", score)
	}
	p, ok := m.profiles[userID]
	if !ok {
		p = &secondary.ProfileRecord{UserID: userID}
		m.profiles[userID] = p
	}
	p.MoodHistory = append(p.MoodHistory, score)
	return nil
}

// panickingContacts is a contact service that always panics.
type panickingContacts struct{}

func (panickingContacts) GetEmergencyContacts(ctx context.Context, region, language string, severity patterns.Severity) []directory.Contact {
	panic("directory unavailable")
}

func (panickingContacts) Regions() []string { return nil }

// panickingProfiles fails every profile lookup with a panic.
type panickingProfiles struct {
	secondary.ProfileRepository
}

func (panickingProfiles) GetProfile(ctx context.Context, userID string) (*secondary.ProfileRecord, error) {
	panic("profile store corrupted")
}
