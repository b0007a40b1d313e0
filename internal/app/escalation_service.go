package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ctxutil"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// DefaultNotifyTimeout bounds a single notification dispatch.
const DefaultNotifyTimeout = 10 * time.Second

// EscalationConfig tunes the escalation service.
type EscalationConfig struct {
	Thresholds escalation.TierThresholds
	// NotifyTier is the lowest tier that triggers a responder notification.
	NotifyTier    escalation.Tier
	NotifyTimeout time.Duration
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultEscalationConfig returns the production defaults.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		Thresholds:    escalation.DefaultTierThresholds(),
		NotifyTier:    escalation.TierCrisisCounselor,
		NotifyTimeout: DefaultNotifyTimeout,
	}
}

// EscalationDeps are the collaborators of the escalation service.
// Every field may be nil; a nil repository keeps escalations in memory only.
type EscalationDeps struct {
	Repo      secondary.EscalationRepository
	LogWriter secondary.LogWriter
	Notifier  secondary.Notifier
	Contacts  primary.ContactService
	Metrics   *MetricsRecorder
	Logger    *zap.Logger
}

// entry is one resident escalation. mu serialises every change to esc.
// version is the stored version esc was read at or last written as;
// pending holds notes the repository has not accepted yet.
type entry struct {
	mu        sync.Mutex
	esc       *primary.Escalation
	persisted bool
	version   int
	pending   []escalation.Note
}

// storedEntry builds a resident entry from a repository record.
func storedEntry(r *secondary.EscalationRecord) (*entry, error) {
	e, err := recordToEscalation(r)
	if err != nil {
		return nil, err
	}
	return &entry{esc: e, persisted: true, version: r.Version}, nil
}

// EscalationServiceImpl implements the EscalationService interface.
// It owns the state of every resident escalation; callers only ever see copies.
type EscalationServiceImpl struct {
	cfg       EscalationConfig
	repo      secondary.EscalationRepository
	logWriter secondary.LogWriter
	notifier  secondary.Notifier
	contacts  primary.ContactService
	metrics   *MetricsRecorder
	log       *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	inflight sync.WaitGroup
}

// NewEscalationService creates a new EscalationService with injected dependencies.
func NewEscalationService(cfg EscalationConfig, deps EscalationDeps) *EscalationServiceImpl {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if !cfg.NotifyTier.Valid() {
		cfg.NotifyTier = escalation.TierCrisisCounselor
	}
	if cfg.Thresholds.Validate() != nil {
		cfg.Thresholds = escalation.DefaultTierThresholds()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetricsRecorder()
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &EscalationServiceImpl{
		cfg:       cfg,
		repo:      deps.Repo,
		logWriter: deps.LogWriter,
		notifier:  deps.Notifier,
		contacts:  deps.Contacts,
		metrics:   metrics,
		log:       log.Named("escalation"),
		now:       now,
		entries:   make(map[string]*entry),
	}
}

// InitiateCrisisEscalation opens a new escalation for an assessment.
// It never fails: a nil or invalid assessment, or a panic anywhere in tier
// selection, yields an emergency-services escalation with a fallback note.
func (s *EscalationServiceImpl) InitiateCrisisEscalation(ctx context.Context, req primary.InitiateRequest) (esc *primary.Escalation) {
	now := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("escalation initiation panicked; falling back",
				zap.String("user_id", req.UserID), zap.Any("panic", r))
			esc = s.fallback(ctx, req, now, fmt.Sprintf("internal error: %v", r))
		}
	}()

	a := req.Assessment
	if a == nil {
		return s.fallback(ctx, req, now, "no assessment provided")
	}
	if err := a.Validate(); err != nil {
		return s.fallback(ctx, req, now, fmt.Sprintf("invalid assessment: %v", err))
	}

	sel := escalation.SelectTier(a, req.Override, s.cfg.Thresholds)
	e := s.newEscalation(escalation.NewID(), req, sel.Tier, now)
	e.Severity = a.Severity
	e.Score = a.Score
	e.PrimaryCategory = a.PrimaryCategory
	e.Actions = escalation.InitialActions(sel.Tier, a)

	actor := ctxutil.ActorOrSystem(ctx)
	e.Notes = append(e.Notes, escalation.Note{
		Tag:   escalation.NoteAssessment,
		Text:  fmt.Sprintf("score %d, severity %s, urgency %s; %s", a.Score, a.Severity, a.Urgency, sel.Reason),
		At:    now,
		Actor: actor,
	})
	if sel.Manual {
		e.Notes = append(e.Notes, escalation.Note{
			Tag:   escalation.NoteManualEscalation,
			Text:  fmt.Sprintf(initialTierNote+"%s: %s", sel.Tier, sel.Reason),
			At:    now,
			Actor: actor,
		})
	}

	return s.open(ctx, e, a.EmergencyServicesRequired, false, sel.Reason)
}

// EscalateEmergency opens an emergency-services escalation directly, already in progress.
func (s *EscalationServiceImpl) EscalateEmergency(ctx context.Context, userID, emergencyType, description string) *primary.Escalation {
	now := s.now()
	e := s.newEscalation(escalation.NewEmergencyID(), primary.InitiateRequest{UserID: userID}, escalation.TopTier, now)
	e.Status = escalation.StatusInProgress
	e.Timeline = escalation.ApplyTransition(e.Timeline, escalation.StatusInProgress, now).Timeline
	e.Severity = patterns.SeverityEmergency
	e.Score = 100
	if c := patterns.Category(emergencyType); c.Valid() {
		e.PrimaryCategory = c
	}
	e.Actions = escalation.InitialActions(escalation.TopTier, nil)
	e.Outcome = &escalation.Outcome{RequiresFollowup: true}

	text := emergencyType
	if description != "" {
		text = fmt.Sprintf("%s: %s", emergencyType, description)
	}
	e.Notes = append(e.Notes, escalation.Note{Tag: escalation.NoteEmergency, Text: text, At: now, Actor: ctxutil.ActorOrSystem(ctx)})

	return s.open(ctx, e, true, false, "emergency reported: "+emergencyType)
}

// UpdateEscalationStatus applies a guarded status transition. It returns false,
// leaving every counter untouched, for an unknown id or an illegal transition.
func (s *EscalationServiceImpl) UpdateEscalationStatus(ctx context.Context, req primary.StatusUpdateRequest) bool {
	ent := s.lookup(ctx, req.EscalationID)
	if ent == nil {
		return false
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.refresh(ctx, ent)
	e := ent.esc.Clone()

	guard := escalation.CanTransition(escalation.TransitionContext{
		EscalationID: e.ID,
		From:         e.Status,
		To:           req.Status,
	})
	if !guard.Allowed {
		s.log.Debug("status update rejected", zap.String("escalation_id", e.ID), zap.String("reason", guard.Reason))
		return false
	}

	now := s.now()
	from := e.Status
	wasAcknowledged := e.Timeline.Acknowledged != nil

	result := escalation.ApplyTransition(e.Timeline, req.Status, now)
	e.Status = result.NewStatus
	e.Timeline = result.Timeline
	if req.ResponderID != "" {
		e.ResponderID = req.ResponderID
	}
	if req.Outcome != nil {
		o := *req.Outcome
		o.NextSteps = append([]string(nil), req.Outcome.NextSteps...)
		e.Outcome = &o
	}

	text := fmt.Sprintf("%s -> %s", from, e.Status)
	if req.Note != "" {
		text += ": " + req.Note
	}
	note := escalation.Note{Tag: escalation.NoteStatus, Text: text, At: now, Actor: ctxutil.ActorOrSystem(ctx)}
	e.Notes = append(e.Notes, note)

	if err := s.commit(ctx, ent, e, note); err != nil {
		s.log.Warn("status update lost to a concurrent change", zap.String("escalation_id", e.ID), zap.Error(err))
		return false
	}

	s.metrics.RecordTransition(from, e.Status)
	if !wasAcknowledged {
		if d, ok := escalation.ResponseTime(e.Timeline); ok {
			s.metrics.RecordResponse(d)
		}
	}
	if e.Status.IsTerminal() {
		s.metrics.RecordTerminal(e.Status, e.Outcome)
	}

	s.audit(ctx, e.ID, secondary.AuditActionTransition, "status", string(from), string(e.Status))
	s.evictSettled(ent)

	s.log.Info("escalation status changed",
		zap.String("escalation_id", e.ID),
		zap.String("from", string(from)),
		zap.String("to", string(e.Status)))
	return true
}

// OverrideTier applies an audited manual tier change. Unlike automatic
// escalation it may lower the tier.
func (s *EscalationServiceImpl) OverrideTier(ctx context.Context, escalationID string, tier escalation.Tier, reason string) bool {
	ent := s.lookup(ctx, escalationID)
	if ent == nil {
		return false
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.refresh(ctx, ent)
	e := ent.esc.Clone()

	guard := escalation.CanOverrideTier(escalation.OverrideContext{
		EscalationID: e.ID,
		Status:       e.Status,
		Current:      e.Tier,
		Target:       tier,
		Reason:       reason,
	})
	if !guard.Allowed {
		s.log.Debug("tier override rejected", zap.String("escalation_id", e.ID), zap.String("reason", guard.Reason))
		return false
	}

	now := s.now()
	from := e.Tier
	e.Tier = tier
	e.ResponderType = escalation.Responder(tier)
	e.Timeline.LastEscalated = now

	note := escalation.Note{
		Tag:   escalation.NoteManualEscalation,
		Text:  fmt.Sprintf("tier %s -> %s: %s", from, tier, reason),
		At:    now,
		Actor: ctxutil.ActorOrSystem(ctx),
	}
	e.Notes = append(e.Notes, note)

	if err := s.commit(ctx, ent, e, note); err != nil {
		s.log.Warn("tier override lost to a concurrent change", zap.String("escalation_id", e.ID), zap.Error(err))
		return false
	}
	s.metrics.RecordOverride()
	s.audit(ctx, e.ID, secondary.AuditActionOverride, "tier", from.String(), tier.String())

	if tier > from && tier >= s.cfg.NotifyTier {
		s.dispatch(ctx, e.Clone(), "manual override: "+reason)
	}

	s.log.Info("escalation tier overridden",
		zap.String("escalation_id", e.ID),
		zap.Stringer("from", from),
		zap.Stringer("to", tier))
	return true
}

// MonitorEscalationProgress returns a copy of the escalation's current state.
func (s *EscalationServiceImpl) MonitorEscalationProgress(ctx context.Context, escalationID string) (*primary.Escalation, bool) {
	ent := s.lookup(ctx, escalationID)
	if ent == nil {
		return nil, false
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.refresh(ctx, ent)
	return ent.esc.Clone(), true
}

// ListActive returns copies of every resident escalation that is not terminal,
// oldest first.
func (s *EscalationServiceImpl) ListActive(ctx context.Context) []*primary.Escalation {
	var active []*primary.Escalation
	for _, ent := range s.resident() {
		ent.mu.Lock()
		if !ent.esc.Status.IsTerminal() {
			active = append(active, ent.esc.Clone())
		}
		ent.mu.Unlock()
	}
	sortEscalations(active)
	return active
}

// ListEscalations lists escalations with optional filters. Without a
// repository only resident escalations are searched.
func (s *EscalationServiceImpl) ListEscalations(ctx context.Context, filters primary.EscalationFilters) ([]*primary.Escalation, error) {
	if s.repo == nil {
		var out []*primary.Escalation
		for _, ent := range s.resident() {
			ent.mu.Lock()
			e := ent.esc
			if (filters.UserID == "" || e.UserID == filters.UserID) && (filters.Status == "" || e.Status == filters.Status) {
				out = append(out, e.Clone())
			}
			ent.mu.Unlock()
		}
		sortEscalations(out)
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		if filters.Limit > 0 && len(out) > filters.Limit {
			out = out[:filters.Limit]
		}
		return out, nil
	}

	records, err := s.repo.List(ctx, secondary.EscalationFilters{
		UserID: filters.UserID,
		Status: string(filters.Status),
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}

	escalations := make([]*primary.Escalation, 0, len(records))
	for _, r := range records {
		e, err := recordToEscalation(r)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, e)
	}
	return escalations, nil
}

// GetEscalationMetrics returns aggregate counters and derived rates.
func (s *EscalationServiceImpl) GetEscalationMetrics() primary.Metrics {
	return s.metrics.Snapshot()
}

// LoadActive brings the resident escalations in line with the repository.
// Active escalations opened or changed by other processes are loaded or
// refreshed, unsaved local changes are retried, and escalations settled
// elsewhere are dropped. It returns how many escalations were newly loaded.
func (s *EscalationServiceImpl) LoadActive(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	records, err := s.repo.List(ctx, secondary.EscalationFilters{ActiveOnly: true})
	if err != nil {
		return 0, fmt.Errorf("failed to load active escalations: %w", err)
	}

	active := make(map[string]bool, len(records))
	loaded := 0
	for _, r := range records {
		active[r.ID] = true
		ent, err := storedEntry(r)
		if err != nil {
			s.log.Warn("skipping unreadable escalation", zap.String("escalation_id", r.ID), zap.Error(err))
			continue
		}
		existing, added := s.insert(ent)
		if added {
			loaded++
			continue
		}
		existing.mu.Lock()
		if existing.persisted && len(existing.pending) == 0 {
			s.adopt(existing, r)
		}
		existing.mu.Unlock()
	}

	for _, ent := range s.resident() {
		ent.mu.Lock()
		switch {
		case !ent.persisted:
			s.persistCreate(ctx, ent)
		case len(ent.pending) > 0:
			_ = s.commit(ctx, ent, ent.esc.Clone())
		case !active[ent.esc.ID]:
			s.refresh(ctx, ent)
		}
		s.evictSettled(ent)
		ent.mu.Unlock()
	}
	return loaded, nil
}

// RebuildMetrics replays every stored escalation into the metrics counters.
// Call it on a fresh service, before any escalation is handled.
func (s *EscalationServiceImpl) RebuildMetrics(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	records, err := s.repo.List(ctx, secondary.EscalationFilters{})
	if err != nil {
		return 0, fmt.Errorf("failed to load escalation history: %w", err)
	}

	replayed := 0
	for _, r := range records {
		e, err := recordToEscalation(r)
		if err != nil {
			s.log.Warn("skipping unreadable escalation", zap.String("escalation_id", r.ID), zap.Error(err))
			continue
		}
		s.metrics.Replay(e)
		replayed++
	}
	return replayed, nil
}

// Wait blocks until every in-flight notification has finished.
func (s *EscalationServiceImpl) Wait() {
	s.inflight.Wait()
}

// fallback opens the highest-safety escalation when normal initiation cannot.
func (s *EscalationServiceImpl) fallback(ctx context.Context, req primary.InitiateRequest, now time.Time, reason string) *primary.Escalation {
	e := s.newEscalation(escalation.NewID(), req, escalation.TopTier, now)
	e.Severity = patterns.SeverityEmergency
	e.Score = 100
	e.Actions = escalation.InitialActions(escalation.TopTier, nil)
	e.Notes = append(e.Notes, escalation.Note{
		Tag:   escalation.NoteFallback,
		Text:  reason,
		At:    now,
		Actor: ctxutil.ActorOrSystem(ctx),
	})
	return s.open(ctx, e, false, true, "fallback: "+reason)
}

func (s *EscalationServiceImpl) newEscalation(id string, req primary.InitiateRequest, tier escalation.Tier, now time.Time) *primary.Escalation {
	return &primary.Escalation{
		ID:            id,
		UserID:        req.UserID,
		Tier:          tier,
		Status:        escalation.InitialStatus(),
		ResponderType: escalation.Responder(tier),
		Timeline:      escalation.NewTimeline(now),
		Region:        req.User.Region,
		Language:      req.User.Language,
		SessionID:     req.Session.SessionID,
	}
}

// open routes, registers, persists, audits and notifies a new escalation, in
// that order, and returns a copy. Failures after registration are recorded as
// notes and never change the tier.
func (s *EscalationServiceImpl) open(ctx context.Context, e *primary.Escalation, emergency, fallback bool, reason string) *primary.Escalation {
	if e.Tier >= escalation.TierEmergencyTeam {
		e.Notes = append(e.Notes, s.routeContact(ctx, e))
	}

	ent := &entry{esc: e}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.insert(ent)
	s.metrics.RecordCreated(e.Tier, e.Status, emergency, fallback)

	s.persistCreate(ctx, ent)
	s.audit(ctx, e.ID, secondary.AuditActionCreate, "tier", "", e.Tier.String())
	if e.Tier >= s.cfg.NotifyTier {
		s.dispatch(ctx, e.Clone(), reason)
	}

	s.log.Info("escalation opened",
		zap.String("escalation_id", e.ID),
		zap.String("user_id", e.UserID),
		zap.Stringer("tier", e.Tier),
		zap.Stringer("severity", e.Severity),
		zap.Bool("fallback", fallback))
	return e.Clone()
}

// routeContact picks the best emergency contact for the user's locale.
func (s *EscalationServiceImpl) routeContact(ctx context.Context, e *primary.Escalation) escalation.Note {
	note := escalation.Note{Tag: escalation.NoteContactRouting, At: e.Timeline.Initiated, Actor: ctxutil.SystemActor}
	if s.contacts == nil {
		note.Text = "no contact directory configured"
		return note
	}

	severity := e.Severity
	if severity < patterns.SeverityHigh {
		severity = patterns.SeverityHigh
	}
	var contacts []directory.Contact
	err := safely(func() error {
		contacts = s.contacts.GetEmergencyContacts(ctx, e.Region, e.Language, severity)
		return nil
	})
	if err != nil {
		s.log.Error("contact lookup failed", zap.String("escalation_id", e.ID), zap.Error(err))
		note.Text = "contact lookup failed: " + err.Error()
		return note
	}
	if len(contacts) == 0 {
		note.Text = "no contacts found for region " + e.Region
		return note
	}
	c := contacts[0]
	note.Text = fmt.Sprintf("%s (%s, %s)", c.Name, c.Number, c.Type)
	return note
}

// insert registers ent unless its id is already resident.
func (s *EscalationServiceImpl) insert(ent *entry) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[ent.esc.ID]; ok {
		return existing, false
	}
	s.entries[ent.esc.ID] = ent
	return ent, true
}

// lookup returns the resident entry for id, loading it from the repository
// when it is not in memory. Returns nil for unknown ids.
func (s *EscalationServiceImpl) lookup(ctx context.Context, id string) *entry {
	s.mu.RLock()
	ent, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return ent
	}
	if s.repo == nil || !escalation.ValidID(id) {
		return nil
	}

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, secondary.ErrNotFound) {
			s.log.Warn("failed to load escalation", zap.String("escalation_id", id), zap.Error(err))
		}
		return nil
	}
	loaded, err := storedEntry(record)
	if err != nil {
		s.log.Warn("unreadable escalation", zap.String("escalation_id", id), zap.Error(err))
		return nil
	}
	ent, _ = s.insert(loaded)
	return ent
}

// resident returns a snapshot of the resident entries.
func (s *EscalationServiceImpl) resident() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.entries))
	for _, ent := range s.entries {
		out = append(out, ent)
	}
	return out
}

// persistCreate writes a new escalation with all of its notes.
// The caller holds ent.mu.
func (s *EscalationServiceImpl) persistCreate(ctx context.Context, ent *entry) {
	if s.repo == nil {
		return
	}
	record := escalationToRecord(ent.esc)
	if err := safely(func() error { return s.repo.Create(ctx, record) }); err != nil {
		s.persistenceFailed(ent, err)
		return
	}
	ent.persisted = true
	ent.version = 1
	ent.pending = nil
}

// commit installs next as the state of ent and stores it together with notes
// and any notes an earlier write failed to store. An escalation whose creation
// was never stored is retried as a full create. When another writer has
// changed the stored record, ent is reloaded from it and secondary.ErrConflict
// is returned; any other failure keeps next and is recorded as a note.
// The caller holds ent.mu.
func (s *EscalationServiceImpl) commit(ctx context.Context, ent *entry, next *primary.Escalation, notes ...escalation.Note) error {
	if s.repo == nil {
		ent.esc = next
		return nil
	}
	if !ent.persisted {
		ent.esc = next
		s.persistCreate(ctx, ent)
		return nil
	}

	record := escalationToRecord(next)
	record.Version = ent.version
	unsaved := append(append([]escalation.Note(nil), ent.pending...), notes...)
	err := safely(func() error { return s.repo.Update(ctx, record, notesToRecords(unsaved)) })
	if errors.Is(err, secondary.ErrConflict) {
		s.refresh(ctx, ent)
		return err
	}

	ent.esc = next
	if err != nil {
		ent.pending = unsaved
		s.persistenceFailed(ent, err)
		return nil
	}
	ent.version++
	ent.pending = nil
	return nil
}

// refresh reloads ent when the stored record is newer than the resident copy.
// The caller holds ent.mu.
func (s *EscalationServiceImpl) refresh(ctx context.Context, ent *entry) {
	if s.repo == nil || !ent.persisted {
		return
	}
	var record *secondary.EscalationRecord
	err := safely(func() error {
		var err error
		record, err = s.repo.GetByID(ctx, ent.esc.ID)
		return err
	})
	if err != nil {
		s.log.Warn("failed to refresh escalation", zap.String("escalation_id", ent.esc.ID), zap.Error(err))
		return
	}
	s.adopt(ent, record)
}

// adopt replaces ent's state with record unless ent already holds that
// version. Notes still waiting to be stored are kept. The caller holds ent.mu.
func (s *EscalationServiceImpl) adopt(ent *entry, record *secondary.EscalationRecord) {
	if record.Version == ent.version {
		return
	}
	e, err := recordToEscalation(record)
	if err != nil {
		s.log.Warn("unreadable escalation", zap.String("escalation_id", record.ID), zap.Error(err))
		return
	}
	e.Notes = append(e.Notes, ent.pending...)
	ent.esc = e
	ent.version = record.Version
}

// evictSettled drops a terminal escalation once everything about it is
// stored; lookup reloads it on demand. The caller holds ent.mu.
func (s *EscalationServiceImpl) evictSettled(ent *entry) {
	if s.repo == nil || !ent.persisted || len(ent.pending) > 0 || !ent.esc.Status.IsTerminal() {
		return
	}
	s.mu.Lock()
	if s.entries[ent.esc.ID] == ent {
		delete(s.entries, ent.esc.ID)
	}
	s.mu.Unlock()
}

// persistenceFailed records a failed write on the escalation. For stored
// escalations the note joins the pending notes so a later write carries it.
// The caller holds ent.mu.
func (s *EscalationServiceImpl) persistenceFailed(ent *entry, err error) {
	s.metrics.RecordPersistenceFailure()
	s.log.Error("failed to persist escalation", zap.String("escalation_id", ent.esc.ID), zap.Error(err))
	note := escalation.Note{
		Tag:   escalation.NotePersistenceFailed,
		Text:  err.Error(),
		At:    s.now(),
		Actor: ctxutil.SystemActor,
	}
	ent.esc.Notes = append(ent.esc.Notes, note)
	if ent.persisted {
		ent.pending = append(ent.pending, note)
	}
}

func (s *EscalationServiceImpl) audit(ctx context.Context, id, action, field, oldValue, newValue string) {
	if s.logWriter == nil {
		return
	}
	err := safely(func() error {
		if action == secondary.AuditActionCreate {
			return s.logWriter.LogCreate(ctx, id, newValue)
		}
		return s.logWriter.LogUpdate(ctx, id, action, field, oldValue, newValue)
	})
	if err != nil {
		s.log.Warn("failed to write audit event", zap.String("escalation_id", id), zap.String("action", action), zap.Error(err))
	}
}

// dispatch sends the notification for snapshot in the background, bounded by
// the notify timeout. A failure is recorded as a notify-failed note.
func (s *EscalationServiceImpl) dispatch(ctx context.Context, snapshot *primary.Escalation, reason string) {
	if s.notifier == nil {
		return
	}
	msg := notificationFor(snapshot, reason)
	base := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		nctx, cancel := context.WithTimeout(base, s.cfg.NotifyTimeout)
		defer cancel()

		if err := safely(func() error { return s.notifier.Notify(nctx, msg) }); err != nil {
			s.notifyFailed(base, snapshot.ID, err)
		}
	}()
}

func (s *EscalationServiceImpl) notifyFailed(ctx context.Context, id string, err error) {
	s.metrics.RecordNotifyFailure()
	s.log.Error("failed to notify responders", zap.String("escalation_id", id), zap.Error(err))
	note := escalation.Note{Tag: escalation.NoteNotifyFailed, Text: err.Error(), At: s.now(), Actor: ctxutil.SystemActor}

	s.mu.RLock()
	ent, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		// Settled and evicted; the stored record still takes the note.
		if s.repo != nil {
			records := notesToRecords([]escalation.Note{note})
			if err := safely(func() error { return s.repo.AppendNotes(ctx, id, records) }); err != nil {
				s.metrics.RecordPersistenceFailure()
				s.log.Error("failed to store notify-failed note", zap.String("escalation_id", id), zap.Error(err))
			}
		}
		return
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	ent.esc.Notes = append(ent.esc.Notes, note)
	if s.repo == nil || !ent.persisted {
		return
	}
	if len(ent.pending) > 0 {
		// Goes out with the retried update, after the notes before it.
		ent.pending = append(ent.pending, note)
		return
	}
	records := notesToRecords([]escalation.Note{note})
	if err := safely(func() error { return s.repo.AppendNotes(ctx, id, records) }); err != nil {
		ent.pending = []escalation.Note{note}
		s.persistenceFailed(ent, err)
	}
}

// safely runs fn, converting a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// notificationFor builds the responder notification for an escalation.
func notificationFor(e *primary.Escalation, reason string) secondary.Notification {
	return secondary.Notification{
		Title:    fmt.Sprintf("Crisis escalation: %s", e.Tier),
		Message:  fmt.Sprintf("escalation %s for user %s needs %s (severity %s, score %d)", e.ID, e.UserID, e.ResponderType, e.Severity, e.Score),
		Priority: priorityFor(e.Tier),
		Metadata: map[string]string{
			"escalation_id": e.ID,
			"user_id":       e.UserID,
			"tier":          e.Tier.String(),
			"status":        string(e.Status),
			"severity":      e.Severity.String(),
			"score":         strconv.Itoa(e.Score),
			"reason":        reason,
		},
	}
}

func priorityFor(t escalation.Tier) string {
	switch t {
	case escalation.TierEmergencyServices:
		return secondary.PriorityCritical
	case escalation.TierEmergencyTeam:
		return secondary.PriorityHigh
	case escalation.TierCrisisCounselor:
		return secondary.PriorityNormal
	default:
		return secondary.PriorityLow
	}
}

func sortEscalations(es []*primary.Escalation) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Timeline.Initiated.Equal(es[j].Timeline.Initiated) {
			return es[i].Timeline.Initiated.Before(es[j].Timeline.Initiated)
		}
		return es[i].ID < es[j].ID
	})
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)
