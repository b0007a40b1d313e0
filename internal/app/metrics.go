package app

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
)

// MetricsRecorder keeps escalation counters. Every method is O(1) and safe
// for concurrent use.
//
// ByTier counts escalations by the tier they were opened at. ByStatus is the
// number of escalations currently in each status.
type MetricsRecorder struct {
	total               atomic.Int64
	emergencies         atomic.Int64
	fallbacks           atomic.Int64
	overrides           atomic.Int64
	timeouts            atomic.Int64
	notifyFailures      atomic.Int64
	persistenceFailures atomic.Int64
	responded           atomic.Int64
	responseNanos       atomic.Int64
	resolved            atomic.Int64
	terminal            atomic.Int64
	safe                atomic.Int64

	byTier   [escalation.TopTier + 1]atomic.Int64
	byStatus map[escalation.Status]*atomic.Int64
}

// NewMetricsRecorder creates a zeroed recorder.
func NewMetricsRecorder() *MetricsRecorder {
	m := &MetricsRecorder{byStatus: make(map[escalation.Status]*atomic.Int64)}
	for _, s := range escalation.AllStatuses {
		m.byStatus[s] = new(atomic.Int64)
	}
	return m
}

// RecordCreated counts a newly opened escalation.
func (m *MetricsRecorder) RecordCreated(tier escalation.Tier, status escalation.Status, emergency, fallback bool) {
	m.total.Add(1)
	if tier.Valid() {
		m.byTier[tier].Add(1)
	}
	m.addStatus(status, 1)
	if emergency {
		m.emergencies.Add(1)
	}
	if fallback {
		m.fallbacks.Add(1)
	}
}

// RecordTransition moves one escalation between status buckets.
func (m *MetricsRecorder) RecordTransition(from, to escalation.Status) {
	m.addStatus(from, -1)
	m.addStatus(to, 1)
}

// RecordResponse records the time to first acknowledgement.
func (m *MetricsRecorder) RecordResponse(d time.Duration) {
	m.responded.Add(1)
	m.responseNanos.Add(int64(d))
}

// RecordTerminal records an escalation reaching a terminal status.
// A resolved escalation without a reported outcome counts as safe.
func (m *MetricsRecorder) RecordTerminal(status escalation.Status, outcome *escalation.Outcome) {
	m.terminal.Add(1)
	if status != escalation.StatusResolved {
		return
	}
	m.resolved.Add(1)
	if outcome == nil || outcome.SafetyAchieved {
		m.safe.Add(1)
	}
}

// RecordOverride counts a manual tier override.
func (m *MetricsRecorder) RecordOverride() { m.overrides.Add(1) }

// RecordTimeout counts a timeout sweep action.
func (m *MetricsRecorder) RecordTimeout() { m.timeouts.Add(1) }

// RecordNotifyFailure counts a failed notification dispatch.
func (m *MetricsRecorder) RecordNotifyFailure() { m.notifyFailures.Add(1) }

// RecordPersistenceFailure counts a failed repository write.
func (m *MetricsRecorder) RecordPersistenceFailure() { m.persistenceFailures.Add(1) }

// initialTierNote prefixes the manual-escalation note written when a caller
// chooses the tier at initiation. Later overrides use a different text.
const initialTierNote = "tier set to "

// Replay counts a stored escalation as if it had been handled by this process.
// Replayed escalations count under their current tier.
func (m *MetricsRecorder) Replay(e *primary.Escalation) {
	fallback := e.HasNote(escalation.NoteFallback)
	m.RecordCreated(e.Tier, e.Status, e.Severity == patterns.SeverityEmergency && !fallback, fallback)
	if ack := e.Timeline.Acknowledged; ack != nil {
		m.RecordResponse(ack.Sub(e.Timeline.Initiated))
	}
	if e.Status.IsTerminal() {
		m.RecordTerminal(e.Status, e.Outcome)
	}
	for _, n := range e.Notes {
		switch n.Tag {
		case escalation.NoteManualEscalation:
			if !strings.HasPrefix(n.Text, initialTierNote) {
				m.RecordOverride()
			}
		case escalation.NoteTimeoutEscalation, escalation.NoteTimeoutRenotify:
			m.RecordTimeout()
		case escalation.NoteNotifyFailed:
			m.RecordNotifyFailure()
		case escalation.NotePersistenceFailed:
			m.RecordPersistenceFailure()
		}
	}
}

func (m *MetricsRecorder) addStatus(s escalation.Status, delta int64) {
	if c, ok := m.byStatus[s]; ok {
		c.Add(delta)
	}
}

// Snapshot returns the current counters and derived rates.
func (m *MetricsRecorder) Snapshot() primary.Metrics {
	snap := primary.Metrics{
		Total:               m.total.Load(),
		ByTier:              make(map[string]int64, len(m.byTier)),
		ByStatus:            make(map[string]int64, len(m.byStatus)),
		Emergencies:         m.emergencies.Load(),
		Fallbacks:           m.fallbacks.Load(),
		Overrides:           m.overrides.Load(),
		Timeouts:            m.timeouts.Load(),
		NotifyFailures:      m.notifyFailures.Load(),
		PersistenceFailures: m.persistenceFailures.Load(),
		Responded:           m.responded.Load(),
		Resolved:            m.resolved.Load(),
		Terminal:            m.terminal.Load(),
		SafeOutcomes:        m.safe.Load(),
	}
	for t := escalation.TierPeerSupport; t <= escalation.TopTier; t++ {
		snap.ByTier[t.String()] = m.byTier[t].Load()
	}
	for s, c := range m.byStatus {
		snap.ByStatus[string(s)] = c.Load()
	}

	if snap.Responded > 0 {
		snap.AverageResponseTime = time.Duration(m.responseNanos.Load() / snap.Responded)
	}
	if snap.Terminal > 0 {
		snap.SuccessRate = float64(snap.Resolved) / float64(snap.Terminal)
	}
	if snap.Resolved > 0 {
		snap.UserSafetyRate = float64(snap.SafeOutcomes) / float64(snap.Resolved)
	}
	return snap
}
