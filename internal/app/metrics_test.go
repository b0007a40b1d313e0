package app

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
)

func TestMetricsRecorder_Snapshot(t *testing.T) {
	m := NewMetricsRecorder()

	empty := m.Snapshot()
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.UserSafetyRate)
	assert.Zero(t, empty.AverageResponseTime)
	assert.Len(t, empty.ByTier, 4)
	assert.Len(t, empty.ByStatus, len(escalation.AllStatuses))

	m.RecordCreated(escalation.TierCrisisCounselor, escalation.StatusInitiated, false, false)
	m.RecordCreated(escalation.TierEmergencyServices, escalation.StatusInitiated, true, true)
	m.RecordCreated(escalation.TierEmergencyServices, escalation.StatusInProgress, true, false)

	m.RecordTransition(escalation.StatusInitiated, escalation.StatusAcknowledged)
	m.RecordResponse(2 * time.Minute)
	m.RecordTransition(escalation.StatusInitiated, escalation.StatusAcknowledged)
	m.RecordResponse(4 * time.Minute)

	m.RecordTransition(escalation.StatusAcknowledged, escalation.StatusResolved)
	m.RecordTerminal(escalation.StatusResolved, &escalation.Outcome{SafetyAchieved: false})
	m.RecordTransition(escalation.StatusAcknowledged, escalation.StatusResolved)
	m.RecordTerminal(escalation.StatusResolved, nil)
	m.RecordTransition(escalation.StatusInProgress, escalation.StatusFailed)
	m.RecordTerminal(escalation.StatusFailed, nil)
	m.RecordOverride()
	m.RecordTimeout()
	m.RecordNotifyFailure()
	m.RecordPersistenceFailure()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(1), s.ByTier["crisis-counselor"])
	assert.Equal(t, int64(2), s.ByTier["emergency-services"])
	assert.Equal(t, int64(0), s.ByTier["peer-support"])
	assert.Equal(t, int64(2), s.Emergencies)
	assert.Equal(t, int64(1), s.Fallbacks)
	assert.Equal(t, int64(2), s.ByStatus["resolved"])
	assert.Equal(t, int64(1), s.ByStatus["failed"])
	assert.Equal(t, int64(0), s.ByStatus["initiated"])
	assert.Equal(t, 3*time.Minute, s.AverageResponseTime)
	assert.Equal(t, int64(3), s.Terminal)
	assert.Equal(t, int64(2), s.Resolved)
	assert.Equal(t, int64(1), s.SafeOutcomes)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, s.UserSafetyRate, 1e-9)
	assert.Equal(t, int64(1), s.Overrides)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.Equal(t, int64(1), s.NotifyFailures)
	assert.Equal(t, int64(1), s.PersistenceFailures)
}

func TestMetricsRecorder_Concurrent(t *testing.T) {
	m := NewMetricsRecorder()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordCreated(escalation.TierPeerSupport, escalation.StatusInitiated, false, false)
			m.RecordTransition(escalation.StatusInitiated, escalation.StatusCancelled)
			m.RecordTerminal(escalation.StatusCancelled, nil)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(n), s.Total)
	assert.Equal(t, int64(n), s.ByStatus["cancelled"])
	assert.Equal(t, int64(0), s.ByStatus["initiated"])
	assert.Equal(t, int64(n), s.Terminal)
}

func TestMetricsRecorder_IgnoresUnknownValues(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordCreated(escalation.Tier(9), escalation.Status("bogus"), false, false)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Total)
	for _, v := range s.ByTier {
		assert.Zero(t, v)
	}
	assert.NotContains(t, s.ByStatus, "bogus")
}

func TestMetricsRecorder_Replay(t *testing.T) {
	initiated := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)
	ack := initiated.Add(3 * time.Minute)

	m := NewMetricsRecorder()
	m.Replay(&primary.Escalation{
		Tier:     escalation.TierCrisisCounselor,
		Status:   escalation.StatusResolved,
		Severity: patterns.SeverityHigh,
		Timeline: escalation.Timeline{Initiated: initiated, Acknowledged: &ack},
		Outcome:  &escalation.Outcome{SafetyAchieved: true},
		Notes: []escalation.Note{
			{Tag: escalation.NoteManualEscalation, Text: initialTierNote + "crisis-counselor: caller request"},
			{Tag: escalation.NoteManualEscalation, Text: "tier peer-support -> crisis-counselor: reviewed"},
			{Tag: escalation.NoteTimeoutEscalation},
			{Tag: escalation.NoteNotifyFailed},
		},
	})
	m.Replay(&primary.Escalation{
		Tier:     escalation.TierEmergencyServices,
		Status:   escalation.StatusInitiated,
		Severity: patterns.SeverityEmergency,
		Timeline: escalation.Timeline{Initiated: initiated},
		Notes:    []escalation.Note{{Tag: escalation.NoteFallback}, {Tag: escalation.NotePersistenceFailed}},
	})

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(1), s.ByTier["crisis-counselor"])
	assert.Equal(t, int64(1), s.ByStatus["resolved"])
	assert.Equal(t, int64(1), s.ByStatus["initiated"])
	assert.Equal(t, int64(0), s.Emergencies, "fallbacks are not counted as emergencies")
	assert.Equal(t, int64(1), s.Fallbacks)
	assert.Equal(t, int64(1), s.Overrides)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.Equal(t, int64(1), s.NotifyFailures)
	assert.Equal(t, int64(1), s.PersistenceFailures)
	assert.Equal(t, 3*time.Minute, s.AverageResponseTime)
	assert.Equal(t, 1.0, s.UserSafetyRate)
}
