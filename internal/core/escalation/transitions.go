package escalation

import "time"

// TransitionResult contains the result of a status transition: the new status
// and the timeline with any timestamps the transition implies.
type TransitionResult struct {
	NewStatus Status
	Timeline  Timeline
}

// ApplyTransition applies a (guarded) status transition and returns the result.
// Timestamp rules:
// - acknowledged sets Acknowledged
// - in-progress sets Started, and Acknowledged if it was never set
// - resolved sets Resolved
// - cancelled and failed set Closed
// Existing timestamps are never overwritten. The caller passes the current time.
func ApplyTransition(tl Timeline, to Status, now time.Time) TransitionResult {
	stamp := func(p **time.Time) {
		if *p == nil {
			t := now
			*p = &t
		}
	}

	switch to {
	case StatusAcknowledged:
		stamp(&tl.Acknowledged)
	case StatusInProgress:
		stamp(&tl.Acknowledged)
		stamp(&tl.Started)
	case StatusResolved:
		stamp(&tl.Resolved)
	case StatusCancelled, StatusFailed:
		stamp(&tl.Closed)
	}
	return TransitionResult{NewStatus: to, Timeline: tl}
}

// NewTimeline returns the timeline of an escalation created at now.
func NewTimeline(now time.Time) Timeline {
	return Timeline{Initiated: now, LastEscalated: now}
}

// InitialStatus returns the initial status for a new escalation.
func InitialStatus() Status {
	return StatusInitiated
}

// ResponseTime is the time from initiation to first acknowledgement.
// ok is false when the escalation has not been acknowledged.
func ResponseTime(tl Timeline) (d time.Duration, ok bool) {
	if tl.Acknowledged == nil {
		return 0, false
	}
	return tl.Acknowledged.Sub(tl.Initiated), true
}
