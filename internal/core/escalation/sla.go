package escalation

import (
	"fmt"
	"time"
)

// SLA is the maximum time an escalation may wait for a responder at each tier
// before the timeout sweep acts on it.
type SLA map[Tier]time.Duration

// DefaultSLA returns the default response windows.
func DefaultSLA() SLA {
	return SLA{
		TierPeerSupport:       30 * time.Minute,
		TierCrisisCounselor:   15 * time.Minute,
		TierEmergencyTeam:     5 * time.Minute,
		TierEmergencyServices: 2 * time.Minute,
	}
}

// Validate checks that every tier has a positive window.
func (s SLA) Validate() error {
	for t := range tierNames {
		if s[t] <= 0 {
			return fmt.Errorf("sla for %s must be positive, got %s", t, s[t])
		}
	}
	return nil
}

// TimeoutAction is what the sweep does with an overdue escalation.
type TimeoutAction int

const (
	// TimeoutNone means the escalation is not overdue.
	TimeoutNone TimeoutAction = iota
	// TimeoutEscalate raises the escalation one tier.
	TimeoutEscalate
	// TimeoutRenotify re-sends the notification at the top tier.
	TimeoutRenotify
)

// TimeoutContext provides the state needed to decide on a timeout.
type TimeoutContext struct {
	Status        Status
	Tier          Tier
	LastEscalated time.Time
	Now           time.Time
}

// EvaluateTimeout decides whether an escalation has waited too long for a responder.
// Only initiated and acknowledged escalations are subject to the sweep.
func EvaluateTimeout(ctx TimeoutContext, sla SLA) TimeoutAction {
	if ctx.Status != StatusInitiated && ctx.Status != StatusAcknowledged {
		return TimeoutNone
	}
	window, ok := sla[ctx.Tier]
	if !ok || ctx.Now.Sub(ctx.LastEscalated) <= window {
		return TimeoutNone
	}
	if ctx.Tier >= TopTier {
		return TimeoutRenotify
	}
	return TimeoutEscalate
}
