// Package escalation contains the pure business logic for crisis escalations:
// tier selection, the status state machine, timeout rules and id formats.
// This is part of the Functional Core - no I/O, only pure functions.
package escalation

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a responder capability class. Tiers are ordered; a higher tier is a
// more capable (and more intrusive) response.
type Tier int

const (
	TierPeerSupport Tier = iota + 1
	TierCrisisCounselor
	TierEmergencyTeam
	TierEmergencyServices
)

// TopTier is the highest-safety tier.
const TopTier = TierEmergencyServices

var tierNames = map[Tier]string{
	TierPeerSupport:       "peer-support",
	TierCrisisCounselor:   "crisis-counselor",
	TierEmergencyTeam:     "emergency-team",
	TierEmergencyServices: "emergency-services",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// Next returns the tier one step up, or t itself at the top.
func (t Tier) Next() Tier {
	if t >= TopTier {
		return TopTier
	}
	return t + 1
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Status represents the lifecycle state of an escalation.
type Status string

const (
	StatusInitiated    Status = "initiated"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in-progress"
	StatusResolved     Status = "resolved"
	StatusCancelled    Status = "cancelled"
	StatusFailed       Status = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusInitiated, StatusAcknowledged, StatusInProgress,
	StatusResolved, StatusCancelled, StatusFailed,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusCancelled || s == StatusFailed
}

// ResponderType is the class of responder assigned to a tier.
type ResponderType string

const (
	ResponderPeerSupporter     ResponderType = "peer-supporter"
	ResponderCrisisCounselor   ResponderType = "crisis-counselor"
	ResponderEmergencyTeam     ResponderType = "emergency-response-team"
	ResponderEmergencyServices ResponderType = "emergency-services"
)

// Note tags. Notes are append-only.
const (
	NoteAssessment        = "assessment"
	NoteFallback          = "fallback"
	NoteManualEscalation  = "manual-escalation"
	NoteEmergency         = "emergency"
	NoteStatus            = "status"
	NotePersistenceFailed = "persistence-failed"
	NoteNotifyFailed      = "notify-failed"
	NoteContactRouting    = "contact-routing"
	NoteTimeoutEscalation = "timeout-escalation"
	NoteTimeoutRenotify   = "timeout-renotify"
)

// Note is one append-only entry in an escalation's history.
type Note struct {
	Tag   string    `json:"tag"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
	Actor string    `json:"actor,omitempty"`
}

// Timeline records when an escalation reached each lifecycle point.
// Closed is set when the escalation ends cancelled or failed.
type Timeline struct {
	Initiated     time.Time  `json:"initiated"`
	Acknowledged  *time.Time `json:"acknowledged,omitempty"`
	Started       *time.Time `json:"started,omitempty"`
	Resolved      *time.Time `json:"resolved,omitempty"`
	Closed        *time.Time `json:"closed,omitempty"`
	LastEscalated time.Time  `json:"last_escalated"`
}

// Outcome is the caller-reported result of an escalation.
type Outcome struct {
	RequiresFollowup bool     `json:"requires_followup"`
	SafetyAchieved   bool     `json:"safety_achieved"`
	NextSteps        []string `json:"next_steps"`
}
