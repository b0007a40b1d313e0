package app

import (
	"fmt"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// escalationToRecord converts a boundary escalation into its stored form.
func escalationToRecord(e *primary.Escalation) *secondary.EscalationRecord {
	r := &secondary.EscalationRecord{
		ID:              e.ID,
		UserID:          e.UserID,
		Tier:            e.Tier.String(),
		Status:          string(e.Status),
		ResponderID:     e.ResponderID,
		ResponderType:   string(e.ResponderType),
		Severity:        e.Severity.String(),
		Score:           e.Score,
		PrimaryCategory: string(e.PrimaryCategory),
		Actions:         append([]string(nil), e.Actions...),
		Region:          e.Region,
		Language:        e.Language,
		SessionID:       e.SessionID,
		InitiatedAt:     e.Timeline.Initiated,
		AcknowledgedAt:  e.Timeline.Acknowledged,
		StartedAt:       e.Timeline.Started,
		ResolvedAt:      e.Timeline.Resolved,
		ClosedAt:        e.Timeline.Closed,
		LastEscalatedAt: e.Timeline.LastEscalated,
		Notes:           notesToRecords(e.Notes),
	}
	if e.Outcome != nil {
		r.Outcome = &secondary.OutcomeRecord{
			RequiresFollowup: e.Outcome.RequiresFollowup,
			SafetyAchieved:   e.Outcome.SafetyAchieved,
			NextSteps:        append([]string(nil), e.Outcome.NextSteps...),
		}
	}
	return r
}

// recordToEscalation converts a stored escalation back into its boundary form.
func recordToEscalation(r *secondary.EscalationRecord) (*primary.Escalation, error) {
	tier, err := escalation.ParseTier(r.Tier)
	if err != nil {
		return nil, fmt.Errorf("escalation %s: %w", r.ID, err)
	}
	status := escalation.Status(r.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("escalation %s: unknown status %q", r.ID, r.Status)
	}
	severity, err := patterns.ParseSeverity(r.Severity)
	if err != nil {
		return nil, fmt.Errorf("escalation %s: %w", r.ID, err)
	}

	e := &primary.Escalation{
		ID:              r.ID,
		UserID:          r.UserID,
		Tier:            tier,
		Status:          status,
		ResponderID:     r.ResponderID,
		ResponderType:   escalation.ResponderType(r.ResponderType),
		Severity:        severity,
		Score:           r.Score,
		PrimaryCategory: patterns.Category(r.PrimaryCategory),
		Actions:         append([]string(nil), r.Actions...),
		Region:          r.Region,
		Language:        r.Language,
		SessionID:       r.SessionID,
		Timeline: escalation.Timeline{
			Initiated:     r.InitiatedAt,
			Acknowledged:  r.AcknowledgedAt,
			Started:       r.StartedAt,
			Resolved:      r.ResolvedAt,
			Closed:        r.ClosedAt,
			LastEscalated: r.LastEscalatedAt,
		},
	}
	for _, n := range r.Notes {
		e.Notes = append(e.Notes, escalation.Note{Tag: n.Tag, Text: n.Text, At: n.CreatedAt, Actor: n.ActorID})
	}
	if r.Outcome != nil {
		e.Outcome = &escalation.Outcome{
			RequiresFollowup: r.Outcome.RequiresFollowup,
			SafetyAchieved:   r.Outcome.SafetyAchieved,
			NextSteps:        append([]string(nil), r.Outcome.NextSteps...),
		}
	}
	return e, nil
}

func notesToRecords(notes []escalation.Note) []secondary.NoteRecord {
	out := make([]secondary.NoteRecord, len(notes))
	for i, n := range notes {
		out[i] = secondary.NoteRecord{Tag: n.Tag, Text: n.Text, ActorID: n.Actor, CreatedAt: n.At}
	}
	return out
}
