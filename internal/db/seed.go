package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Fixture ids are fixed so demos and docs can refer to them.
const (
	SeedOpenEscalationID     = "escalation-5f0c8a52-8d8e-4c3a-9f2e-3b7a1d6e0001"
	SeedResolvedEscalationID = "escalation-5f0c8a52-8d8e-4c3a-9f2e-3b7a1d6e0002"
	SeedEmergencyID          = "emergency-5f0c8a52-8d8e-4c3a-9f2e-3b7a1d6e0003"
)

// SeedFixtures populates the database with development fixtures: two user
// profiles, an open escalation, a resolved one and a direct emergency, with
// their notes and audit events. Timestamps are relative to now.
func SeedFixtures(database *sql.DB) error {
	now := time.Now().UTC().Truncate(time.Second)
	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer tx.Rollback()

	// Profiles
	profiles := []struct{ userID, moods, factors, language, region string }{
		{"user-demo-1", "[6,5,4,3,3]", `["family","therapist"]`, "en", "US"},
		{"user-demo-2", "[7,7,8]", `["pet"]`, "en", "GB"},
	}
	for _, p := range profiles {
		if _, err := tx.Exec(
			"INSERT INTO user_profiles (user_id, mood_history, protective_factors, language, region, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			p.userID, p.moods, p.factors, p.language, p.region, now,
		); err != nil {
			return fmt.Errorf("seed profiles: %w", err)
		}
	}

	// Escalations
	type escalationRow struct {
		id, userID, tier, status, responderID, responderType, severity string
		score                                                          int
		category, actions, region, language                            string
		initiated, lastEscalated                                       time.Time
		acknowledged, started, resolved                                *time.Time
	}
	at := func(d time.Duration) *time.Time { t := ago(d); return &t }
	escalations := []escalationRow{
		{
			id: SeedOpenEscalationID, userID: "user-demo-1",
			tier: "crisis-counselor", status: "initiated", responderType: "crisis-counselor",
			severity: "high", score: 58, category: "suicide-ideation",
			actions: `["Assign a crisis counselor","Share crisis hotline numbers"]`,
			region: "US", language: "en",
			initiated: ago(10 * time.Minute), lastEscalated: ago(10 * time.Minute),
		},
		{
			id: SeedResolvedEscalationID, userID: "user-demo-2",
			tier: "peer-support", status: "resolved", responderID: "peer-12", responderType: "peer-supporter",
			severity: "low", score: 22, category: "panic-crisis",
			actions: `["Connect with a peer supporter"]`,
			region: "GB", language: "en",
			initiated: ago(26 * time.Hour), lastEscalated: ago(26 * time.Hour),
			acknowledged: at(26*time.Hour - 4*time.Minute), started: at(26*time.Hour - 4*time.Minute),
			resolved: at(25 * time.Hour),
		},
		{
			id: SeedEmergencyID, userID: "user-demo-1",
			tier: "emergency-services", status: "in-progress", responderType: "emergency-services",
			severity: "emergency", score: 100, category: "suicide-ideation",
			actions: `["Contact emergency services"]`,
			region: "US", language: "en",
			initiated: ago(3 * time.Hour), lastEscalated: ago(3 * time.Hour),
			acknowledged: at(3 * time.Hour), started: at(3 * time.Hour),
		},
	}
	for _, e := range escalations {
		var followup, safe, nextSteps any
		if e.status == "resolved" {
			followup, safe, nextSteps = 1, 1, `["Check in next week"]`
		}
		if _, err := tx.Exec(`INSERT INTO escalations (
			id, user_id, tier, status, responder_id, responder_type, severity, score, primary_category,
			actions, region, language, initiated_at, acknowledged_at, started_at, resolved_at,
			last_escalated_at, outcome_requires_followup, outcome_safety_achieved, outcome_next_steps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.id, e.userID, e.tier, e.status, nullable(e.responderID), e.responderType, e.severity, e.score, e.category,
			e.actions, e.region, e.language, e.initiated, e.acknowledged, e.started, e.resolved,
			e.lastEscalated, followup, safe, nextSteps,
		); err != nil {
			return fmt.Errorf("seed escalations: %w", err)
		}
	}

	// Notes
	notes := []struct {
		escalationID, tag, text, actor string
		at                             time.Time
	}{
		{SeedOpenEscalationID, "assessment", "score 58, severity high, urgency high; score band", "system", ago(10 * time.Minute)},
		{SeedOpenEscalationID, "contact-routing", "988 Suicide & Crisis Lifeline (988, crisis)", "system", ago(10 * time.Minute)},
		{SeedResolvedEscalationID, "assessment", "score 22, severity low, urgency low; score band", "system", ago(26 * time.Hour)},
		{SeedResolvedEscalationID, "status", "initiated -> in-progress", "peer-12", ago(26*time.Hour - 4*time.Minute)},
		{SeedResolvedEscalationID, "status", "in-progress -> resolved: feeling better after the call", "peer-12", ago(25 * time.Hour)},
		{SeedEmergencyID, "emergency", "suicide-ideation: demo emergency", "system", ago(3 * time.Hour)},
	}
	for _, n := range notes {
		if _, err := tx.Exec(
			"INSERT INTO escalation_notes (escalation_id, tag, text, actor_id, created_at) VALUES (?, ?, ?, ?, ?)",
			n.escalationID, n.tag, n.text, n.actor, n.at,
		); err != nil {
			return fmt.Errorf("seed notes: %w", err)
		}
	}

	// Audit events
	events := []struct {
		escalationID, action, field, oldValue, newValue, actor string
		at                                                     time.Time
	}{
		{SeedOpenEscalationID, "create", "tier", "", "crisis-counselor", "system", ago(10 * time.Minute)},
		{SeedResolvedEscalationID, "create", "tier", "", "peer-support", "system", ago(26 * time.Hour)},
		{SeedResolvedEscalationID, "transition", "status", "initiated", "in-progress", "peer-12", ago(26*time.Hour - 4*time.Minute)},
		{SeedResolvedEscalationID, "transition", "status", "in-progress", "resolved", "peer-12", ago(25 * time.Hour)},
		{SeedEmergencyID, "create", "tier", "", "emergency-services", "system", ago(3 * time.Hour)},
	}
	for _, ev := range events {
		if _, err := tx.Exec(
			"INSERT INTO escalation_events (escalation_id, timestamp, actor_id, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?)",
			ev.escalationID, ev.at, ev.actor, ev.action, ev.field, ev.oldValue, ev.newValue,
		); err != nil {
			return fmt.Errorf("seed audit events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
