package escalation

import (
	"strings"
	"testing"
	"time"
)

func TestEvaluateTimeout(t *testing.T) {
	base := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	sla := DefaultSLA()

	tests := []struct {
		name string
		ctx  TimeoutContext
		want TimeoutAction
	}{
		{
			name: "within window",
			ctx:  TimeoutContext{Status: StatusInitiated, Tier: TierPeerSupport, LastEscalated: base, Now: base.Add(29 * time.Minute)},
			want: TimeoutNone,
		},
		{
			name: "exactly at window",
			ctx:  TimeoutContext{Status: StatusInitiated, Tier: TierCrisisCounselor, LastEscalated: base, Now: base.Add(15 * time.Minute)},
			want: TimeoutNone,
		},
		{
			name: "overdue below top tier escalates",
			ctx:  TimeoutContext{Status: StatusInitiated, Tier: TierEmergencyTeam, LastEscalated: base, Now: base.Add(6 * time.Minute)},
			want: TimeoutEscalate,
		},
		{
			name: "overdue acknowledged escalates",
			ctx:  TimeoutContext{Status: StatusAcknowledged, Tier: TierPeerSupport, LastEscalated: base, Now: base.Add(31 * time.Minute)},
			want: TimeoutEscalate,
		},
		{
			name: "overdue at top tier renotifies",
			ctx:  TimeoutContext{Status: StatusInitiated, Tier: TierEmergencyServices, LastEscalated: base, Now: base.Add(3 * time.Minute)},
			want: TimeoutRenotify,
		},
		{
			name: "in-progress is never swept",
			ctx:  TimeoutContext{Status: StatusInProgress, Tier: TierPeerSupport, LastEscalated: base, Now: base.Add(time.Hour)},
			want: TimeoutNone,
		},
		{
			name: "terminal is never swept",
			ctx:  TimeoutContext{Status: StatusResolved, Tier: TierPeerSupport, LastEscalated: base, Now: base.Add(time.Hour)},
			want: TimeoutNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateTimeout(tt.ctx, sla); got != tt.want {
				t.Errorf("EvaluateTimeout() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSLA_Validate(t *testing.T) {
	if err := DefaultSLA().Validate(); err != nil {
		t.Errorf("default SLA invalid: %v", err)
	}
	sla := DefaultSLA()
	delete(sla, TierEmergencyTeam)
	err := sla.Validate()
	if err == nil || !strings.Contains(err.Error(), "emergency-team") {
		t.Errorf("Validate() = %v, want error naming emergency-team", err)
	}
}

func TestIDs(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("ids should be unique")
	}
	if !strings.HasPrefix(a, "escalation-") || !ValidID(a) {
		t.Errorf("NewID() = %q", a)
	}
	e := NewEmergencyID()
	if !IsEmergencyID(e) || !ValidID(e) {
		t.Errorf("NewEmergencyID() = %q", e)
	}
	if IsEmergencyID(a) {
		t.Error("escalation id reported as emergency")
	}
	if ValidID("MISSION-001") || ValidID("escalation-not-a-uuid") {
		t.Error("ValidID accepted a malformed id")
	}
}
