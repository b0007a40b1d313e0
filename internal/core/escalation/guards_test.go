package escalation

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name        string
		from        Status
		to          Status
		wantAllowed bool
		wantReason  string
	}{
		{name: "initiated to acknowledged", from: StatusInitiated, to: StatusAcknowledged, wantAllowed: true},
		{name: "initiated to in-progress", from: StatusInitiated, to: StatusInProgress, wantAllowed: true},
		{name: "initiated to cancelled", from: StatusInitiated, to: StatusCancelled, wantAllowed: true},
		{name: "initiated to failed", from: StatusInitiated, to: StatusFailed, wantAllowed: true},
		{name: "acknowledged to in-progress", from: StatusAcknowledged, to: StatusInProgress, wantAllowed: true},
		{name: "acknowledged to failed", from: StatusAcknowledged, to: StatusFailed, wantAllowed: true},
		{name: "in-progress to resolved", from: StatusInProgress, to: StatusResolved, wantAllowed: true},
		{name: "in-progress to cancelled", from: StatusInProgress, to: StatusCancelled, wantAllowed: true},
		{
			name:       "initiated cannot resolve directly",
			from:       StatusInitiated,
			to:         StatusResolved,
			wantReason: "cannot move escalation escalation-1 from initiated to resolved",
		},
		{
			name:       "acknowledged cannot resolve directly",
			from:       StatusAcknowledged,
			to:         StatusResolved,
			wantReason: "cannot move escalation escalation-1 from acknowledged to resolved",
		},
		{
			name:       "in-progress cannot go back",
			from:       StatusInProgress,
			to:         StatusAcknowledged,
			wantReason: "cannot move escalation escalation-1 from in-progress to acknowledged",
		},
		{
			name:       "self transition rejected",
			from:       StatusAcknowledged,
			to:         StatusAcknowledged,
			wantReason: "cannot move escalation escalation-1 from acknowledged to acknowledged",
		},
		{
			name:       "resolved is terminal",
			from:       StatusResolved,
			to:         StatusInProgress,
			wantReason: "escalation escalation-1 is resolved and cannot change status",
		},
		{
			name:       "cancelled is terminal",
			from:       StatusCancelled,
			to:         StatusFailed,
			wantReason: "escalation escalation-1 is cancelled and cannot change status",
		},
		{
			name:       "unknown target",
			from:       StatusInitiated,
			to:         Status("paused"),
			wantReason: `unknown status "paused" for escalation escalation-1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanTransition(TransitionContext{EscalationID: "escalation-1", From: tt.from, To: tt.to})

			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanTransition() Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("CanTransition() Reason = %q, want %q", result.Reason, tt.wantReason)
			}

			err := result.Error()
			if tt.wantAllowed && err != nil {
				t.Errorf("CanTransition().Error() = %v, want nil", err)
			}
			if !tt.wantAllowed && err == nil {
				t.Error("CanTransition().Error() = nil, want error")
			}
		})
	}
}

func TestCanOverrideTier(t *testing.T) {
	tests := []struct {
		name        string
		ctx         OverrideContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name: "raise with reason",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusInitiated,
				Current:      TierPeerSupport,
				Target:       TierEmergencyTeam,
				Reason:       "counselor judgement",
			},
			wantAllowed: true,
		},
		{
			name: "lower with reason",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusInProgress,
				Current:      TierEmergencyServices,
				Target:       TierCrisisCounselor,
				Reason:       "false positive confirmed by counselor",
			},
			wantAllowed: true,
		},
		{
			name: "reason required",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusInitiated,
				Current:      TierPeerSupport,
				Target:       TierEmergencyTeam,
			},
			wantReason: "a reason is required to override the tier of escalation escalation-1",
		},
		{
			name: "closed escalation",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusResolved,
				Current:      TierPeerSupport,
				Target:       TierEmergencyTeam,
				Reason:       "late",
			},
			wantReason: "escalation escalation-1 is resolved; tier can no longer change",
		},
		{
			name: "same tier",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusInitiated,
				Current:      TierEmergencyTeam,
				Target:       TierEmergencyTeam,
				Reason:       "noop",
			},
			wantReason: "escalation escalation-1 is already at emergency-team",
		},
		{
			name: "unknown tier",
			ctx: OverrideContext{
				EscalationID: "escalation-1",
				Status:       StatusInitiated,
				Current:      TierPeerSupport,
				Target:       Tier(9),
				Reason:       "typo",
			},
			wantReason: "unknown tier tier(9) for escalation escalation-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanOverrideTier(tt.ctx)

			if result.Allowed != tt.wantAllowed {
				t.Errorf("CanOverrideTier() Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("CanOverrideTier() Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}
