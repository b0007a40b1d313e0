package escalation

import (
	"fmt"

	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/core/risk"
)

// TierThresholds are the minimum scores (0-100) for each tier above peer-support.
type TierThresholds struct {
	CrisisCounselor   int `mapstructure:"crisis_counselor"`
	EmergencyTeam     int `mapstructure:"emergency_team"`
	EmergencyServices int `mapstructure:"emergency_services"`
}

// DefaultTierThresholds returns the documented score bands:
// <40 peer-support, <70 crisis-counselor, <90 emergency-team, else emergency-services.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{CrisisCounselor: 40, EmergencyTeam: 70, EmergencyServices: 90}
}

// Validate checks the bands are ascending and within 0-100.
func (th TierThresholds) Validate() error {
	if th.CrisisCounselor <= 0 || th.CrisisCounselor >= th.EmergencyTeam ||
		th.EmergencyTeam >= th.EmergencyServices || th.EmergencyServices > 100 {
		return fmt.Errorf("tier thresholds must satisfy 0 < %d < %d < %d <= 100",
			th.CrisisCounselor, th.EmergencyTeam, th.EmergencyServices)
	}
	return nil
}

// Override is a manual tier choice. It always wins.
type Override struct {
	Tier   Tier
	Reason string
}

// Selection is the outcome of tier selection.
type Selection struct {
	Tier   Tier
	Reason string
	Manual bool
}

// SelectTier maps an assessment to a target tier.
// Rule order: manual override, then EmergencyServicesRequired, then the higher of
// the score band and the severity band. Deterministic and independent of the clock.
func SelectTier(a *risk.Assessment, override *Override, th TierThresholds) Selection {
	if override != nil && override.Tier.Valid() {
		return Selection{Tier: override.Tier, Reason: override.Reason, Manual: true}
	}
	if a == nil {
		return Selection{Tier: TopTier, Reason: "no assessment available"}
	}
	if a.EmergencyServicesRequired {
		return Selection{Tier: TierEmergencyServices, Reason: "emergency services required"}
	}

	byScore := TierForScore(a.Score, th)
	bySeverity := TierForSeverity(a.Severity)
	if bySeverity > byScore {
		return Selection{Tier: bySeverity, Reason: fmt.Sprintf("severity %s", a.Severity)}
	}
	return Selection{Tier: byScore, Reason: fmt.Sprintf("risk score %d", a.Score)}
}

// TierForScore returns the tier band for a 0-100 risk score.
func TierForScore(score int, th TierThresholds) Tier {
	switch {
	case score >= th.EmergencyServices:
		return TierEmergencyServices
	case score >= th.EmergencyTeam:
		return TierEmergencyTeam
	case score >= th.CrisisCounselor:
		return TierCrisisCounselor
	default:
		return TierPeerSupport
	}
}

// TierForSeverity returns the minimum tier a severity warrants.
func TierForSeverity(s patterns.Severity) Tier {
	switch {
	case s >= patterns.SeverityEmergency:
		return TierEmergencyServices
	case s >= patterns.SeverityCritical:
		return TierEmergencyTeam
	case s >= patterns.SeverityHigh:
		return TierCrisisCounselor
	default:
		return TierPeerSupport
	}
}

// Responder returns the responder class assigned to a tier.
func Responder(t Tier) ResponderType {
	switch t {
	case TierCrisisCounselor:
		return ResponderCrisisCounselor
	case TierEmergencyTeam:
		return ResponderEmergencyTeam
	case TierEmergencyServices:
		return ResponderEmergencyServices
	default:
		return ResponderPeerSupporter
	}
}

// Actions taken when an escalation is opened.
const (
	ActionConnectPeer         = "connect-peer-supporter"
	ActionShareResources      = "share-self-help-resources"
	ActionScheduleCheckIn     = "schedule-check-in"
	ActionConnectCounselor    = "connect-crisis-counselor"
	ActionSafetyPlan          = "create-safety-plan"
	ActionShareHotlines       = "share-crisis-hotlines"
	ActionDispatchTeam        = "dispatch-emergency-team"
	ActionContactEmergency    = "contact-emergency-services"
	ActionNotifyContacts      = "notify-emergency-contacts"
	ActionContinuousMonitor   = "continuous-monitoring"
	ActionMeansRestriction    = "means-restriction-guidance"
	ActionMedicalAssessment   = "medical-assessment"
	ActionProtectiveResources = "share-protective-resources"
)

// InitialActions returns the action set for a new escalation at tier t.
// The assessment may be nil.
func InitialActions(t Tier, a *risk.Assessment) []string {
	var actions []string
	switch t {
	case TierPeerSupport:
		actions = []string{ActionConnectPeer, ActionShareResources, ActionScheduleCheckIn}
	case TierCrisisCounselor:
		actions = []string{ActionConnectCounselor, ActionSafetyPlan, ActionShareHotlines}
	case TierEmergencyTeam:
		actions = []string{ActionDispatchTeam, ActionSafetyPlan, ActionShareHotlines, ActionContinuousMonitor}
	default:
		actions = []string{ActionContactEmergency, ActionNotifyContacts, ActionContinuousMonitor}
	}
	if a == nil {
		return actions
	}

	if a.RiskFactors.MeansAccess > 0 {
		actions = append(actions, ActionMeansRestriction)
	}
	switch a.PrimaryCategory {
	case patterns.CategoryMedicalEmergency, patterns.CategorySubstanceCrisis:
		actions = append(actions, ActionMedicalAssessment)
	case patterns.CategoryAbuseDisclosure:
		actions = append(actions, ActionProtectiveResources)
	}
	return actions
}
