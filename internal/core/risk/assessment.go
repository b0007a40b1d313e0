// Package risk combines detection results and user context into a single,
// calibrated risk assessment. This is part of the Functional Core - no I/O.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/example/triage/internal/core/detection"
	"github.com/example/triage/internal/core/patterns"
)

// Context is the optional user/session context that feeds the risk-factor vector.
type Context struct {
	// MoodHistory holds self-reported mood scores on a 1-10 scale, oldest first.
	MoodHistory       []float64
	PriorEscalations  int
	ProtectiveFactors []string
	Language          string
	Region            string
}

// RiskFactors is the structured risk-factor vector; every entry is in [0,1].
type RiskFactors struct {
	ImmediateRisk      float64 `json:"immediate_risk"`
	PlanSpecificity    float64 `json:"plan_specificity"`
	MeansAccess        float64 `json:"means_access"`
	LackOfSupport      float64 `json:"lack_of_support"`
	PreviousAttempts   float64 `json:"previous_attempts"`
	MentalHealthStatus float64 `json:"mental_health_status"`
	SubstanceUse       float64 `json:"substance_use"`
	RecentLosses       float64 `json:"recent_losses"`
	Impulsivity        float64 `json:"impulsivity"`
	Hopelessness       float64 `json:"hopelessness"`
}

// Mean averages all ten factors.
func (f RiskFactors) Mean() float64 {
	return mean(f.ImmediateRisk, f.PlanSpecificity, f.MeansAccess, f.LackOfSupport, f.PreviousAttempts,
		f.MentalHealthStatus, f.SubstanceUse, f.RecentLosses, f.Impulsivity, f.Hopelessness)
}

// ChronicMean averages the factors that persist beyond the current message.
func (f RiskFactors) ChronicMean() float64 {
	return mean(f.PreviousAttempts, f.MentalHealthStatus, f.SubstanceUse, f.RecentLosses, f.Hopelessness)
}

// Assessment is the aggregate of one analysis call. It is built once by the
// Aggregator and never modified afterwards; a new analysis yields a new Assessment.
type Assessment struct {
	ImmediateRisk             float64                        `json:"immediate_risk"`
	ShortTermRisk             float64                        `json:"short_term_risk"`
	LongTermRisk              float64                        `json:"long_term_risk"`
	Composite                 float64                        `json:"composite"`
	Score                     int                            `json:"score"`
	Severity                  patterns.Severity              `json:"severity"`
	Urgency                   patterns.Urgency               `json:"urgency"`
	Confidence                float64                        `json:"confidence"`
	PrimaryCategory           patterns.Category              `json:"primary_category,omitempty"`
	SecondaryCategories       []patterns.Category            `json:"secondary_categories"`
	TimelineUrgent            bool                           `json:"timeline_urgent"`
	Timeframe                 patterns.Timeframe             `json:"timeframe"`
	TimeToIntervention        time.Duration                  `json:"time_to_intervention"`
	ProtectiveFactors         []string                       `json:"protective_factors"`
	EmergencyServicesRequired bool                           `json:"emergency_services_required"`
	RiskFactors               RiskFactors                    `json:"risk_factors"`
	Signals                   []detection.CrisisSignal       `json:"signals"`
	Emotions                  []detection.EmotionalIndicator `json:"emotions"`
}

// HasIndicators reports whether any crisis signal was detected.
func (a *Assessment) HasIndicators() bool { return len(a.Signals) > 0 }

// Validate checks that an assessment is internally consistent enough to drive
// an escalation decision.
func (a *Assessment) Validate() error {
	if a == nil {
		return fmt.Errorf("assessment is nil")
	}
	for name, v := range map[string]float64{
		"immediate risk":  a.ImmediateRisk,
		"short-term risk": a.ShortTermRisk,
		"long-term risk":  a.LongTermRisk,
		"confidence":      a.Confidence,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s %.4f outside [0,1]", name, v)
		}
	}
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("score %d outside [0,100]", a.Score)
	}
	if a.Severity < patterns.SeverityNone || a.Severity > patterns.SeverityEmergency {
		return fmt.Errorf("invalid severity %d", int(a.Severity))
	}
	if a.Urgency < patterns.UrgencyNone || a.Urgency > patterns.UrgencyImmediate {
		return fmt.Errorf("invalid urgency %d", int(a.Urgency))
	}
	return nil
}

func mean(vs ...float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
