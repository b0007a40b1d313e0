package risk

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/example/triage/internal/core/detection"
	"github.com/example/triage/internal/core/patterns"
)

// Aggregator turns detection results into assessments using the library's scoring table.
type Aggregator struct {
	lib *patterns.Library
}

// NewAggregator creates an Aggregator. A nil library selects the embedded default.
func NewAggregator(lib *patterns.Library) *Aggregator {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Aggregator{lib: lib}
}

// NoIndicators returns the assessment used for empty or unusable input.
func (g *Aggregator) NoIndicators() *Assessment {
	return g.Aggregate(detection.Result{Timeframe: patterns.TimeframeUnspecified}, Context{})
}

// Unanalysed returns the assessment used when analysis itself failed. Nothing
// was read from the message, so it is held at critical severity for a
// responder to review rather than reported as risk-free.
func (g *Aggregator) Unanalysed() *Assessment {
	a := g.NoIndicators()
	immediate := g.minRiskFor(patterns.SeverityCritical)
	a.ImmediateRisk = round(immediate)
	a.ShortTermRisk = round(clamp(0.5 * immediate))
	a.LongTermRisk = round(clamp(0.3 * immediate))
	a.Score = int(math.Round(immediate * 100))
	a.Severity = patterns.SeverityCritical
	a.Urgency = patterns.UrgencyHigh
	a.TimeToIntervention = g.TimeToIntervention(a.Urgency)
	return a
}

// Aggregate combines signals, emotional indicators and context:
//
//	composite = wS × OR(signal scores) + wE × OR(emotion scores) + wR × mean(risk factors)
//
// where OR(x) = 1 - Π(1 - xᵢ), so adding a signal never lowers the composite.
// Severity and urgency come from the threshold table; an always-escalate signal
// forces emergency, and an unnegated signal that mandates intervention raises the
// risk to at least the threshold of its own severity.
func (g *Aggregator) Aggregate(result detection.Result, c Context) *Assessment {
	sc := g.lib.Scoring

	signalScores := make([]float64, len(result.Signals))
	for i, s := range result.Signals {
		signalScores[i] = s.Score()
	}
	emotionScores := make([]float64, len(result.Emotions))
	for i, e := range result.Emotions {
		emotionScores[i] = e.Score()
	}

	factors := g.riskFactors(result, c)
	composite := sc.Weights.Signals*probabilisticOr(signalScores) +
		sc.Weights.Emotions*probabilisticOr(emotionScores) +
		sc.Weights.RiskFactors*factors.Mean()
	composite = clamp(composite)

	forced := false
	floor := patterns.SeverityNone
	for _, s := range result.Signals {
		if s.AlwaysEscalate {
			forced = true
		}
		if s.RequiresIntervention && !s.Negated && s.Severity > floor {
			floor = s.Severity
		}
	}

	immediate := composite
	if forced {
		immediate = math.Max(immediate, g.minRiskFor(patterns.SeverityEmergency))
	} else if floor > patterns.SeverityNone {
		immediate = math.Max(immediate, g.minRiskFor(minSeverity(floor, patterns.SeverityCritical)))
	}

	severity, urgency := g.Classify(immediate, len(result.Signals) > 0)
	if forced {
		severity, urgency = patterns.SeverityEmergency, patterns.UrgencyImmediate
	}

	primary, secondary := g.categories(result.Signals)

	a := &Assessment{
		ImmediateRisk:             round(immediate),
		ShortTermRisk:             round(clamp(0.5*immediate + 0.5*factors.Mean())),
		LongTermRisk:              round(clamp(0.3*immediate + 0.7*factors.ChronicMean())),
		Composite:                 round(composite),
		Score:                     int(math.Round(immediate * 100)),
		Severity:                  severity,
		Urgency:                   urgency,
		Confidence:                round(confidence(result.Signals)),
		PrimaryCategory:           primary,
		SecondaryCategories:       secondary,
		TimelineUrgent:            result.Timeframe == patterns.TimeframeImmediate || result.Timeframe == patterns.TimeframeHours,
		Timeframe:                 result.Timeframe,
		TimeToIntervention:        g.TimeToIntervention(urgency),
		ProtectiveFactors:         normalizeFactors(c.ProtectiveFactors),
		EmergencyServicesRequired: forced || severity == patterns.SeverityEmergency,
		RiskFactors:               factors,
		Signals:                   append([]detection.CrisisSignal{}, result.Signals...),
		Emotions:                  append([]detection.EmotionalIndicator{}, result.Emotions...),
	}
	if a.Timeframe == "" {
		a.Timeframe = patterns.TimeframeUnspecified
	}
	return a
}

// Classify maps a risk in [0,1] onto severity and urgency using the threshold table.
// Below the lowest threshold the result is the floor entry when any signal matched,
// otherwise none/none.
func (g *Aggregator) Classify(risk float64, anySignal bool) (patterns.Severity, patterns.Urgency) {
	sc := g.lib.Scoring
	for _, t := range sc.Thresholds {
		if risk >= t.MinRisk {
			return t.Severity, t.Urgency
		}
	}
	if anySignal {
		return sc.Floor.Severity, sc.Floor.Urgency
	}
	return patterns.SeverityNone, patterns.UrgencyNone
}

// TimeToIntervention is a direct function of urgency.
func (g *Aggregator) TimeToIntervention(u patterns.Urgency) time.Duration {
	return time.Duration(g.lib.Scoring.InterventionMinutes[u]) * time.Minute
}

func (g *Aggregator) minRiskFor(s patterns.Severity) float64 {
	for _, t := range g.lib.Scoring.Thresholds {
		if t.Severity == s {
			return t.MinRisk
		}
	}
	return 0
}

func (g *Aggregator) riskFactors(result detection.Result, c Context) RiskFactors {
	var f RiskFactors
	for _, s := range result.Signals {
		if s.Negated {
			continue
		}
		f.ImmediateRisk = math.Max(f.ImmediateRisk, s.Score())
		if s.HasTag(patterns.TagPlan) {
			f.PlanSpecificity = math.Max(f.PlanSpecificity, s.Confidence)
		}
		if s.HasTag(patterns.TagMeans) {
			f.MeansAccess = math.Max(f.MeansAccess, s.Confidence)
		}
		if s.HasTag(patterns.TagPreviousAttempt) {
			f.PreviousAttempts = math.Max(f.PreviousAttempts, s.Confidence)
		}
		if s.HasTag(patterns.TagSubstance) || s.Category == patterns.CategorySubstanceCrisis {
			f.SubstanceUse = math.Max(f.SubstanceUse, s.Confidence)
		}
		if s.HasTag(patterns.TagLoss) {
			f.RecentLosses = math.Max(f.RecentLosses, s.Confidence)
		}
	}

	var isolation float64
	for _, e := range result.Emotions {
		level := e.Intensity / 10
		switch e.Emotion {
		case patterns.EmotionIsolation:
			isolation = math.Max(isolation, level)
		case patterns.EmotionRage, patterns.EmotionPanic:
			f.Impulsivity = math.Max(f.Impulsivity, level)
		case patterns.EmotionHopelessness, patterns.EmotionDespair:
			f.Hopelessness = math.Max(f.Hopelessness, level)
		}
	}

	support := 0.25 * float64(len(normalizeFactors(c.ProtectiveFactors)))
	f.LackOfSupport = clamp(isolation - support)

	if c.PriorEscalations > 0 {
		f.PreviousAttempts = math.Max(f.PreviousAttempts, clamp(float64(c.PriorEscalations)/3))
	}
	if len(c.MoodHistory) > 0 {
		f.MentalHealthStatus = clamp((10 - mean(c.MoodHistory...)) / 9)
	}

	f.ImmediateRisk = round(f.ImmediateRisk)
	f.PlanSpecificity = round(f.PlanSpecificity)
	f.MeansAccess = round(f.MeansAccess)
	f.LackOfSupport = round(f.LackOfSupport)
	f.PreviousAttempts = round(f.PreviousAttempts)
	f.MentalHealthStatus = round(f.MentalHealthStatus)
	f.SubstanceUse = round(f.SubstanceUse)
	f.RecentLosses = round(f.RecentLosses)
	f.Impulsivity = round(f.Impulsivity)
	f.Hopelessness = round(f.Hopelessness)
	return f
}

// categories ranks categories by summed urgency; ties break toward the more
// severe category in the library's fixed precedence. Negated signals only count
// when nothing else matched.
func (g *Aggregator) categories(signals []detection.CrisisSignal) (patterns.Category, []patterns.Category) {
	sums := map[patterns.Category]float64{}
	for _, s := range signals {
		if !s.Negated {
			sums[s.Category] += s.Urgency
		}
	}
	if len(sums) == 0 {
		for _, s := range signals {
			sums[s.Category] += s.Urgency
		}
	}
	if len(sums) == 0 {
		return "", []patterns.Category{}
	}

	ranked := make([]patterns.Category, 0, len(sums))
	for c := range sums {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := round(sums[ranked[i]]), round(sums[ranked[j]])
		if si != sj {
			return si > sj
		}
		return g.lib.Precedence(ranked[i]) < g.lib.Precedence(ranked[j])
	})
	return ranked[0], ranked[1:]
}

func confidence(signals []detection.CrisisSignal) float64 {
	if len(signals) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range signals {
		sum += s.Confidence
	}
	return clamp(sum / float64(len(signals)))
}

func probabilisticOr(scores []float64) float64 {
	remaining := 1.0
	for _, s := range scores {
		remaining *= 1 - clamp(s)
	}
	return 1 - remaining
}

func normalizeFactors(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func minSeverity(a, b patterns.Severity) patterns.Severity {
	if a < b {
		return a
	}
	return b
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
