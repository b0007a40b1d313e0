// Package patterns holds the lexical pattern library: crisis indicator phrases,
// emotional markers, temporal markers, modifiers and the scoring table that the
// detection and risk packages read. The library is data; nothing here scores text.
package patterns

import (
	"fmt"
	"strings"
)

// Category classifies a crisis indicator.
type Category string

const (
	CategorySuicideIdeation  Category = "suicide-ideation"
	CategorySelfHarm         Category = "self-harm"
	CategoryViolence         Category = "violence"
	CategorySubstanceCrisis  Category = "substance-crisis"
	CategoryAbuseDisclosure  Category = "abuse-disclosure"
	CategoryPanicCrisis      Category = "panic-crisis"
	CategoryMedicalEmergency Category = "medical-emergency"
	CategoryPsychoticEpisode Category = "psychotic-episode"
)

var knownCategories = map[Category]bool{
	CategorySuicideIdeation:  true,
	CategorySelfHarm:         true,
	CategoryViolence:         true,
	CategorySubstanceCrisis:  true,
	CategoryAbuseDisclosure:  true,
	CategoryPanicCrisis:      true,
	CategoryMedicalEmergency: true,
	CategoryPsychoticEpisode: true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return knownCategories[c] }

// Severity is the ordered danger classification: none < low < medium < high < critical < emergency.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
	SeverityEmergency
)

var severityNames = []string{"none", "low", "medium", "high", "critical", "emergency"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityEmergency {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name (case-insensitive).
func ParseSeverity(name string) (Severity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", name)
}

// Lower returns the next lower severity, bottoming out at none.
func (s Severity) Lower() Severity {
	if s <= SeverityNone {
		return SeverityNone
	}
	return s - 1
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Urgency is how soon intervention must occur: none < low < medium < high < immediate.
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyImmediate
)

var urgencyNames = []string{"none", "low", "medium", "high", "immediate"}

func (u Urgency) String() string {
	if u < UrgencyNone || u > UrgencyImmediate {
		return fmt.Sprintf("urgency(%d)", int(u))
	}
	return urgencyNames[u]
}

// ParseUrgency parses an urgency name (case-insensitive).
func ParseUrgency(name string) (Urgency, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range urgencyNames {
		if n == name {
			return Urgency(i), nil
		}
	}
	return UrgencyNone, fmt.Errorf("unknown urgency %q", name)
}

func (u Urgency) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Urgency) UnmarshalText(b []byte) error {
	v, err := ParseUrgency(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Emotion is an emotional state tracked by the second, independent pattern set.
type Emotion string

const (
	EmotionDespair      Emotion = "despair"
	EmotionHopelessness Emotion = "hopelessness"
	EmotionRage         Emotion = "rage"
	EmotionPanic        Emotion = "panic"
	EmotionNumbness     Emotion = "numbness"
	EmotionIsolation    Emotion = "isolation"
)

var knownEmotions = map[Emotion]bool{
	EmotionDespair:      true,
	EmotionHopelessness: true,
	EmotionRage:         true,
	EmotionPanic:        true,
	EmotionNumbness:     true,
	EmotionIsolation:    true,
}

// Valid reports whether e is a known emotion.
func (e Emotion) Valid() bool { return knownEmotions[e] }

// Timeframe buckets how close in time a stated intent is.
type Timeframe string

const (
	TimeframeImmediate   Timeframe = "immediate"
	TimeframeHours       Timeframe = "hours"
	TimeframeDays        Timeframe = "days"
	TimeframeWeeks       Timeframe = "weeks"
	TimeframeUnspecified Timeframe = "unspecified"
)

var timeframeRank = map[Timeframe]int{
	TimeframeUnspecified: 0,
	TimeframeWeeks:       1,
	TimeframeDays:        2,
	TimeframeHours:       3,
	TimeframeImmediate:   4,
}

// Valid reports whether t is a known timeframe.
func (t Timeframe) Valid() bool {
	_, ok := timeframeRank[t]
	return ok
}

// Closer reports whether t is more imminent than other.
func (t Timeframe) Closer(other Timeframe) bool {
	return timeframeRank[t] > timeframeRank[other]
}

// Tags carried by crisis patterns and read by the risk-factor vector.
const (
	TagIdeation        = "ideation"
	TagPlan            = "plan"
	TagMeans           = "means"
	TagLoss            = "loss"
	TagPreviousAttempt = "previous-attempt"
	TagSubstance       = "substance"
	TagIsolation       = "isolation"
)
