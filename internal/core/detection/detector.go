// Package detection scans free text against the pattern library and produces
// crisis signals and emotional indicators. This is part of the Functional Core:
// Analyze is a pure function of its input and the (read-only) library.
package detection

import (
	"sort"
	"strings"

	"github.com/example/triage/internal/core/patterns"
)

// RuleAlwaysEscalate marks a signal whose pattern is on the always-escalate list.
const RuleAlwaysEscalate = "always-escalate"

// CrisisSignal is one matched crisis indicator. Values are never modified after Analyze returns.
type CrisisSignal struct {
	Pattern              string            `json:"pattern"`
	Category             patterns.Category `json:"category"`
	Severity             patterns.Severity `json:"severity"`
	Confidence           float64           `json:"confidence"`
	Offset               int               `json:"offset"`
	WordIndex            int               `json:"word_index"`
	Window               string            `json:"window"`
	Urgency              float64           `json:"urgency"`
	RequiresIntervention bool              `json:"requires_intervention"`
	AlwaysEscalate       bool              `json:"always_escalate"`
	Rule                 string            `json:"rule,omitempty"`
	Negated              bool              `json:"negated,omitempty"`
	Amplified            bool              `json:"amplified,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
}

// HasTag reports whether the signal carries tag.
func (s CrisisSignal) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Score is the signal's contribution before aggregation: confidence × urgency/10.
func (s CrisisSignal) Score() float64 {
	return clamp(s.Confidence*s.Urgency/10, 0, 1)
}

// Result is everything Analyze derives from one message.
type Result struct {
	Normalized string               `json:"normalized"`
	Signals    []CrisisSignal       `json:"signals"`
	Emotions   []EmotionalIndicator `json:"emotions"`
	Timeframe  patterns.Timeframe   `json:"timeframe"`
}

// Analyzer scans text with a fixed pattern library.
type Analyzer struct {
	lib *patterns.Library
}

// NewAnalyzer creates an Analyzer. A nil library selects the embedded default.
func NewAnalyzer(lib *patterns.Library) *Analyzer {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Analyzer{lib: lib}
}

// Library returns the analyzer's pattern library.
func (a *Analyzer) Library() *patterns.Library { return a.lib }

// Analyze scans text (and optional prior messages for corroboration and trend)
// and returns the signals and emotional indicators found. Empty input yields an
// empty result, never an error.
func (a *Analyzer) Analyze(text string, prior []string) Result {
	normalized := Normalize(text)
	result := Result{
		Normalized: normalized,
		Signals:    []CrisisSignal{},
		Emotions:   []EmotionalIndicator{},
		Timeframe:  patterns.TimeframeUnspecified,
	}
	if normalized == "" {
		return result
	}

	normalizedPrior := make([]string, 0, len(prior))
	for _, p := range prior {
		if n := Normalize(p); n != "" {
			normalizedPrior = append(normalizedPrior, n)
		}
	}

	words := tokenize(normalized)
	result.Timeframe = a.detectTimeframe(normalized)
	result.Signals = a.detectSignals(normalized, words, result.Timeframe, normalizedPrior)
	result.Emotions = a.detectEmotions(normalized, words, normalizedPrior)
	return result
}

// detectTimeframe returns the most imminent timeframe mentioned anywhere in text.
func (a *Analyzer) detectTimeframe(text string) patterns.Timeframe {
	tf := patterns.TimeframeUnspecified
	for i := range a.lib.Temporal {
		m := &a.lib.Temporal[i]
		if m.Timeframe.Closer(tf) && m.Matches(text) {
			tf = m.Timeframe
		}
	}
	return tf
}

type rawMatch struct {
	pattern     *patterns.CrisisPattern
	start, end  int
	first, last int
}

func (a *Analyzer) detectSignals(text string, words []word, tf patterns.Timeframe, prior []string) []CrisisSignal {
	var matches []rawMatch
	categories := map[patterns.Category]bool{}
	for i := range a.lib.Crisis {
		p := &a.lib.Crisis[i]
		for _, loc := range p.FindAll(text) {
			first, last := span(words, loc[0], loc[1])
			matches = append(matches, rawMatch{pattern: p, start: loc[0], end: loc[1], first: first, last: last})
			categories[p.Category] = true
		}
	}
	if len(matches) == 0 {
		return []CrisisSignal{}
	}

	priorCategories := a.priorCategories(prior)
	sc := a.lib.Scoring

	signals := make([]CrisisSignal, 0, len(matches))
	for _, m := range matches {
		negated := a.negatedBefore(words, m.first)
		amplified := a.amplifiedAround(words, m.first, m.last)

		confidence := m.pattern.Weight
		confidence += sc.CorroborationBonus * float64(len(categories)-1)
		if priorCategories[m.pattern.Category] {
			confidence += sc.PriorContextBonus
		}
		if amplified {
			confidence += sc.AmplifierConfidenceBonus
		}

		severity := m.pattern.Severity
		if negated {
			confidence *= sc.NegationConfidenceFactor
			severity = severity.Lower()
		}

		urgency := sc.SeverityUrgency[severity] + sc.TimeframeBonus[tf]
		if amplified {
			urgency += sc.AmplifierUrgencyBonus
		}
		if negated {
			urgency *= sc.NegationConfidenceFactor
		}

		sig := CrisisSignal{
			Pattern:    m.pattern.Name(),
			Category:   m.pattern.Category,
			Severity:   severity,
			Confidence: round(clamp(confidence, 0, 1)),
			Offset:     m.start,
			WordIndex:  m.first,
			Window:     window(text, words, m.first, m.last, sc.WindowRadius),
			Urgency:    round(clamp(urgency, 0, 10)),
			Negated:    negated,
			Amplified:  amplified,
			Tags:       append([]string(nil), m.pattern.Tags...),
		}
		if m.pattern.AlwaysEscalate && !negated {
			sig.AlwaysEscalate = true
			sig.Rule = RuleAlwaysEscalate
		}
		sig.RequiresIntervention = sig.AlwaysEscalate || (!negated && severity >= patterns.SeverityCritical)
		signals = append(signals, sig)
	}

	a.applyRules(signals, tf)

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Offset != signals[j].Offset {
			return signals[i].Offset < signals[j].Offset
		}
		pi, pj := a.lib.Precedence(signals[i].Category), a.lib.Precedence(signals[j].Category)
		if pi != pj {
			return pi < pj
		}
		return signals[i].Pattern < signals[j].Pattern
	})
	return signals
}

// applyRules marks signals that complete an escalation rule (a combination of
// tags across unnegated signals plus a close enough timeframe).
func (a *Analyzer) applyRules(signals []CrisisSignal, tf patterns.Timeframe) {
	present := map[string]bool{}
	for _, s := range signals {
		if s.Negated {
			continue
		}
		for _, t := range s.Tags {
			present[t] = true
		}
	}

	for _, rule := range a.lib.Rules {
		if rule.Timeframe.Closer(tf) {
			continue
		}
		complete := true
		for _, t := range rule.AllTags {
			if !present[t] {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for i := range signals {
			if signals[i].Negated || signals[i].AlwaysEscalate {
				continue
			}
			for _, t := range rule.AllTags {
				if signals[i].HasTag(t) {
					signals[i].AlwaysEscalate = true
					signals[i].RequiresIntervention = true
					signals[i].Rule = rule.Name
					break
				}
			}
		}
	}
}

func (a *Analyzer) priorCategories(prior []string) map[patterns.Category]bool {
	seen := map[patterns.Category]bool{}
	for _, msg := range prior {
		for i := range a.lib.Crisis {
			p := &a.lib.Crisis[i]
			if !seen[p.Category] && len(p.FindAll(msg)) > 0 {
				seen[p.Category] = true
			}
		}
	}
	return seen
}

// negatedBefore reports whether a negation word occurs in the lookback words before first.
func (a *Analyzer) negatedBefore(words []word, first int) bool {
	from := first - a.lib.Scoring.NegationLookback
	if from < 0 {
		from = 0
	}
	for i := from; i < first; i++ {
		if a.lib.IsNegation(words[i].text) {
			return true
		}
	}
	return false
}

// amplifiedAround reports whether an amplifier occurs within the window around [first, last].
func (a *Analyzer) amplifiedAround(words []word, first, last int) bool {
	lo, hi := bounds(len(words), first, last, a.lib.Scoring.WindowRadius)
	for i := lo; i <= hi; i++ {
		if a.lib.IsAmplifier(words[i].text) {
			return true
		}
	}
	return false
}

func window(text string, words []word, first, last, radius int) string {
	lo, hi := bounds(len(words), first, last, radius)
	return strings.TrimSpace(text[words[lo].start:words[hi].end])
}

func bounds(n, first, last, radius int) (lo, hi int) {
	lo, hi = first-radius, last+radius
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round keeps scores stable to four decimals so identical input compares equal field-for-field.
func round(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
