package detection

import (
	"sort"

	"github.com/example/triage/internal/core/patterns"
)

// Trend describes how an emotion moved relative to prior messages.
type Trend string

const (
	TrendEscalating   Trend = "escalating"
	TrendStable       Trend = "stable"
	TrendDeescalating Trend = "de-escalating"
)

// EmotionalIndicator is one emotional state detected in the text.
type EmotionalIndicator struct {
	Emotion           patterns.Emotion `json:"emotion"`
	Intensity         float64          `json:"intensity"`
	Trend             Trend            `json:"trend"`
	CrisisCorrelation float64          `json:"crisis_correlation"`
	Markers           []string         `json:"markers"`
}

// Score is the indicator's contribution before aggregation: intensity/10 × correlation.
func (e EmotionalIndicator) Score() float64 {
	return clamp(e.Intensity/10*e.CrisisCorrelation, 0, 1)
}

func (a *Analyzer) detectEmotions(text string, words []word, prior []string) []EmotionalIndicator {
	sc := a.lib.Scoring
	byEmotion := map[patterns.Emotion]*EmotionalIndicator{}
	hits := map[patterns.Emotion]int{}

	for i := range a.lib.Emotions {
		p := &a.lib.Emotions[i]
		for _, loc := range p.FindAll(text) {
			first, last := span(words, loc[0], loc[1])
			intensity := p.Intensity
			if a.amplifiedAround(words, first, last) {
				intensity += sc.AmplifierIntensityBonus
			}
			if a.negatedBefore(words, first) {
				intensity *= sc.NegationConfidenceFactor
			}
			intensity = round(clamp(intensity, 0, 10))

			hits[p.Emotion]++
			ind, ok := byEmotion[p.Emotion]
			if !ok {
				ind = &EmotionalIndicator{
					Emotion:           p.Emotion,
					CrisisCorrelation: a.lib.Correlation(p.Emotion),
				}
				byEmotion[p.Emotion] = ind
			}
			if intensity > ind.Intensity {
				ind.Intensity = intensity
			}
			ind.Markers = appendUnique(ind.Markers, p.Name())
		}
	}

	out := make([]EmotionalIndicator, 0, len(byEmotion))
	for e, ind := range byEmotion {
		ind.Trend = a.trend(e, hits[e], prior)
		sort.Strings(ind.Markers)
		out = append(out, *ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intensity != out[j].Intensity {
			return out[i].Intensity > out[j].Intensity
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}

// trend compares the current hit count for an emotion with the mean per prior message.
func (a *Analyzer) trend(e patterns.Emotion, current int, prior []string) Trend {
	if len(prior) == 0 {
		return TrendStable
	}
	total := 0
	for _, msg := range prior {
		for i := range a.lib.Emotions {
			p := &a.lib.Emotions[i]
			if p.Emotion == e {
				total += len(p.FindAll(msg))
			}
		}
	}
	mean := float64(total) / float64(len(prior))
	switch {
	case float64(current) > mean:
		return TrendEscalating
	case float64(current) < mean:
		return TrendDeescalating
	default:
		return TrendStable
	}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
