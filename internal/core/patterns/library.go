package patterns

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var defaultLibrary []byte

// Library is the complete pattern and scoring table. It is read-only once
// loaded and safe for concurrent use.
type Library struct {
	Version      int                 `yaml:"version"`
	Scoring      Scoring             `yaml:"scoring"`
	Crisis       []CrisisPattern     `yaml:"crisis"`
	Emotions     []EmotionPattern    `yaml:"emotions"`
	Correlations map[Emotion]float64 `yaml:"correlations"`
	Temporal     []TemporalMarker    `yaml:"temporal"`
	Negations    []string            `yaml:"negations"`
	Amplifiers   []string            `yaml:"amplifiers"`
	Rules        []EscalationRule    `yaml:"escalation_rules"`

	negations  map[string]bool
	amplifiers map[string]bool
	precedence map[Category]int
}

// CrisisPattern is one crisis indicator. Exactly one of Phrase or Regex is set.
type CrisisPattern struct {
	Phrase         string   `yaml:"phrase,omitempty"`
	Regex          string   `yaml:"regex,omitempty"`
	Category       Category `yaml:"category"`
	Severity       Severity `yaml:"severity"`
	Weight         float64  `yaml:"weight"`
	Tags           []string `yaml:"tags,omitempty"`
	AlwaysEscalate bool     `yaml:"always_escalate,omitempty"`

	re *regexp.Regexp
}

// EmotionPattern is one emotional-state marker.
type EmotionPattern struct {
	Phrase    string  `yaml:"phrase,omitempty"`
	Regex     string  `yaml:"regex,omitempty"`
	Emotion   Emotion `yaml:"emotion"`
	Intensity float64 `yaml:"intensity"`

	re *regexp.Regexp
}

// TemporalMarker maps a phrase to a timeframe bucket.
type TemporalMarker struct {
	Phrase    string    `yaml:"phrase,omitempty"`
	Regex     string    `yaml:"regex,omitempty"`
	Timeframe Timeframe `yaml:"timeframe"`

	re *regexp.Regexp
}

// EscalationRule mandates intervention when every listed tag is present among
// unnegated signals and the text's timeframe is at least as close as Timeframe.
type EscalationRule struct {
	Name      string    `yaml:"name"`
	AllTags   []string  `yaml:"all_tags"`
	Timeframe Timeframe `yaml:"timeframe,omitempty"`
}

// Threshold maps a minimum composite risk to a severity and urgency.
type Threshold struct {
	MinRisk  float64  `yaml:"min_risk"`
	Severity Severity `yaml:"severity"`
	Urgency  Urgency  `yaml:"urgency"`
}

// Weights are the aggregate weights of the three risk components.
type Weights struct {
	Signals     float64 `yaml:"signals"`
	Emotions    float64 `yaml:"emotions"`
	RiskFactors float64 `yaml:"risk_factors"`
}

// Scoring holds every tunable number used by detection and aggregation.
type Scoring struct {
	WindowRadius             int                   `yaml:"window_radius"`
	NegationLookback         int                   `yaml:"negation_lookback"`
	NegationConfidenceFactor float64               `yaml:"negation_confidence_factor"`
	AmplifierConfidenceBonus float64               `yaml:"amplifier_confidence_bonus"`
	AmplifierUrgencyBonus    float64               `yaml:"amplifier_urgency_bonus"`
	AmplifierIntensityBonus  float64               `yaml:"amplifier_intensity_bonus"`
	CorroborationBonus       float64               `yaml:"corroboration_bonus"`
	PriorContextBonus        float64               `yaml:"prior_context_bonus"`
	Weights                  Weights               `yaml:"weights"`
	SeverityUrgency          map[Severity]float64  `yaml:"severity_urgency"`
	TimeframeBonus           map[Timeframe]float64 `yaml:"timeframe_bonus"`
	Thresholds               []Threshold           `yaml:"thresholds"`
	Floor                    Threshold             `yaml:"floor"`
	InterventionMinutes      map[Urgency]int       `yaml:"intervention_minutes"`
	CategoryPrecedence       []Category            `yaml:"category_precedence"`
}

// Default returns the embedded library. It panics only if the embedded data
// is invalid, which the package tests guard against.
func Default() *Library {
	lib, err := Load(bytes.NewReader(defaultLibrary))
	if err != nil {
		panic(fmt.Sprintf("embedded pattern library is invalid: %v", err))
	}
	return lib
}

// LoadFile reads a library from a YAML file.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern library: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes, validates and compiles a library.
func Load(r io.Reader) (*Library, error) {
	var lib Library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lib); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library: %w", err)
	}
	if err := lib.compile(); err != nil {
		return nil, err
	}
	return &lib, nil
}

func (l *Library) compile() error {
	if err := l.Scoring.validate(); err != nil {
		return err
	}

	for i := range l.Crisis {
		p := &l.Crisis[i]
		if !p.Category.Valid() {
			return fmt.Errorf("crisis pattern %d: unknown category %q", i, p.Category)
		}
		if p.Weight < 0 || p.Weight > 1 {
			return fmt.Errorf("crisis pattern %d: weight %.2f outside [0,1]", i, p.Weight)
		}
		re, err := compilePattern(p.Phrase, p.Regex)
		if err != nil {
			return fmt.Errorf("crisis pattern %d: %w", i, err)
		}
		p.re = re
	}

	for i := range l.Emotions {
		p := &l.Emotions[i]
		if !p.Emotion.Valid() {
			return fmt.Errorf("emotion pattern %d: unknown emotion %q", i, p.Emotion)
		}
		if p.Intensity < 0 || p.Intensity > 10 {
			return fmt.Errorf("emotion pattern %d: intensity %.1f outside [0,10]", i, p.Intensity)
		}
		re, err := compilePattern(p.Phrase, p.Regex)
		if err != nil {
			return fmt.Errorf("emotion pattern %d: %w", i, err)
		}
		p.re = re
	}

	for e, c := range l.Correlations {
		if !e.Valid() {
			return fmt.Errorf("correlation for unknown emotion %q", e)
		}
		if c < 0 || c > 1 {
			return fmt.Errorf("correlation for %s %.2f outside [0,1]", e, c)
		}
	}

	for i := range l.Temporal {
		m := &l.Temporal[i]
		if !m.Timeframe.Valid() {
			return fmt.Errorf("temporal marker %d: unknown timeframe %q", i, m.Timeframe)
		}
		re, err := compilePattern(m.Phrase, m.Regex)
		if err != nil {
			return fmt.Errorf("temporal marker %d: %w", i, err)
		}
		m.re = re
	}

	for i, r := range l.Rules {
		if len(r.AllTags) == 0 {
			return fmt.Errorf("escalation rule %q: all_tags is empty", r.Name)
		}
		if r.Timeframe == "" {
			l.Rules[i].Timeframe = TimeframeUnspecified
		} else if !r.Timeframe.Valid() {
			return fmt.Errorf("escalation rule %q: unknown timeframe %q", r.Name, r.Timeframe)
		}
	}

	l.negations = wordSet(l.Negations)
	l.amplifiers = wordSet(l.Amplifiers)
	l.precedence = make(map[Category]int, len(l.Scoring.CategoryPrecedence))
	for i, c := range l.Scoring.CategoryPrecedence {
		if !c.Valid() {
			return fmt.Errorf("category precedence: unknown category %q", c)
		}
		l.precedence[c] = i
	}
	return nil
}

func (s *Scoring) validate() error {
	w := s.Weights
	if w.Signals < 0 || w.Emotions < 0 || w.RiskFactors < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if sum := w.Signals + w.Emotions + w.RiskFactors; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1 (got %.3f)", sum)
	}
	if s.WindowRadius <= 0 {
		return fmt.Errorf("scoring window_radius must be positive")
	}
	if len(s.Thresholds) == 0 {
		return fmt.Errorf("scoring thresholds are empty")
	}
	sort.SliceStable(s.Thresholds, func(i, j int) bool {
		return s.Thresholds[i].MinRisk > s.Thresholds[j].MinRisk
	})
	for _, u := range []Urgency{UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyImmediate} {
		if _, ok := s.InterventionMinutes[u]; !ok {
			return fmt.Errorf("scoring intervention_minutes missing %s", u)
		}
	}
	return nil
}

// compilePattern builds a regexp from a literal phrase (word-bounded) or a raw regex.
func compilePattern(phrase, expr string) (*regexp.Regexp, error) {
	switch {
	case phrase != "" && expr != "":
		return nil, fmt.Errorf("both phrase and regex set")
	case phrase != "":
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		expr = regexp.QuoteMeta(phrase)
		if r, _ := utf8.DecodeRuneInString(phrase); isWordRune(r) {
			expr = `\b` + expr
		}
		if r, _ := utf8.DecodeLastRuneInString(phrase); isWordRune(r) {
			expr += `\b`
		}
	case expr == "":
		return nil, fmt.Errorf("neither phrase nor regex set")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return re, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return set
}

// IsNegation reports whether word is a negation modifier.
func (l *Library) IsNegation(word string) bool { return l.negations[word] }

// IsAmplifier reports whether word is an amplifier modifier.
func (l *Library) IsAmplifier(word string) bool { return l.amplifiers[word] }

// Precedence returns the rank of a category in the fixed severity ordering;
// lower is more severe. Unlisted categories rank last.
func (l *Library) Precedence(c Category) int {
	if p, ok := l.precedence[c]; ok {
		return p
	}
	return len(l.precedence)
}

// Correlation returns the crisis correlation weight of an emotion.
func (l *Library) Correlation(e Emotion) float64 { return l.Correlations[e] }

// Name returns the human-readable form of the pattern.
func (p *CrisisPattern) Name() string {
	if p.Phrase != "" {
		return p.Phrase
	}
	return p.Regex
}

// HasTag reports whether the pattern carries tag.
func (p *CrisisPattern) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FindAll returns byte ranges of every match in text.
func (p *CrisisPattern) FindAll(text string) [][]int { return p.re.FindAllStringIndex(text, -1) }

// Name returns the human-readable form of the pattern.
func (p *EmotionPattern) Name() string {
	if p.Phrase != "" {
		return p.Phrase
	}
	return p.Regex
}

// FindAll returns byte ranges of every match in text.
func (p *EmotionPattern) FindAll(text string) [][]int { return p.re.FindAllStringIndex(text, -1) }

// Matches reports whether the marker occurs in text.
func (m *TemporalMarker) Matches(text string) bool { return m.re.MatchString(text) }
