// Package directory holds the emergency contact directory and its ranking rules.
// This is part of the Functional Core - the directory is loaded once and read-only afterwards.
package directory

import (
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/triage/internal/core/patterns"
)

// GlobalRegion marks contacts that serve any region.
const GlobalRegion = "*"

// FallbackLanguage is used when no contact speaks the requested language.
const FallbackLanguage = "en"

// ContactType is the kind of service a contact provides.
type ContactType string

const (
	ContactCrisis       ContactType = "crisis"
	ContactProfessional ContactType = "professional"
	ContactPersonal     ContactType = "personal"
	ContactEmergency    ContactType = "emergency"
)

// Valid reports whether t is a known contact type.
func (t ContactType) Valid() bool {
	switch t {
	case ContactCrisis, ContactProfessional, ContactPersonal, ContactEmergency:
		return true
	}
	return false
}

// Contact is one entry in the directory.
type Contact struct {
	Name                string        `yaml:"name" json:"name"`
	Number              string        `yaml:"number" json:"number"`
	Type                ContactType   `yaml:"type" json:"type"`
	Regions             []string      `yaml:"regions" json:"regions"`
	Languages           []string      `yaml:"languages" json:"languages"`
	SuccessRate         float64       `yaml:"success_rate" json:"success_rate"`
	AverageResponseTime time.Duration `yaml:"average_response" json:"average_response_time"`
	Description         string        `yaml:"description" json:"description,omitempty"`
}

// Rank is the ordering score: 0.7 × success rate + 0.3 × (1 / average response minutes),
// with minutes floored at 1.
func (c Contact) Rank() float64 {
	minutes := math.Max(1, c.AverageResponseTime.Minutes())
	return 0.7*c.SuccessRate + 0.3*(1/minutes)
}

func (c Contact) servesRegion(region string) bool {
	for _, r := range c.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

func (c Contact) speaks(language string) bool {
	for _, l := range c.Languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

//go:embed contacts.yaml
var defaultContacts []byte

// Directory is an immutable set of contacts.
type Directory struct {
	contacts []Contact
}

// Default returns the embedded directory. It panics if the embedded data is invalid.
func Default() *Directory {
	d, err := Load(strings.NewReader(string(defaultContacts)))
	if err != nil {
		panic(fmt.Sprintf("embedded contact directory is invalid: %v", err))
	}
	return d
}

// LoadFile reads a directory from a YAML file.
func LoadFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact directory: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a directory document.
func Load(r io.Reader) (*Directory, error) {
	var doc struct {
		Contacts []Contact `yaml:"contacts"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode contact directory: %w", err)
	}
	for i, c := range doc.Contacts {
		if c.Name == "" || c.Number == "" {
			return nil, fmt.Errorf("contact %d: name and number are required", i)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("contact %q: unknown type %q", c.Name, c.Type)
		}
		if len(c.Regions) == 0 || len(c.Languages) == 0 {
			return nil, fmt.Errorf("contact %q: at least one region and language required", c.Name)
		}
		if c.SuccessRate < 0 || c.SuccessRate > 1 {
			return nil, fmt.Errorf("contact %q: success rate %.2f outside [0,1]", c.Name, c.SuccessRate)
		}
		if c.AverageResponseTime < 0 {
			return nil, fmt.Errorf("contact %q: negative response time", c.Name)
		}
	}
	return &Directory{contacts: doc.Contacts}, nil
}

// All returns a copy of every contact in the directory.
func (d *Directory) All() []Contact {
	return cloneAll(d.contacts)
}

// Regions returns the distinct regions the directory covers, sorted.
func (d *Directory) Regions() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range d.contacts {
		for _, r := range c.Regions {
			r = strings.ToUpper(r)
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Lookup returns the ranked contacts for a region, language and severity.
//
// Region matching is case-insensitive; a region with no entries falls back to the
// global entries. Language falls back to English when nobody speaks the requested
// one, and is dropped entirely when nobody speaks English either. Emergency-type
// contacts are only included from severity high upward. Results are ordered by
// Rank descending, then name.
func (d *Directory) Lookup(region, language string, severity patterns.Severity) []Contact {
	region = strings.TrimSpace(region)
	candidates := d.inRegion(region)
	if len(candidates) == 0 {
		candidates = d.inRegion(GlobalRegion)
	}

	if severity < patterns.SeverityHigh {
		var kept []Contact
		for _, c := range candidates {
			if c.Type != ContactEmergency {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	candidates = byLanguage(candidates, language)

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Rank(), candidates[j].Rank()
		if ri != rj {
			return ri > rj
		}
		return candidates[i].Name < candidates[j].Name
	})
	return cloneAll(candidates)
}

func (d *Directory) inRegion(region string) []Contact {
	if region == "" {
		return nil
	}
	var out []Contact
	for _, c := range d.contacts {
		if c.servesRegion(region) {
			out = append(out, c)
		}
	}
	return out
}

func byLanguage(contacts []Contact, language string) []Contact {
	for _, lang := range []string{strings.TrimSpace(language), FallbackLanguage} {
		if lang == "" {
			continue
		}
		var out []Contact
		for _, c := range contacts {
			if c.speaks(lang) {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return contacts
}

func cloneAll(in []Contact) []Contact {
	out := make([]Contact, len(in))
	for i, c := range in {
		c.Regions = append([]string(nil), c.Regions...)
		c.Languages = append([]string(nil), c.Languages...)
		out[i] = c
	}
	return out
}
