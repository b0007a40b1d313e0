package directory

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/example/triage/internal/core/patterns"
)

func names(contacts []Contact) []string {
	out := make([]string, len(contacts))
	for i, c := range contacts {
		out[i] = c.Name
	}
	return out
}

func TestLookup_USEnglishHigh(t *testing.T) {
	got := Default().Lookup("US", "en", patterns.SeverityHigh)
	if len(got) == 0 {
		t.Fatal("expected contacts for US/en/high")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Rank() > got[i-1].Rank() {
			t.Errorf("contacts not in descending rank order: %v", names(got))
		}
	}
	if got[0].Type != ContactEmergency {
		t.Errorf("first contact = %q, want the emergency number at high severity", got[0].Name)
	}
}

func TestLookup(t *testing.T) {
	d := Default()

	tests := []struct {
		name      string
		region    string
		language  string
		severity  patterns.Severity
		wantFirst string
		wantLen   int
	}{
		{
			name:      "emergency numbers excluded below high",
			region:    "US",
			language:  "en",
			severity:  patterns.SeverityMedium,
			wantFirst: "988 Suicide & Crisis Lifeline",
			wantLen:   5,
		},
		{
			name:      "region is case-insensitive",
			region:    "us",
			language:  "en",
			severity:  patterns.SeverityHigh,
			wantFirst: "Emergency Services (911)",
			wantLen:   6,
		},
		{
			name:      "language falls back to english",
			region:    "GB",
			language:  "fr",
			severity:  patterns.SeverityCritical,
			wantFirst: "Emergency Services (999)",
			wantLen:   3,
		},
		{
			name:      "unknown region uses global entries",
			region:    "ZZ",
			language:  "en",
			severity:  patterns.SeverityEmergency,
			wantFirst: "International Emergency Number (112)",
			wantLen:   2,
		},
		{
			name:      "empty region uses global entries",
			region:    "",
			language:  "",
			severity:  patterns.SeverityLow,
			wantFirst: "Befrienders Worldwide",
			wantLen:   1,
		},
		{
			name:      "language filter",
			region:    "DE",
			language:  "de",
			severity:  patterns.SeverityMedium,
			wantFirst: "Telefonseelsorge",
			wantLen:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Lookup(tt.region, tt.language, tt.severity)
			if len(got) != tt.wantLen {
				t.Fatalf("Lookup() returned %d contacts (%v), want %d", len(got), names(got), tt.wantLen)
			}
			if got[0].Name != tt.wantFirst {
				t.Errorf("first contact = %q, want %q", got[0].Name, tt.wantFirst)
			}
		})
	}
}

func TestLookup_TiesBreakByName(t *testing.T) {
	doc := `
contacts:
  - { name: Zeta, number: "1", type: crisis, regions: [US], languages: [en], success_rate: 0.8, average_response: 5m }
  - { name: Alpha, number: "2", type: crisis, regions: [US], languages: [en], success_rate: 0.8, average_response: 5m }
`
	d, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := names(d.Lookup("US", "en", patterns.SeverityHigh))
	if len(got) != 2 || got[0] != "Alpha" || got[1] != "Zeta" {
		t.Errorf("order = %v, want [Alpha Zeta]", got)
	}
}

func TestContact_Rank(t *testing.T) {
	fast := Contact{SuccessRate: 0.5, AverageResponseTime: 10 * time.Second}
	if got := fast.Rank(); math.Abs(got-0.65) > 1e-9 {
		t.Errorf("Rank() = %.4f, sub-minute response should floor at 1 minute", got)
	}
	slow := Contact{SuccessRate: 0.5, AverageResponseTime: 10 * time.Minute}
	if slow.Rank() >= fast.Rank() {
		t.Error("slower contact should rank lower")
	}
}

func TestLookup_ReturnsCopies(t *testing.T) {
	d := Default()
	got := d.Lookup("US", "en", patterns.SeverityHigh)
	got[0].Regions[0] = "XX"
	got[0].Name = "changed"

	again := d.Lookup("US", "en", patterns.SeverityHigh)
	if again[0].Name == "changed" || again[0].Regions[0] == "XX" {
		t.Error("Lookup leaked internal state")
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown type",
			doc:     `contacts: [{ name: A, number: "1", type: psychic, regions: [US], languages: [en], success_rate: 0.5, average_response: 1m }]`,
			wantErr: "unknown type",
		},
		{
			name:    "success rate out of range",
			doc:     `contacts: [{ name: A, number: "1", type: crisis, regions: [US], languages: [en], success_rate: 1.5, average_response: 1m }]`,
			wantErr: "success rate",
		},
		{
			name:    "missing number",
			doc:     `contacts: [{ name: A, type: crisis, regions: [US], languages: [en], success_rate: 0.5, average_response: 1m }]`,
			wantErr: "name and number",
		},
		{
			name:    "unknown field",
			doc:     `contacts: [{ name: A, number: "1", type: crisis, regions: [US], languages: [en], success_rate: 0.5, average_response: 1m, rating: 5 }]`,
			wantErr: "rating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRegions(t *testing.T) {
	regions := Default().Regions()
	if regions[0] != "*" {
		t.Errorf("Regions()[0] = %q, want the global marker first", regions[0])
	}
	found := false
	for _, r := range regions {
		if r == "GB" {
			found = true
		}
	}
	if !found {
		t.Errorf("Regions() = %v, missing GB", regions)
	}
}
