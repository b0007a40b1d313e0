package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/core/risk"
	"github.com/example/triage/internal/ports/primary"
)

const timeLayout = "2006-01-02 15:04:05"

func severityColor(s patterns.Severity) *color.Color {
	switch {
	case s >= patterns.SeverityEmergency:
		return color.New(color.FgRed, color.Bold)
	case s >= patterns.SeverityCritical:
		return color.New(color.FgRed)
	case s >= patterns.SeverityHigh:
		return color.New(color.FgYellow)
	case s >= patterns.SeverityLow:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

func tierColor(t escalation.Tier) *color.Color {
	switch t {
	case escalation.TierEmergencyServices:
		return color.New(color.FgRed, color.Bold)
	case escalation.TierEmergencyTeam:
		return color.New(color.FgRed)
	case escalation.TierCrisisCounselor:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func statusColor(s escalation.Status) *color.Color {
	switch s {
	case escalation.StatusResolved:
		return color.New(color.FgGreen)
	case escalation.StatusFailed:
		return color.New(color.FgRed)
	case escalation.StatusCancelled:
		return color.New(color.FgHiBlack)
	case escalation.StatusInitiated:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgBlue)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printAssessment(w io.Writer, a *risk.Assessment) {
	if !a.HasIndicators() {
		fmt.Fprintf(w, "%s no crisis indicators detected\n", color.New(color.FgGreen).Sprint("✓"))
		return
	}

	fmt.Fprintf(w, "Severity:   %s\n", severityColor(a.Severity).Sprint(strings.ToUpper(a.Severity.String())))
	fmt.Fprintf(w, "Score:      %d (confidence %.2f)\n", a.Score, a.Confidence)
	fmt.Fprintf(w, "Urgency:    %s\n", a.Urgency)
	fmt.Fprintf(w, "Risk:       immediate %.2f, short-term %.2f, long-term %.2f\n", a.ImmediateRisk, a.ShortTermRisk, a.LongTermRisk)
	if a.PrimaryCategory != "" {
		fmt.Fprintf(w, "Category:   %s\n", a.PrimaryCategory)
	}
	if len(a.SecondaryCategories) > 0 {
		cats := make([]string, len(a.SecondaryCategories))
		for i, c := range a.SecondaryCategories {
			cats[i] = string(c)
		}
		fmt.Fprintf(w, "Also:       %s\n", strings.Join(cats, ", "))
	}
	fmt.Fprintf(w, "Intervene:  within %s\n", a.TimeToIntervention)
	if a.EmergencyServicesRequired {
		fmt.Fprintf(w, "%s\n", color.New(color.FgRed, color.Bold).Sprint("EMERGENCY SERVICES REQUIRED"))
	}
	if len(a.ProtectiveFactors) > 0 {
		fmt.Fprintf(w, "Protective: %s\n", strings.Join(a.ProtectiveFactors, ", "))
	}

	fmt.Fprintln(w, "\nSignals:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PATTERN\tCATEGORY\tSEVERITY\tCONFIDENCE\tFLAGS")
	for _, s := range a.Signals {
		var flags []string
		if s.Negated {
			flags = append(flags, "negated")
		}
		if s.Amplified {
			flags = append(flags, "amplified")
		}
		if s.AlwaysEscalate {
			flags = append(flags, "always-escalate")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.2f\t%s\n",
			s.Pattern, s.Category, severityColor(s.Severity).Sprint(s.Severity), s.Confidence, orDash(strings.Join(flags, ",")))
	}
	tw.Flush()
}

func printEscalationSummary(w io.Writer, e *primary.Escalation) {
	fmt.Fprintf(w, "Escalation: %s\n", e.ID)
	fmt.Fprintf(w, "User:       %s\n", orDash(e.UserID))
	fmt.Fprintf(w, "Tier:       %s (%s)\n", tierColor(e.Tier).Sprint(e.Tier), e.ResponderType)
	fmt.Fprintf(w, "Status:     %s\n", statusColor(e.Status).Sprint(e.Status))
	fmt.Fprintf(w, "Severity:   %s (score %d)\n", severityColor(e.Severity).Sprint(e.Severity), e.Score)
}

func printEscalation(w io.Writer, e *primary.Escalation) {
	printEscalationSummary(w, e)
	if e.PrimaryCategory != "" {
		fmt.Fprintf(w, "Category:   %s\n", e.PrimaryCategory)
	}
	if e.ResponderID != "" {
		fmt.Fprintf(w, "Responder:  %s\n", e.ResponderID)
	}
	if e.Region != "" || e.Language != "" {
		fmt.Fprintf(w, "Locale:     %s/%s\n", orDash(e.Region), orDash(e.Language))
	}
	if e.SessionID != "" {
		fmt.Fprintf(w, "Session:    %s\n", e.SessionID)
	}

	tl := e.Timeline
	fmt.Fprintf(w, "Initiated:  %s\n", formatTime(&tl.Initiated))
	fmt.Fprintf(w, "Escalated:  %s\n", formatTime(&tl.LastEscalated))
	fmt.Fprintf(w, "Acked:      %s\n", formatTime(tl.Acknowledged))
	fmt.Fprintf(w, "Started:    %s\n", formatTime(tl.Started))
	fmt.Fprintf(w, "Resolved:   %s\n", formatTime(tl.Resolved))
	if tl.Closed != nil {
		fmt.Fprintf(w, "Closed:     %s\n", formatTime(tl.Closed))
	}

	if o := e.Outcome; o != nil {
		fmt.Fprintf(w, "Outcome:    safe=%t followup=%t\n", o.SafetyAchieved, o.RequiresFollowup)
		for _, step := range o.NextSteps {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}

	if len(e.Actions) > 0 {
		fmt.Fprintln(w, "\nActions:")
		for _, a := range e.Actions {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}

	if len(e.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, n := range e.Notes {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", n.At.Local().Format(timeLayout), n.Tag, orDash(n.Actor), n.Text)
		}
		tw.Flush()
	}
}

func printEscalationTable(w io.Writer, escalations []*primary.Escalation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tTIER\tSTATUS\tSEVERITY\tSCORE\tINITIATED")
	fmt.Fprintln(tw, "--\t----\t----\t------\t--------\t-----\t---------")
	for _, e := range escalations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			orDash(e.UserID),
			tierColor(e.Tier).Sprint(e.Tier),
			statusColor(e.Status).Sprint(e.Status),
			e.Severity,
			e.Score,
			formatTime(&e.Timeline.Initiated),
		)
	}
	tw.Flush()
}

func printContacts(w io.Writer, contacts []directory.Contact) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNUMBER\tTYPE\tSUCCESS\tRESPONSE\tRANK")
	fmt.Fprintln(tw, "----\t------\t----\t-------\t--------\t----")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%.3f\n",
			c.Name, c.Number, c.Type, c.SuccessRate*100, c.AverageResponseTime, c.Rank())
	}
	tw.Flush()
}

func printMetrics(w io.Writer, m primary.Metrics) {
	fmt.Fprintf(w, "Escalations:   %d (emergency %d, fallback %d)\n", m.Total, m.Emergencies, m.Fallbacks)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nTIER\tOPENED")
	for t := escalation.TierPeerSupport; t <= escalation.TopTier; t++ {
		fmt.Fprintf(tw, "%s\t%d\n", tierColor(t).Sprint(t), m.ByTier[t.String()])
	}
	fmt.Fprintln(tw, "\nSTATUS\tCURRENT")
	for _, s := range escalation.AllStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", statusColor(s).Sprint(s), m.ByStatus[string(s)])
	}
	tw.Flush()

	fmt.Fprintf(w, "\nResponded:     %d (average %s)\n", m.Responded, m.AverageResponseTime.Round(time.Second))
	fmt.Fprintf(w, "Success rate:  %.1f%% (%d of %d closed)\n", m.SuccessRate*100, m.Resolved, m.Terminal)
	fmt.Fprintf(w, "Safety rate:   %.1f%% (%d of %d resolved)\n", m.UserSafetyRate*100, m.SafeOutcomes, m.Resolved)
	fmt.Fprintf(w, "Overrides:     %d\n", m.Overrides)
	fmt.Fprintf(w, "Timeouts:      %d\n", m.Timeouts)
	if m.NotifyFailures > 0 || m.PersistenceFailures > 0 {
		fmt.Fprintf(w, "%s notify %d, persistence %d\n",
			color.New(color.FgRed).Sprint("Failures:"), m.NotifyFailures, m.PersistenceFailures)
	}
}
