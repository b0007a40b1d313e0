package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/ports/primary"
)

// analyzeFlags are shared by analyze and escalate.
type analyzeFlags struct {
	userID     string
	region     string
	language   string
	protective []string
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.userID, "user", "u", "", "User ID (enables profile context)")
	cmd.Flags().StringVar(&f.region, "region", "", "ISO region code, e.g. US")
	cmd.Flags().StringVar(&f.language, "language", "", "Language code, e.g. en")
	cmd.Flags().StringSliceVar(&f.protective, "protective", nil, "Known protective factors")
}

func (f *analyzeFlags) request(text string) primary.AnalyzeRequest {
	return primary.AnalyzeRequest{
		Text:              text,
		UserID:            f.userID,
		Region:            f.region,
		Language:          f.language,
		ProtectiveFactors: f.protective,
	}
}

// AnalyzeCmd returns the analyze command.
func AnalyzeCmd() *cobra.Command {
	var flags analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Score a message for crisis risk",
		Long: `Run crisis detection and risk aggregation over a message and print the assessment.
Nothing is escalated; use 'triage escalate' to open an escalation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}

			a := c.Triage.Analyze(ctx, flags.request(strings.Join(args, " ")))
			if globalJSON {
				return printJSON(cmd.OutOrStdout(), a)
			}
			printAssessment(cmd.OutOrStdout(), a)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// EscalateCmd returns the escalate command.
func EscalateCmd() *cobra.Command {
	var (
		flags     analyzeFlags
		sessionID string
		tierName  string
		reason    string
		always    bool
	)
	cmd := &cobra.Command{
		Use:   "escalate [text...]",
		Short: "Analyze a message and open a crisis escalation",
		Long: `Analyze a message and, when crisis indicators are found, open an escalation
at the tier the assessment calls for. --tier forces a tier (requires --reason).
--always opens an escalation even when nothing was detected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.userID == "" {
				return fmt.Errorf("--user is required")
			}
			var override *escalation.Override
			if tierName != "" {
				tier, err := escalation.ParseTier(tierName)
				if err != nil {
					return err
				}
				if reason == "" {
					return fmt.Errorf("--reason is required with --tier")
				}
				override = &escalation.Override{Tier: tier, Reason: reason}
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			a := c.Triage.Analyze(ctx, flags.request(strings.Join(args, " ")))
			if !a.HasIndicators() && override == nil && !always {
				if globalJSON {
					return printJSON(out, a)
				}
				printAssessment(out, a)
				fmt.Fprintln(out, "No escalation opened.")
				return nil
			}

			esc := c.Escalations.InitiateCrisisEscalation(ctx, primary.InitiateRequest{
				Assessment: a,
				UserID:     flags.userID,
				User: primary.UserContext{
					Region:            flags.region,
					Language:          flags.language,
					ProtectiveFactors: a.ProtectiveFactors,
				},
				Session:  primary.SessionInfo{SessionID: sessionID, Channel: "cli"},
				Override: override,
			})
			if globalJSON {
				return printJSON(out, esc)
			}
			printAssessment(out, a)
			fmt.Fprintln(out)
			printEscalation(out, esc)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().StringVar(&tierName, "tier", "", "Force a tier (peer-support|crisis-counselor|emergency-team|emergency-services)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for a forced tier")
	cmd.Flags().BoolVar(&always, "always", false, "Escalate even when no indicators are detected")
	return cmd
}

// MoodCmd returns the mood command.
func MoodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mood [user-id] [score]",
		Short: "Record a self-reported mood score (1-10)",
		Long:  "Append a mood score to the user's profile. Recent mood history feeds the mental-health risk factor.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[1], err)
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if err := c.Triage.RecordMood(ctx, args[0], score); err != nil {
				return fmt.Errorf("failed to record mood: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded mood %.1f for %s\n", score, args[0])
			return nil
		},
	}
}
