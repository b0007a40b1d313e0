package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/core/escalation"
	"github.com/example/triage/internal/ports/primary"
)

// EmergencyCmd returns the emergency command.
func EmergencyCmd() *cobra.Command {
	var userID, emergencyType, description string
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Open an emergency-services escalation directly",
		Long:  "Bypass scoring and open an in-progress escalation at the emergency-services tier.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}

			esc := c.Escalations.EscalateEmergency(ctx, userID, emergencyType, description)
			if globalJSON {
				return printJSON(cmd.OutOrStdout(), esc)
			}
			printEscalation(cmd.OutOrStdout(), esc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&emergencyType, "type", "t", "", "Emergency category, e.g. suicide-ideation or medical-emergency")
	cmd.Flags().StringVarP(&description, "description", "d", "", "What is happening")
	return cmd
}

// StatusCmd returns the status command.
func StatusCmd() *cobra.Command {
	var (
		responder string
		note      string
		safe      bool
		followup  bool
		nextSteps []string
	)
	cmd := &cobra.Command{
		Use:   "status [escalation-id] [status]",
		Short: "Move an escalation to a new status",
		Long: `Apply a status transition:
  initiated -> acknowledged | in-progress | cancelled | failed
  acknowledged -> in-progress | cancelled | failed
  in-progress -> resolved | cancelled | failed

--safe, --followup and --next record the outcome when resolving.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			status := escalation.Status(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}

			req := primary.StatusUpdateRequest{
				EscalationID: id,
				Status:       status,
				ResponderID:  responder,
				Note:         note,
			}
			if cmd.Flags().Changed("safe") || cmd.Flags().Changed("followup") || len(nextSteps) > 0 {
				req.Outcome = &escalation.Outcome{
					SafetyAchieved:   safe,
					RequiresFollowup: followup,
					NextSteps:        nextSteps,
				}
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if !c.Escalations.UpdateEscalationStatus(ctx, req) {
				return fmt.Errorf("escalation %s: transition to %s rejected (unknown id or illegal transition)", id, status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Escalation %s %s\n", id, statusColor(status).Sprint(status))
			return nil
		},
	}
	cmd.Flags().StringVarP(&responder, "responder", "r", "", "Responder ID")
	cmd.Flags().StringVarP(&note, "note", "n", "", "Note to attach")
	cmd.Flags().BoolVar(&safe, "safe", false, "Outcome: user safety achieved")
	cmd.Flags().BoolVar(&followup, "followup", false, "Outcome: follow-up required")
	cmd.Flags().StringSliceVar(&nextSteps, "next", nil, "Outcome: next steps")
	return cmd
}

// ShowCmd returns the show command.
func ShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [escalation-id]",
		Short: "Show escalation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}

			esc, ok := c.Escalations.MonitorEscalationProgress(ctx, args[0])
			if !ok {
				return fmt.Errorf("escalation %s not found", args[0])
			}
			if globalJSON {
				return printJSON(cmd.OutOrStdout(), esc)
			}
			printEscalation(cmd.OutOrStdout(), esc)
			return nil
		},
	}
}

// ListCmd returns the list command.
func ListCmd() *cobra.Command {
	var (
		userID string
		status string
		limit  int
		active bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List escalations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !escalation.Status(status).Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}

			var escalations []*primary.Escalation
			if active {
				if _, err := c.Escalations.LoadActive(ctx); err != nil {
					return err
				}
				escalations = c.Escalations.ListActive(ctx)
			} else {
				escalations, err = c.Escalations.ListEscalations(ctx, primary.EscalationFilters{
					UserID: userID,
					Status: escalation.Status(status),
					Limit:  limit,
				})
				if err != nil {
					return fmt.Errorf("failed to list escalations: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if globalJSON {
				return printJSON(out, escalations)
			}
			if len(escalations) == 0 {
				fmt.Fprintln(out, "No escalations found.")
				return nil
			}
			printEscalationTable(out, escalations)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Filter by user")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum rows (0 for all)")
	cmd.Flags().BoolVarP(&active, "active", "a", false, "Only escalations still awaiting closure, oldest first")
	return cmd
}

// OverrideCmd returns the override command.
func OverrideCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "override [escalation-id] [tier]",
		Short: "Manually change an escalation's tier",
		Long:  "Set the tier of an open escalation. The change is audited and may lower the tier.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := escalation.ParseTier(args[1])
			if err != nil {
				return err
			}
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			if !c.Escalations.OverrideTier(ctx, args[0], tier, reason) {
				return fmt.Errorf("escalation %s: override to %s rejected", args[0], tier)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Escalation %s now at %s\n", args[0], tierColor(tier).Sprint(tier))
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the tier is changing (required)")
	return cmd
}
