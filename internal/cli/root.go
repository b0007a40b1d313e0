package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/version"
	"github.com/example/triage/internal/wire"
)

// RootCmd builds the triage command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "triage",
		Short:   "Crisis detection and escalation",
		Version: version.String(),
		Long: `triage scores messages for crisis risk, opens tiered escalations for the
ones that need a human, and keeps every open escalation moving until a
responder picks it up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&globalConfigPath, "config", "", "Config file (default $TRIAGE_CONFIG or ~/.triage/config.yaml)")
	root.PersistentFlags().StringVar(&globalActorID, "actor", "", "Actor recorded in notes and the audit log")
	root.PersistentFlags().BoolVar(&globalJSON, "json", false, "Print JSON instead of tables")

	// Analysis
	root.AddCommand(AnalyzeCmd())
	root.AddCommand(EscalateCmd())
	root.AddCommand(MoodCmd())

	// Escalation lifecycle
	root.AddCommand(EmergencyCmd())
	root.AddCommand(StatusCmd())
	root.AddCommand(ShowCmd())
	root.AddCommand(ListCmd())
	root.AddCommand(OverrideCmd())

	// Reference data and operations
	root.AddCommand(ContactsCmd())
	root.AddCommand(MetricsCmd())
	root.AddCommand(SweepCmd())
	root.AddCommand(PruneCmd())
	root.AddCommand(ServeCmd())

	// Developer tools
	root.AddCommand(DevCmd())

	return root
}

// Execute runs the command line and releases the services it opened.
func Execute(args []string) error {
	return execute(args, os.Stdout)
}

func execute(args []string, out io.Writer) error {
	root := RootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	err := root.Execute()
	return errors.Join(err, wire.Shutdown())
}
