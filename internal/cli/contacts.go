package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/core/patterns"
)

// ContactsCmd returns the contacts command.
func ContactsCmd() *cobra.Command {
	var (
		region   string
		language string
		severity string
		regions  bool
	)
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Look up ranked emergency contacts",
		Long: `List the emergency contacts for a region and language, best first.
Unknown regions fall back to the global entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := patterns.ParseSeverity(severity)
			if err != nil {
				return err
			}

			ctx := NewContext()
			c, err := services(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if regions {
				fmt.Fprintln(out, strings.Join(c.Contacts.Regions(), " "))
				return nil
			}

			contacts := c.Contacts.GetEmergencyContacts(ctx, region, language, sev)
			if globalJSON {
				return printJSON(out, contacts)
			}
			if len(contacts) == 0 {
				fmt.Fprintln(out, "No contacts found.")
				return nil
			}
			printContacts(out, contacts)
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "US", "ISO region code")
	cmd.Flags().StringVar(&language, "language", "en", "Language code")
	cmd.Flags().StringVar(&severity, "severity", "high", "Severity (none|low|medium|high|critical|emergency)")
	cmd.Flags().BoolVar(&regions, "regions", false, "List the regions the directory covers")
	return cmd
}
