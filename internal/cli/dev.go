package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/logging"
)

// DevCmd returns the dev command group for development utilities.
func DevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development utilities",
		Long: `Development utilities for working with a throwaway triage database.

These commands refuse to run unless TRIAGE_DB_PATH is set explicitly, so the
default database under ~/.triage is never touched by accident.`,
	}
	cmd.AddCommand(devResetCmd())
	return cmd
}

func devResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the dev database with fresh fixtures",
		Long: `Delete the database at TRIAGE_DB_PATH, recreate it with the current schema
and seed profiles, escalations, notes and audit events for local testing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			dbPath := os.Getenv(config.EnvPrefix + "_DB_PATH")
			if dbPath == "" {
				return fmt.Errorf("%s_DB_PATH not set\n\nThis safety check prevents accidental reset of your production database", config.EnvPrefix)
			}

			if !force {
				fmt.Fprintf(out, "This will delete and recreate: %s\n", dbPath)
				fmt.Fprint(out, "Continue? [y/N] ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if r := strings.TrimSpace(response); r != "y" && r != "Y" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			cfg, err := config.Load(globalConfigPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
			if err != nil {
				return err
			}

			if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete database: %w", err)
			}
			fmt.Fprintf(out, "✓ Deleted %s\n", dbPath)

			database, err := db.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			defer database.Close()
			fmt.Fprintln(out, "✓ Created fresh database with schema")

			if err := db.SeedFixtures(database); err != nil {
				return fmt.Errorf("failed to seed fixtures: %w", err)
			}
			fmt.Fprintln(out, "✓ Seeded fixture data")
			fmt.Fprintln(out, "\nSeeded entities:")
			fmt.Fprintln(out, "  - 2 user profiles")
			fmt.Fprintln(out, "  - 3 escalations (open, resolved, emergency)")
			fmt.Fprintln(out, "  - 6 notes, 5 audit events")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
