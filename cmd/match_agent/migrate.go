package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-matcher/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Applies the embedded PostgreSQL migrations. --version 0 migrates to the latest version, a positive version migrates to exactly that version and --down rolls everything back.",
	RunE:  runMigrate,
}

var (
	migrateVersion int
	migrateDown    bool
)

func init() {
	migrateCmd.Flags().IntVar(&migrateVersion, "version", 0, "Target version (0 means latest)")
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back all migrations")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set MATCH_DATABASE_URL)")
	}

	version := migrateVersion
	if migrateDown {
		version = -1
	}
	if err := db.Migrate(cfg.DatabaseURL, version, log); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, "Migrations applied")
	return nil
}
