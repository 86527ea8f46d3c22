package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/storage/postgres"
	"github.com/wryteon/wryteon/internal/storage/sqlite"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
	Long: `Manage the database schema.

PostgreSQL uses versioned migrations embedded in the binary plus the job
queue tables. SQLite applies its schema whenever the file is opened, so
"migrate up" only creates the file and "migrate down" is not supported.

Examples:
  wryteon migrate up
  wryteon migrate down --steps 1
  wryteon migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		repo, err := openStore(cfg, true)
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()

		if pg, ok := repo.(*postgres.Repository); ok {
			if err := postgres.MigrateRiver(cmd.Context(), pg.Pool()); err != nil {
				return err
			}
		}
		logger.Info().Str("backend", repo.Backend()).Msg("migrations applied")
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if sqlite.IsURL(cfg.Database.URL) {
			return errors.New("migrate down is not supported for sqlite")
		}
		if err := postgres.MigrateDown(cfg.Database.URL, migrateSteps); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", migrateSteps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if sqlite.IsURL(cfg.Database.URL) {
			fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema is applied on open")
			return nil
		}
		version, dirty, err := postgres.SchemaVersion(cfg.Database.URL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d", version)
		if dirty {
			fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}
