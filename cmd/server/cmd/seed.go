package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default admin user",
	Long: `Create the admin account named by ADMIN_USERNAME, ADMIN_PASSWORD and
ADMIN_EMAIL (default admin / admin123). Nothing happens if the user exists.

Examples:
  # Seed a fresh SQLite database
  DATABASE_URL=sqlite:blog.db wryteon seed

  # Seed with explicit credentials
  ADMIN_USERNAME=editor ADMIN_PASSWORD='long passphrase' wryteon seed`,
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

		created, err := bootstrapAdminUser(cmd.Context(), cfg, newAuthService(cfg, repo, logger), logger)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if created {
			fmt.Fprintf(out, "Created admin user %q\n", cfg.AdminBootstrap.Username)
		} else {
			fmt.Fprintf(out, "Admin user %q already exists\n", cfg.AdminBootstrap.Username)
		}
		return nil
	},
}
