package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/metrics"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage admin sessions",
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired admin sessions",
	Long: `Delete every session whose expiry has passed.

With PostgreSQL the server runs this periodically as a background job.
SQLite deployments can run it from cron instead.

Examples:
  wryteon sessions cleanup`,
	RunE: runSessionsCleanup,
}

func init() {
	sessionsCmd.AddCommand(sessionsCleanupCmd)
}

func runSessionsCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	repo, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	deleted, err := newAuthService(cfg, repo, logger).DeleteExpiredSessions(cmd.Context())
	if err != nil {
		return err
	}
	metrics.SessionsDeletedTotal.Add(float64(deleted))
	logger.Info().Int64("deleted", deleted).Msg("expired sessions removed")
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired session(s)\n", deleted)
	return nil
}
