package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
)

var (
	userUsername      string
	userEmail         string
	userPassword      string
	userPasswordStdin bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage admin users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin user",
	Long: `Create an admin user that can sign in to /admin.

Examples:
  wryteon user create --username editor --email editor@example.com --password 'long passphrase'

  # Read the password from stdin instead of the command line
  printf '%s\n' "$PASSWORD" | wryteon user create --username editor --password-stdin`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "login name (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address (default: <username>@localhost)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "password")
	userCreateCmd.Flags().BoolVar(&userPasswordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = userCreateCmd.MarkFlagRequired("username")
	userCmd.AddCommand(userCreateCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	password, err := resolvePassword(cmd.InOrStdin(), userPassword, userPasswordStdin)
	if err != nil {
		return err
	}

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

	email := userEmail
	if email == "" {
		// Emails are unique, so an empty one would only work once.
		email = userUsername + "@localhost"
	}

	user, err := newAuthService(cfg, repo, logger).CreateUser(cmd.Context(), userUsername, email, password)
	if errors.Is(err, auth.ErrUserExists) {
		return fmt.Errorf("user %q already exists", userUsername)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Username, user.ID)
	return nil
}

// resolvePassword picks the password from the flag or stdin. Exactly one
// source must be used.
func resolvePassword(in io.Reader, flagValue string, fromStdin bool) (string, error) {
	switch {
	case fromStdin && flagValue != "":
		return "", errors.New("use either --password or --password-stdin, not both")
	case fromStdin:
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", errors.New("empty password on stdin")
		}
		return line, nil
	case flagValue == "":
		return "", errors.New("--password or --password-stdin is required")
	default:
		return flagValue, nil
	}
}
