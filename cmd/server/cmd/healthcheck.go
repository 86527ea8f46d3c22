package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd represents the healthcheck command
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy, degraded or unreachable
  2 - Invalid response from server`,
		RunE: runHealthcheck,
	}

	// Flags
	healthcheckTimeout int
	healthcheckURL     string
	healthcheckFormat  string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	healthcheckCmd.Flags().StringVar(&healthcheckFormat, "format", "text", "output format (text, json)")
}

// HealthResponse matches the body of the /health endpoint.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Backend string                 `json:"backend,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one entry of HealthResponse.Checks.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is what the command reports.
type HealthCheckResult struct {
	URL        string                 `json:"url"`
	Status     string                 `json:"status,omitempty"`
	IsHealthy  bool                   `json:"healthy"`
	HTTPStatus int                    `json:"http_status,omitempty"`
	LatencyMs  int64                  `json:"latency_ms"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	Error      string                 `json:"error,omitempty"`
	invalid    bool
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	result := performHealthCheck(healthCheckTarget())

	out := cmd.OutOrStdout()
	if healthcheckFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printHealthResult(cmd, result)
	}

	switch {
	case result.IsHealthy:
		return nil
	case result.invalid:
		os.Exit(2)
	default:
		os.Exit(1)
	}
	return nil
}

func healthCheckTarget() string {
	if healthcheckURL != "" {
		return healthcheckURL
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// performHealthCheck calls url and interprets the response. Only an overall
// "healthy" status counts as healthy.
func performHealthCheck(url string) HealthCheckResult {
	result := HealthCheckResult{URL: url}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.HTTPStatus = resp.StatusCode

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = fmt.Sprintf("parse response: %v", err)
		result.invalid = true
		return result
	}

	result.Status = body.Status
	result.Checks = body.Checks
	result.IsHealthy = resp.StatusCode == http.StatusOK && body.Status == "healthy"
	return result
}

func printHealthResult(cmd *cobra.Command, result HealthCheckResult) {
	w := cmd.OutOrStdout()
	if !result.IsHealthy {
		w = cmd.ErrOrStderr()
	}
	if result.Error != "" {
		fmt.Fprintf(w, "Health check failed: %s\n", result.Error)
		return
	}
	fmt.Fprintf(w, "%s: %s (HTTP %d, %dms)\n", result.URL, result.Status, result.HTTPStatus, result.LatencyMs)
	for name, check := range result.Checks {
		if check.Message != "" {
			fmt.Fprintf(w, "  %-10s %s - %s\n", name, check.Status, check.Message)
		} else {
			fmt.Fprintf(w, "  %-10s %s\n", name, check.Status)
		}
	}
}
