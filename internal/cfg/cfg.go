// Package cfg holds the application-specific configuration surface.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds alertflow-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds             int
	ShutdownBudgetSeconds    int
	APIPort                  int
	ClaudeAPIKey             string
	ClaudeModel              string
	ClassifierTimeoutSeconds int
	DatabaseURL              string
	SlackBotToken            string
	SlackSigningSecret       string
	SlackAlertChannel        string
	IncidentChannels         string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")
	fs.IntVar(&c.ClassifierTimeoutSeconds, "classifier-timeout-seconds", 120, "per-call classifier timeout (1..600)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackBotToken, "slack-bot-token", "", "Slack bot token for channel posts (empty = no delivery)")
	fs.StringVar(&c.SlackSigningSecret, "slack-signing-secret", "", "Slack signing secret for inbound request verification")
	fs.StringVar(&c.SlackAlertChannel, "slack-alert-channel", "#alerts", "Slack channel for alert notifications")
	fs.StringVar(&c.IncidentChannels, "incident-channels", "alerts,incidents,CINC", "comma-separated channel name patterns treated as incident channels")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude credentials are required for the classifier
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.ClassifierTimeoutSeconds <= 0 || c.ClassifierTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_TIMEOUT_SECONDS %d (must be 1..600)", c.ClassifierTimeoutSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IncidentChannelList splits the configured channel patterns, dropping
// empties.
func (c *Config) IncidentChannelList() []string {
	var out []string
	for _, s := range strings.Split(c.IncidentChannels, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
