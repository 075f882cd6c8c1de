package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"httpretry/pkg/config"
	"httpretry/pkg/ui"
)

const defaultConfigName = ".httpretry.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage httpretry configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (HTTPRETRY_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.httpretry.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Header values that look like credentials are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Retry budget keys
  - Log file path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# httpretry configuration file
#
# Every option can also be set with an HTTPRETRY_ environment variable,
# for example HTTPRETRY_TIMEOUT=10s or HTTPRETRY_RETRIES_PER_CODE=5XX=3,429=2

retry:
  # Wait before the first retry
  initial_retry_delay: 4s

  # Cap on any single wait
  max_retry_delay: 25s

  # Grow waits as coefficient^attempt * initial_retry_delay
  exponential_backoff: true
  exponential_coefficient: 1.5

  # Deadline of one attempt
  timeout: 30s

  # Retry budgets merged over the defaults
  # (5XX=3, TIMEOUT=3, NETWORK_ISSUE=5, everything else 0).
  # Keys are exact codes ("503"), classes ("4XX"), TIMEOUT or NETWORK_ISSUE.
  retries_per_code:
    "429": 2

http:
  user_agent: "httpretry/1.0"

  # Headers sent with every request
  headers:
    Accept: "application/json"

  # Attach credentials stored with 'httpretry auth set'
  use_credentials: false

rate_limit:
  # Attempts per minute across all calls; 0 disables limiting
  requests_per_minute: 0
  burst_size: 1

batch:
  # Concurrent calls for 'httpretry batch'
  workers: 4

metrics:
  # Write prometheus metrics in textfile format on exit
  enabled: false
  textfile: ""

logging:
  # debug, info, warn, error, off
  level: "info"

  # Log file path; empty logs to stderr only
  file: ""

  # Also log to stderr when a file is set
  console: false
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout(), noColor, quiet)

	configPath := configFile
	if configPath == "" {
		configPath = defaultConfigName
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to overwrite)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	p.Success("Configuration file created: " + configPath)
	p.Dim("Run 'httpretry config validate' to check it")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(sanitizeConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout(), noColor, quiet)
	p.Highlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// sanitizeConfig returns a copy safe for display
func sanitizeConfig(cfg *config.Config) *config.Config {
	display := *cfg
	if len(cfg.HTTP.Headers) > 0 {
		display.HTTP.Headers = make(map[string]string, len(cfg.HTTP.Headers))
		for k, v := range cfg.HTTP.Headers {
			if isSensitiveHeader(k) {
				v = maskValue(v)
			}
			display.HTTP.Headers[k] = v
		}
	}
	return &display
}

func isSensitiveHeader(name string) bool {
	n := strings.ToLower(name)
	return n == "authorization" || n == "cookie" || strings.Contains(n, "token") || strings.Contains(n, "api-key")
}

func maskValue(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout(), noColor, quiet)
	if configFile != "" {
		p.Info("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	for _, w := range configWarnings(cfg) {
		p.Warning("warning", w)
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	p.Success("Configuration is valid")
	p.Info("Initial retry delay", cfg.Retry.InitialRetryDelay.String())
	p.Info("Max retry delay", cfg.Retry.MaxRetryDelay.String())
	p.Info("Timeout", cfg.Retry.Timeout.String())
	p.Info("Workers", fmt.Sprintf("%d", cfg.Batch.Workers))
	p.Info("Log level", cfg.Logging.Level)
	return nil
}

// configWarnings reports settings that are legal but probably unintended
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Retry.MaxRetryDelay < cfg.Retry.InitialRetryDelay {
		warnings = append(warnings, "max_retry_delay is below initial_retry_delay; every wait is capped at max_retry_delay")
	}
	if cfg.Retry.ExponentialBackoff && cfg.Retry.ExponentialCoefficient < 1 {
		warnings = append(warnings, "exponential_coefficient below 1 makes waits shrink")
	}
	for key, n := range cfg.Retry.RetriesPerCode {
		if n < 0 {
			warnings = append(warnings, fmt.Sprintf("retries_per_code %s is negative and disables retries", key))
		}
	}
	return warnings
}
