package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"httpretry/pkg/budget"
)

// Config holds all configuration options for httpretry
type Config struct {
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Batch     BatchConfig     `yaml:"batch" json:"batch"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// RetryConfig holds the default retry policy applied to every call
type RetryConfig struct {
	InitialRetryDelay      time.Duration  `yaml:"initial_retry_delay" json:"initial_retry_delay"`
	MaxRetryDelay          time.Duration  `yaml:"max_retry_delay" json:"max_retry_delay"`
	ExponentialBackoff     bool           `yaml:"exponential_backoff" json:"exponential_backoff"`
	ExponentialCoefficient float64        `yaml:"exponential_coefficient" json:"exponential_coefficient"`
	Timeout                time.Duration  `yaml:"timeout" json:"timeout"`
	RetriesPerCode         map[string]int `yaml:"retries_per_code,omitempty" json:"retries_per_code,omitempty"`
}

// HTTPConfig holds transport-level settings
type HTTPConfig struct {
	UserAgent string            `yaml:"user_agent" json:"user_agent"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// UseCredentials attaches stored credentials for the target host
	UseCredentials bool `yaml:"use_credentials" json:"use_credentials"`
}

// RateLimitConfig paces outgoing attempts; zero RequestsPerMinute disables it
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// BatchConfig holds settings for the batch command
type BatchConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// MetricsConfig configures prometheus metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Textfile is written in the node_exporter textfile format when the command exits
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Console bool   `yaml:"console" json:"console"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with the documented defaults
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			InitialRetryDelay:      4000 * time.Millisecond,
			MaxRetryDelay:          25000 * time.Millisecond,
			ExponentialBackoff:     true,
			ExponentialCoefficient: 1.5,
			Timeout:                30000 * time.Millisecond,
		},
		HTTP: HTTPConfig{
			UserAgent: "httpretry/1.0",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			BurstSize:         1,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from HTTPRETRY_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("HTTPRETRY_INITIAL_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_INITIAL_RETRY_DELAY: %w", err))
		} else {
			c.Retry.InitialRetryDelay = d
		}
	}
	if v := os.Getenv("HTTPRETRY_MAX_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_MAX_RETRY_DELAY: %w", err))
		} else {
			c.Retry.MaxRetryDelay = d
		}
	}
	if v := os.Getenv("HTTPRETRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_TIMEOUT: %w", err))
		} else {
			c.Retry.Timeout = d
		}
	}
	if v := os.Getenv("HTTPRETRY_EXPONENTIAL_BACKOFF"); v != "" {
		c.Retry.ExponentialBackoff = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("HTTPRETRY_EXPONENTIAL_COEFFICIENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_EXPONENTIAL_COEFFICIENT: %w", err))
		} else {
			c.Retry.ExponentialCoefficient = f
		}
	}
	if v := os.Getenv("HTTPRETRY_RETRIES_PER_CODE"); v != "" {
		budgets, err := ParseBudgets(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_RETRIES_PER_CODE: %w", err))
		} else {
			if c.Retry.RetriesPerCode == nil {
				c.Retry.RetriesPerCode = make(map[string]int, len(budgets))
			}
			for k, n := range budgets {
				c.Retry.RetriesPerCode[k] = n
			}
		}
	}
	if v := os.Getenv("HTTPRETRY_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("HTTPRETRY_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("HTTPRETRY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTPRETRY_WORKERS: %w", err))
		} else if n > 0 {
			c.Batch.Workers = n
		}
	}
	if v := os.Getenv("HTTPRETRY_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = v
	}
	if v := os.Getenv("HTTPRETRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// ParseBudgets parses "KEY=N,KEY=N" into a budget map
func ParseBudgets(s string) (map[string]int, error) {
	budgets := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid budget %q: expected KEY=N", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid budget %q: %w", pair, err)
		}
		budgets[strings.TrimSpace(key)] = n
	}
	return budgets, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".httpretry.yaml",
		".httpretry.yml",
		filepath.Join(home, ".config", "httpretry", "config.yaml"),
		filepath.Join(home, ".config", "httpretry", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks that the configuration is usable by the CLI
func (c *Config) Validate() error {
	var errs []error

	if c.Retry.InitialRetryDelay < 0 {
		errs = append(errs, errors.New("initial retry delay cannot be negative"))
	}
	if c.Retry.MaxRetryDelay < 0 {
		errs = append(errs, errors.New("max retry delay cannot be negative"))
	}
	if c.Retry.ExponentialCoefficient <= 0 {
		errs = append(errs, errors.New("exponential coefficient must be positive"))
	}
	if c.Retry.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	for key := range c.Retry.RetriesPerCode {
		if !ValidBudgetKey(key) {
			errs = append(errs, fmt.Errorf("invalid retries_per_code key %q", key))
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive when rate limiting is enabled"))
	}

	if c.Batch.Workers <= 0 {
		errs = append(errs, errors.New("batch workers must be positive"))
	}
	if c.Batch.Workers > 64 {
		errs = append(errs, errors.New("batch workers should not exceed 64"))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		errs = append(errs, errors.New("metrics textfile is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "off": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// ValidBudgetKey reports whether key names a status code ("503"), a status
// class ("5XX") or one of the synthetic keys TIMEOUT / NETWORK_ISSUE. It
// accepts the same spellings the retry engine normalises.
func ValidBudgetKey(key string) bool {
	return budget.Valid(key)
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["initial-retry-delay"].(time.Duration); ok {
		c.Retry.InitialRetryDelay = v
	}
	if v, ok := flags["max-retry-delay"].(time.Duration); ok {
		c.Retry.MaxRetryDelay = v
	}
	if v, ok := flags["exponential-backoff"].(bool); ok {
		c.Retry.ExponentialBackoff = v
	}
	if v, ok := flags["exponential-coefficient"].(float64); ok {
		c.Retry.ExponentialCoefficient = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok {
		c.Retry.Timeout = v
	}
	if v, ok := flags["retries"].(map[string]int); ok && len(v) > 0 {
		if c.Retry.RetriesPerCode == nil {
			c.Retry.RetriesPerCode = make(map[string]int, len(v))
		}
		for k, n := range v {
			c.Retry.RetriesPerCode[k] = n
		}
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.HTTP.UserAgent = v
	}
	if v, ok := flags["auth"].(bool); ok {
		c.HTTP.UseCredentials = v
	}
	if v, ok := flags["rate-limit"].(int); ok {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Batch.Workers = v
	}
	if v, ok := flags["metrics-file"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Textfile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".httpretry.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
