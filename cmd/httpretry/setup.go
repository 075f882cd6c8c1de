package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"httpretry/pkg/auth"
	"httpretry/pkg/config"
	"httpretry/pkg/logger"
	"httpretry/pkg/metrics"
	"httpretry/pkg/ratelimit"
	"httpretry/pkg/retry"
	"httpretry/pkg/transport"
	"httpretry/pkg/ui"
)

// addPolicyFlags registers the flags shared by fetch and batch. Only flags the
// user sets override the configuration file and environment.
func addPolicyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("initial-retry-delay", 0, "first retry wait (default 4s)")
	f.Duration("max-retry-delay", 0, "cap on a single retry wait (default 25s)")
	f.Bool("exponential-backoff", true, "grow waits exponentially instead of keeping them constant")
	f.Float64("exponential-coefficient", 0, "growth factor between waits (default 1.5)")
	f.Duration("timeout", 0, "per-attempt timeout (default 30s)")
	f.StringToInt("retries", nil, "retry budget per key, e.g. --retries 5XX=3,429=2,TIMEOUT=1")
	f.String("user-agent", "", "User-Agent header")
	f.Bool("auth", false, "attach stored credentials for the target host")
	f.Int("rate-limit", 0, "maximum attempts per minute (0 disables)")
	f.String("metrics-file", "", "write prometheus metrics to this textfile on exit")
	f.Bool("request-id", true, "send one X-Request-ID header shared by all attempts of a call")
}

// collectFlags returns the explicitly set flags keyed the way
// config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	f := cmd.Flags()
	flags := make(map[string]interface{})

	durations := []string{"initial-retry-delay", "max-retry-delay", "timeout"}
	for _, name := range durations {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetDuration(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}

	for _, name := range []string{"exponential-backoff", "auth"} {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetBool(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}

	if f.Changed("exponential-coefficient") {
		v, err := f.GetFloat64("exponential-coefficient")
		if err != nil {
			return nil, err
		}
		flags["exponential-coefficient"] = v
	}
	if f.Changed("retries") {
		v, err := f.GetStringToInt("retries")
		if err != nil {
			return nil, err
		}
		flags["retries"] = v
	}
	for _, name := range []string{"user-agent", "metrics-file"} {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetString(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}
	for _, name := range []string{"rate-limit", "workers"} {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetInt(name)
		if err != nil {
			return nil, err
		}
		flags[name] = v
	}

	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags, nil
}

// retryOptions converts the retry section into per-client default options
func retryOptions(rc config.RetryConfig) []retry.Option {
	return []retry.Option{
		retry.WithInitialRetryDelay(rc.InitialRetryDelay),
		retry.WithMaxRetryDelay(rc.MaxRetryDelay),
		retry.WithExponentialBackoff(rc.ExponentialBackoff),
		retry.WithExponentialCoefficient(rc.ExponentialCoefficient),
		retry.WithTimeout(rc.Timeout),
		retry.WithRetriesPerCode(rc.RetriesPerCode),
	}
}

// transportOptions builds the HTTP transport settings from the configuration
func transportOptions(cfg *config.Config, log logger.Logger, creds transport.CredentialSource) []transport.Option {
	opts := []transport.Option{
		transport.WithHeaders(cfg.HTTP.Headers),
		transport.WithUserAgent(cfg.HTTP.UserAgent),
		transport.WithLogger(log),
	}
	if limiter := ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize); limiter != nil {
		opts = append(opts, transport.WithLimiter(limiter))
	}
	if creds != nil {
		opts = append(opts, transport.WithCredentials(creds))
	}
	return opts
}

// session is everything a request command needs
type session struct {
	cfg     *config.Config
	log     logger.Logger
	client  *retry.Client
	metrics *metrics.RetryMetrics
	printer *ui.Printer
}

func newSession(cmd *cobra.Command) (*session, error) {
	flags, err := collectFlags(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	var creds transport.CredentialSource
	if cfg.HTTP.UseCredentials {
		mgr, err := auth.NewManager()
		if err != nil {
			return nil, fmt.Errorf("failed to open credential stores: %w", err)
		}
		creds = mgr
	}

	requestID, err := cmd.Flags().GetBool("request-id")
	if err != nil {
		return nil, err
	}

	clientOpts := []retry.ClientOption{
		retry.WithLogger(log),
		retry.WithDefaults(retryOptions(cfg.Retry)...),
		retry.WithRequestID(requestID),
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		printer: ui.NewPrinter(os.Stderr, cfg.Logging.NoColor, quiet),
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New("", nil)
		clientOpts = append(clientOpts, retry.WithObserver(s.metrics))
	}

	tr := transport.NewHTTP(transportOptions(cfg, log, creds)...)
	s.client = retry.NewClient(tr, clientOpts...)
	return s, nil
}

// close flushes metrics to the configured textfile
func (s *session) close() {
	if s.metrics == nil || s.cfg.Metrics.Textfile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		s.log.WithError(err).Error("failed to write metrics textfile")
		return
	}
	s.log.WithField("path", s.cfg.Metrics.Textfile).Debug("metrics written")
}
