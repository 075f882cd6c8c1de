package retry

import (
	"context"
	"strconv"
	"time"

	"httpretry/pkg/budget"
)

// Budget keys that are not HTTP status codes or classes. They share one table
// with the status classes but describe transport failures, not responses.
const (
	// KeyTimeout budgets attempts aborted by their per-attempt deadline
	KeyTimeout = budget.Timeout
	// KeyNetworkIssue budgets transport failures other than deadline aborts
	KeyNetworkIssue = budget.NetworkIssue
	// KeyServerError is the status class consulted for every status >= 500
	KeyServerError = "5XX"
)

// Defaults applied when a call does not override them
const (
	DefaultInitialDelay           = 4000 * time.Millisecond
	DefaultMaxDelay               = 25000 * time.Millisecond
	DefaultExponential            = true
	DefaultExponentialCoefficient = 1.5
	DefaultTimeout                = 30000 * time.Millisecond
)

// DefaultBudgets returns a fresh copy of the default retry budgets
func DefaultBudgets() map[string]int {
	return map[string]int{
		"5XX":           3,
		"4XX":           0,
		"3XX":           0,
		"2XX":           0,
		"1XX":           0,
		KeyTimeout:      3,
		KeyNetworkIssue: 5,
	}
}

// StatusKey returns the exact-code budget key for a status ("503")
func StatusKey(status int) string {
	return strconv.Itoa(status)
}

// StatusClassKey returns the class budget key for a status ("5XX")
func StatusClassKey(status int) string {
	code := strconv.Itoa(status)
	return code[:1] + "XX"
}

// NormalizeKey returns the canonical spelling of a budget key, so "5xx",
// "timeout", "network_issue" and "networkIssue" match the table.
func NormalizeKey(key string) string {
	return budget.Normalize(key)
}

// Configuration is the resolved, per-call retry policy. Build it with
// Resolve; it is not modified after resolution.
type Configuration struct {
	InitialDelay           time.Duration
	MaxDelay               time.Duration
	Exponential            bool
	ExponentialCoefficient float64
	Timeout                time.Duration

	budgets    map[string]int
	backoff    Backoff
	classifier Classifier
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option overrides part of the default configuration
type Option func(*Configuration)

// WithInitialRetryDelay sets the wait before the first retry
func WithInitialRetryDelay(d time.Duration) Option {
	return func(c *Configuration) { c.InitialDelay = d }
}

// WithMaxRetryDelay sets the upper clamp for exponential delays
func WithMaxRetryDelay(d time.Duration) Option {
	return func(c *Configuration) { c.MaxDelay = d }
}

// WithExponentialBackoff selects exponential (true) or constant (false) delays
func WithExponentialBackoff(enabled bool) Option {
	return func(c *Configuration) { c.Exponential = enabled }
}

// WithExponentialCoefficient sets the growth factor of exponential delays
func WithExponentialCoefficient(f float64) Option {
	return func(c *Configuration) { c.ExponentialCoefficient = f }
}

// WithTimeout sets the per-attempt deadline
func WithTimeout(d time.Duration) Option {
	return func(c *Configuration) { c.Timeout = d }
}

// WithRetriesPerCode merges budgets key by key over the defaults. Keys are
// exact codes ("429"), classes ("4XX"), TIMEOUT or NETWORK_ISSUE.
func WithRetriesPerCode(budgets map[string]int) Option {
	return func(c *Configuration) {
		for k, v := range budgets {
			c.budgets[NormalizeKey(k)] = v
		}
	}
}

// WithBackoff replaces the built-in delay computation
func WithBackoff(b Backoff) Option {
	return func(c *Configuration) { c.backoff = b }
}

// WithClassifier replaces the built-in retry decision
func WithClassifier(cl Classifier) Option {
	return func(c *Configuration) { c.classifier = cl }
}

// Resolve applies opts over the defaults and returns the call's configuration
func Resolve(opts ...Option) *Configuration {
	c := &Configuration{
		InitialDelay:           DefaultInitialDelay,
		MaxDelay:               DefaultMaxDelay,
		Exponential:            DefaultExponential,
		ExponentialCoefficient: DefaultExponentialCoefficient,
		Timeout:                DefaultTimeout,
		budgets:                DefaultBudgets(),
		sleep:                  Wait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.backoff == nil {
		c.backoff = NewDefaultBackoff(c)
	}
	if c.classifier == nil {
		c.classifier = NewBudgetClassifier(c)
	}
	return c
}

// Budget returns the configured budget for key and whether it is set
func (c *Configuration) Budget(key string) (int, bool) {
	v, ok := c.budgets[NormalizeKey(key)]
	return v, ok
}

// Budgets returns a copy of the merged budget table
func (c *Configuration) Budgets() map[string]int {
	out := make(map[string]int, len(c.budgets))
	for k, v := range c.budgets {
		out[k] = v
	}
	return out
}

// Backoff returns the delay strategy in effect
func (c *Configuration) Backoff() Backoff { return c.backoff }

// Classifier returns the retry decision strategy in effect
func (c *Configuration) Classifier() Classifier { return c.classifier }

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
