package retry

import (
	"math"
	"time"
)

// Backoff computes the wait before the next attempt. attempt is the number
// of attempts already made minus one, so the first retry sees 0.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts a plain function to Backoff
type BackoffFunc func(attempt int) time.Duration

// Delay calls f
func (f BackoffFunc) Delay(attempt int) time.Duration {
	return f(attempt)
}

// DefaultBackoff grows as Coefficient^attempt * Initial clamped to Max, or
// stays at Initial when Exponential is false. It adds no jitter.
type DefaultBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	Exponential bool
	Coefficient float64
}

// NewDefaultBackoff builds the delay strategy described by cfg
func NewDefaultBackoff(cfg *Configuration) *DefaultBackoff {
	return &DefaultBackoff{
		Initial:     cfg.InitialDelay,
		Max:         cfg.MaxDelay,
		Exponential: cfg.Exponential,
		Coefficient: cfg.ExponentialCoefficient,
	}
}

// Delay returns the wait before retrying after attempt
func (b *DefaultBackoff) Delay(attempt int) time.Duration {
	if !b.Exponential {
		return b.Initial
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := math.Pow(b.Coefficient, float64(attempt)) * float64(b.Initial)
	if delay > float64(b.Max) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		return b.Max
	}
	return time.Duration(math.Round(delay))
}
