package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing attempts
type Limiter interface {
	// Allow reports whether an attempt may start now, consuming a token if so
	Allow() bool
	// Wait blocks until an attempt may start or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows capacity attempts per refillPeriod with bursts of up to burst
func NewTokenBucket(capacity int, refillPeriod time.Duration, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	if capacity <= 0 || refillPeriod <= 0 {
		return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	every := rate.Every(refillPeriod / time.Duration(capacity))
	return &TokenBucket{limiter: rate.NewLimiter(every, burst)}
}

// NewPerMinute allows requestsPerMinute attempts per minute. A non-positive
// rate returns nil, which callers treat as "no limit"; check before storing
// the result in a Limiter interface.
func NewPerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute <= 0 {
		return nil
	}
	return NewTokenBucket(requestsPerMinute, time.Minute, burst)
}

// Allow checks if an attempt can proceed immediately
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available. It fails fast when ctx's deadline
// would pass before the token arrives.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Limit returns the configured rate in events per second
func (tb *TokenBucket) Limit() float64 {
	return float64(tb.limiter.Limit())
}
