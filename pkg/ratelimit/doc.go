// Package ratelimit paces outgoing HTTP attempts.
//
// The transport waits on a Limiter before every attempt, retries included,
// so a batch of independent calls sharing one transport never exceeds the
// configured rate. The wait happens inside the attempt's deadline: a limiter
// that cannot hand out a token before the deadline makes the attempt fail as
// a timeout.
//
// Usage:
//
//	limiter := ratelimit.NewPerMinute(120, 5)
//	tr := transport.NewHTTP(transport.WithLimiter(limiter))
package ratelimit
