// Package retry wraps a single HTTP exchange with a retry policy.
//
// Every call resolves its own Configuration from the defaults plus the
// call's options. After each attempt a Classifier decides whether another
// attempt follows and a Backoff gives the wait before it. Attempts are
// strictly sequential.
//
// Basic usage:
//
//	tr := transport.NewHTTP(transport.WithUserAgent("httpretry/1.0"))
//	resp, err := retry.Do(ctx, tr, "https://example.com/health", nil,
//		retry.WithRetriesPerCode(map[string]int{"429": 2}),
//		retry.WithTimeout(5*time.Second),
//	)
//
// # Budgets
//
// Budgets are keyed by exact status code ("503"), status class ("4XX"),
// TIMEOUT for attempts aborted by their deadline, and NETWORK_ISSUE for
// other transport failures. An attempt is retried while its zero-based
// index is below the budget, so a budget of 2 allows three attempts.
//
// The defaults are 5XX=3, 4XX=0, 3XX=0, 2XX=0, 1XX=0, TIMEOUT=3 and
// NETWORK_ISSUE=5. Options merge over them key by key.
//
// Any status of 500 or above is budgeted by "5XX" unless the exact code has
// its own key; this includes non-standard codes such as 600. Other statuses
// look up the exact code, then the class, then the default table, then 0.
//
// # Backoff
//
// The wait after attempt n is min(coefficient^n * initial, max) with
// exponential backoff enabled and initial otherwise. There is no jitter.
//
// # Results
//
// Do never converts statuses into errors. It returns the final response of
// any status, or the transport's error unchanged, so callers can match
// errors from the transport layer directly.
package retry
