package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// BatchTracker counts finished calls of a batch run
type BatchTracker struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	errored   int
	skipped   int
	startTime time.Time
}

// NewBatchTracker creates a tracker for total calls
func NewBatchTracker(total int) *BatchTracker {
	return &BatchTracker{total: total, startTime: time.Now()}
}

// RecordSuccess counts a call ending in a status below 400
func (bt *BatchTracker) RecordSuccess() { bt.add(&bt.succeeded) }

// RecordStatusFailure counts a call ending in a status of 400 or above
func (bt *BatchTracker) RecordStatusFailure() { bt.add(&bt.failed) }

// RecordError counts a call ending in an error
func (bt *BatchTracker) RecordError() { bt.add(&bt.errored) }

// RecordSkipped counts a call skipped because its body was already saved
func (bt *BatchTracker) RecordSkipped() { bt.add(&bt.skipped) }

func (bt *BatchTracker) add(counter *int) {
	bt.mu.Lock()
	*counter++
	bt.mu.Unlock()
}

// Done returns the number of finished calls
func (bt *BatchTracker) Done() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.succeeded + bt.failed + bt.errored + bt.skipped
}

// Bar returns a progress bar of the given width
func (bt *BatchTracker) Bar(width int) string {
	done := bt.Done()
	filled := 0
	if bt.total > 0 {
		filled = done * width / bt.total
	}
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		done, bt.total)
}

// Rate returns finished calls per minute
func (bt *BatchTracker) Rate() float64 {
	elapsed := time.Since(bt.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(bt.Done()) / elapsed
}

// Summary returns a one-line tally
func (bt *BatchTracker) Summary() string {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return fmt.Sprintf("ok=%d failed_status=%d errors=%d skipped=%d elapsed=%s",
		bt.succeeded, bt.failed, bt.errored, bt.skipped,
		time.Since(bt.startTime).Round(time.Millisecond))
}

// Failures returns the number of calls that did not succeed
func (bt *BatchTracker) Failures() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.failed + bt.errored
}
