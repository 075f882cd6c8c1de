package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBackoff(t *testing.T) {
	constant := NewDefaultBackoff(Resolve(WithExponentialBackoff(false), WithInitialRetryDelay(1500*time.Millisecond)))
	for attempt := 0; attempt < 10; attempt++ {
		assert.Equal(t, 1500*time.Millisecond, constant.Delay(attempt))
	}

	exp := NewDefaultBackoff(Resolve())
	assert.Equal(t, DefaultInitialDelay, exp.Delay(0))

	prev := time.Duration(0)
	for attempt := 0; attempt < 200; attempt++ {
		d := exp.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, DefaultMaxDelay)
		prev = d
	}
	assert.Equal(t, DefaultMaxDelay, exp.Delay(5000), "overflowing powers clamp to max")
}

func TestDefaultBackoffRounding(t *testing.T) {
	b := &DefaultBackoff{Initial: time.Millisecond, Max: time.Second, Exponential: true, Coefficient: 1.1}
	assert.Equal(t, 1100*time.Microsecond, b.Delay(1))
	assert.Equal(t, 1210*time.Microsecond, b.Delay(2))
}

func TestBackoffFunc(t *testing.T) {
	b := BackoffFunc(func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second })
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 3*time.Second, b.Delay(2))
}
