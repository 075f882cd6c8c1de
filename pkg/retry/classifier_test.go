package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	errs "httpretry/pkg/errors"
	"httpretry/pkg/transport"
)

func response(code int) Outcome {
	return NewOutcome(&transport.Response{StatusCode: code}, nil)
}

func TestNewOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, response(200).Kind)
	assert.Equal(t, OutcomeSuccess, response(304).Kind)
	assert.Equal(t, OutcomeStatus, response(404).Kind)
	assert.Equal(t, OutcomeStatus, response(503).Kind)
	assert.Equal(t, OutcomeEmpty, NewOutcome(nil, nil).Kind)

	timeout := NewOutcome(nil, errs.NewTimeout("deadline", context.DeadlineExceeded))
	assert.Equal(t, OutcomeTimeout, timeout.Kind)

	wrapped := NewOutcome(nil, fmt.Errorf("read body: %w", context.DeadlineExceeded))
	assert.Equal(t, OutcomeTimeout, wrapped.Kind)

	network := NewOutcome(nil, errors.New("no such host"))
	assert.Equal(t, OutcomeNetwork, network.Kind)
	assert.Equal(t, "network", network.Kind.String())
}

func TestBudgetClassifierDecide(t *testing.T) {
	tests := []struct {
		name       string
		budgets    map[string]int
		outcome    Outcome
		attempt    int
		wantRetry  bool
		wantKey    string
		wantBudget int
	}{
		{"timeout default", nil, NewOutcome(nil, errs.NewTimeout("t", nil)), 2, true, KeyTimeout, 3},
		{"timeout exhausted", nil, NewOutcome(nil, errs.NewTimeout("t", nil)), 3, false, KeyTimeout, 3},
		{"network default", nil, NewOutcome(nil, errors.New("refused")), 4, true, KeyNetworkIssue, 5},
		{"network exhausted", nil, NewOutcome(nil, errors.New("refused")), 5, false, KeyNetworkIssue, 5},
		{"5xx default", nil, response(500), 0, true, KeyServerError, 3},
		{"5xx override", map[string]int{"5xx": 1}, response(502), 1, false, KeyServerError, 1},
		{"exact 5xx code", map[string]int{"503": 0}, response(503), 0, false, "503", 0},
		{"exact code only for its status", map[string]int{"503": 0}, response(504), 0, true, KeyServerError, 3},
		{"non-standard status uses 5XX", nil, response(600), 0, true, KeyServerError, 3},
		{"4xx default", nil, response(429), 0, false, "4XX", 0},
		{"exact 4xx code", map[string]int{"429": 2}, response(429), 1, true, "429", 2},
		{"class over default", map[string]int{"4XX": 1}, response(404), 0, true, "4XX", 1},
		{"exact over class", map[string]int{"4XX": 3, "404": 0}, response(404), 0, false, "404", 0},
		{"2xx default", nil, response(200), 0, false, "2XX", 0},
		{"2xx override", map[string]int{"2XX": 1}, response(202), 0, true, "2XX", 1},
		{"unknown class", nil, response(99), 0, false, "9XX", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := NewBudgetClassifier(Resolve(WithRetriesPerCode(tt.budgets)))
			d := cl.Decide(tt.outcome, tt.attempt)
			assert.Equal(t, tt.wantRetry, d.Retry)
			assert.Equal(t, tt.wantKey, d.Key)
			assert.Equal(t, tt.wantBudget, d.Budget)
			assert.Equal(t, tt.wantRetry, cl.Classify(tt.outcome, tt.attempt))
		})
	}
}

func TestBudgetClassifierEmptyOutcome(t *testing.T) {
	cl := NewBudgetClassifier(Resolve())
	d := cl.Decide(NewOutcome(nil, nil), 0)
	assert.False(t, d.Retry)
	assert.Empty(t, d.Key)
	assert.Equal(t, errs.CategoryNone, d.Category)
}

func TestBudgetClassifierZeroBudgetIsTerminal(t *testing.T) {
	cl := NewBudgetClassifier(Resolve(WithRetriesPerCode(map[string]int{
		KeyTimeout:      0,
		KeyNetworkIssue: 0,
		"5XX":           0,
	})))
	assert.False(t, cl.Classify(NewOutcome(nil, errs.NewTimeout("t", nil)), 0))
	assert.False(t, cl.Classify(NewOutcome(nil, errors.New("refused")), 0))
	assert.False(t, cl.Classify(response(500), 0))
}

func TestDecideWithPlainClassifier(t *testing.T) {
	always := ClassifierFunc(func(Outcome, int) bool { return true })
	d := decide(always, response(418), 7)
	assert.True(t, d.Retry)
	assert.Empty(t, d.Key)
	assert.Equal(t, errs.CategoryStatus, d.Category)
}
