package retry

import (
	errs "httpretry/pkg/errors"
	"httpretry/pkg/transport"
)

// OutcomeKind tells what one attempt produced
type OutcomeKind int

const (
	// OutcomeEmpty means the transport returned neither response nor error
	OutcomeEmpty OutcomeKind = iota
	// OutcomeSuccess is a response with status below 400
	OutcomeSuccess
	// OutcomeStatus is a response with status 400 or above
	OutcomeStatus
	// OutcomeTimeout is an attempt aborted by its deadline
	OutcomeTimeout
	// OutcomeNetwork is any other transport failure
	OutcomeNetwork
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeStatus:
		return "status_failure"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNetwork:
		return "network"
	default:
		return "empty"
	}
}

// Outcome is the result of one attempt
type Outcome struct {
	Kind     OutcomeKind
	Response *transport.Response
	Err      error
}

// NewOutcome wraps a transport result. An error takes precedence over a response.
func NewOutcome(resp *transport.Response, err error) Outcome {
	switch {
	case err != nil && errs.IsDeadlineAbort(err):
		return Outcome{Kind: OutcomeTimeout, Response: resp, Err: err}
	case err != nil:
		return Outcome{Kind: OutcomeNetwork, Response: resp, Err: err}
	case resp == nil:
		return Outcome{Kind: OutcomeEmpty}
	case resp.StatusCode < 400:
		return Outcome{Kind: OutcomeSuccess, Response: resp}
	default:
		return Outcome{Kind: OutcomeStatus, Response: resp}
	}
}

// StatusCode returns the response status or 0 when there is none
func (o Outcome) StatusCode() int {
	if o.Response == nil {
		return 0
	}
	return o.Response.StatusCode
}

// Classifier decides whether another attempt follows. attempt counts the
// attempts already made minus one.
type Classifier interface {
	Classify(outcome Outcome, attempt int) bool
}

// ClassifierFunc adapts a plain function to Classifier
type ClassifierFunc func(outcome Outcome, attempt int) bool

// Classify calls f
func (f ClassifierFunc) Classify(outcome Outcome, attempt int) bool {
	return f(outcome, attempt)
}

// Decision explains a classification
type Decision struct {
	Retry    bool
	Category errs.Category
	// Key is the budget key consulted, empty when none was
	Key    string
	Budget int
}

// decider is implemented by classifiers that can explain themselves
type decider interface {
	Decide(outcome Outcome, attempt int) Decision
}

// BudgetClassifier retries while attempt is below the budget the outcome maps to
type BudgetClassifier struct {
	budgets map[string]int
}

// NewBudgetClassifier reads budgets from cfg
func NewBudgetClassifier(cfg *Configuration) *BudgetClassifier {
	return &BudgetClassifier{budgets: cfg.Budgets()}
}

// Classify reports whether outcome should be retried
func (c *BudgetClassifier) Classify(outcome Outcome, attempt int) bool {
	return c.Decide(outcome, attempt).Retry
}

// Decide applies the rules in order: deadline abort, other transport error,
// server status, any other status (2xx included), nothing to retry. An exact
// status code key wins over the server class so {"503": 1} bounds 503s by
// itself.
func (c *BudgetClassifier) Decide(outcome Outcome, attempt int) Decision {
	status := outcome.StatusCode()
	category := errs.Categorize(outcome.Err, status)

	var key string
	switch category {
	case errs.CategoryDeadlineAbort:
		key = KeyTimeout
	case errs.CategoryTransport:
		key = KeyNetworkIssue
	case errs.CategoryServerStatus:
		key = KeyServerError
		if _, ok := c.budgets[StatusKey(status)]; ok {
			key = StatusKey(status)
		}
	case errs.CategoryStatus:
		key = c.statusKey(status)
	default:
		return Decision{Category: category}
	}

	budget := c.lookup(key, status)
	return Decision{
		Retry:    attempt < budget,
		Category: category,
		Key:      key,
		Budget:   budget,
	}
}

// statusKey picks the most specific key present for status: exact code,
// then class.
func (c *BudgetClassifier) statusKey(status int) string {
	if _, ok := c.budgets[StatusKey(status)]; ok {
		return StatusKey(status)
	}
	return StatusClassKey(status)
}

func (c *BudgetClassifier) lookup(key string, status int) int {
	if v, ok := c.budgets[key]; ok {
		return v
	}
	if status > 0 {
		if v, ok := DefaultBudgets()[StatusClassKey(status)]; ok {
			return v
		}
	}
	if v, ok := DefaultBudgets()[key]; ok {
		return v
	}
	return 0
}

func decide(cl Classifier, outcome Outcome, attempt int) Decision {
	if d, ok := cl.(decider); ok {
		return d.Decide(outcome, attempt)
	}
	retry := cl.Classify(outcome, attempt)
	return Decision{
		Retry:    retry,
		Category: errs.Categorize(outcome.Err, outcome.StatusCode()),
	}
}
