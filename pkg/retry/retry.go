package retry

import (
	"context"
	"net/http"
	"time"

	errs "httpretry/pkg/errors"
	"httpretry/pkg/logger"
	"httpretry/pkg/transport"
)

// Event describes one step of a call for observers
type Event struct {
	Target   string
	Attempt  int
	Outcome  Outcome
	Decision Decision
	// Delay is set on retry events
	Delay time.Duration
	// Elapsed is set on done events and covers the whole call
	Elapsed time.Duration
	// Err is the error returned to the caller on done events
	Err error
}

// Observer receives call progress. Implementations must be safe for
// concurrent use when one Client serves several goroutines.
type Observer interface {
	OnAttempt(Event)
	OnRetry(Event)
	OnDone(Event)
}

type nopObserver struct{}

func (nopObserver) OnAttempt(Event) {}
func (nopObserver) OnRetry(Event)   {}
func (nopObserver) OnDone(Event)    {}

// Client runs calls against a transport with retries
type Client struct {
	transport transport.Transport
	logger    logger.Logger
	observer  Observer
	defaults  []Option
	requestID bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the client logger
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the progress observer
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithDefaults sets options applied to every call before the call's own
func WithDefaults(opts ...Option) ClientOption {
	return func(c *Client) { c.defaults = append(c.defaults, opts...) }
}

// WithRequestID stamps every call with an X-Request-ID shared by its attempts
func WithRequestID(enabled bool) ClientOption {
	return func(c *Client) { c.requestID = enabled }
}

// NewClient creates a client over tr
func NewClient(tr transport.Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: tr,
		logger:    logger.GetLogger(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req to target with the client's transport
func Do(ctx context.Context, tr transport.Transport, target string, req *transport.Request, opts ...Option) (*transport.Response, error) {
	return NewClient(tr).Do(ctx, target, req, opts...)
}

// Do sends req to target, retrying as the resolved configuration allows.
// The last response (of any status) or the transport's error is returned
// unchanged. Cancelling ctx stops the loop: an outcome received after
// cancellation is returned as is, and cancellation during a wait returns
// ctx.Err().
func (c *Client) Do(ctx context.Context, target string, req *transport.Request, opts ...Option) (*transport.Response, error) {
	cfg := Resolve(append(append([]Option(nil), c.defaults...), opts...)...)
	if req == nil {
		req = &transport.Request{}
	}

	fields := map[string]interface{}{"target": target}
	if c.requestID {
		req = cloneRequest(req)
		fields["request_id"] = transport.EnsureRequestID(req)
	}
	log := c.logger.WithFields(fields)

	start := time.Now()
	for attempt := 0; ; attempt++ {
		resp, err := c.transport.Exchange(ctx, target, req, cfg.Timeout)
		outcome := NewOutcome(resp, err)
		decision := decide(cfg.Classifier(), outcome, attempt)

		ev := Event{Target: target, Attempt: attempt, Outcome: outcome, Decision: decision}
		c.observer.OnAttempt(ev)

		if decision.Retry && ctx.Err() != nil {
			decision.Retry = false
			ev.Decision = decision
		}

		if !decision.Retry {
			ev.Elapsed = time.Since(start)
			result, resultErr := finish(resp, err)
			ev.Err = resultErr
			c.logDone(log, ev)
			c.observer.OnDone(ev)
			return result, resultErr
		}

		delay := cfg.Backoff().Delay(attempt)
		ev.Delay = delay
		c.observer.OnRetry(ev)
		log.WarnWithFields("retrying request", attemptFields(ev))

		if werr := cfg.sleep(ctx, delay); werr != nil {
			ev.Elapsed = time.Since(start)
			ev.Err = werr
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt + 1,
				"reason":  werr.Error(),
			})
			c.observer.OnDone(ev)
			return nil, werr
		}
	}
}

func finish(resp *transport.Response, err error) (*transport.Response, error) {
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.ErrNoResponse
	}
	return resp, nil
}

func (c *Client) logDone(log logger.Logger, ev Event) {
	fields := attemptFields(ev)
	fields["attempts"] = ev.Attempt + 1
	fields["elapsed_ms"] = ev.Elapsed.Milliseconds()

	switch {
	case ev.Err != nil:
		log.WarnWithFields("request failed", fields)
	case ev.Outcome.StatusCode() >= 400:
		log.InfoWithFields("request finished with failure status", fields)
	case ev.Attempt > 0:
		log.InfoWithFields("request succeeded after retry", fields)
	default:
		log.DebugWithFields("request succeeded", fields)
	}
}

func attemptFields(ev Event) map[string]interface{} {
	fields := map[string]interface{}{
		"attempt":  ev.Attempt + 1,
		"outcome":  ev.Outcome.Kind.String(),
		"category": string(ev.Decision.Category),
	}
	if ev.Decision.Key != "" {
		fields["budget_key"] = ev.Decision.Key
		fields["budget"] = ev.Decision.Budget
	}
	if status := ev.Outcome.StatusCode(); status > 0 {
		fields["status"] = status
	}
	if ev.Outcome.Err != nil {
		fields["error"] = ev.Outcome.Err.Error()
	}
	if ev.Delay > 0 {
		fields["delay_ms"] = ev.Delay.Milliseconds()
	}
	return fields
}

func cloneRequest(req *transport.Request) *transport.Request {
	clone := *req
	if req.Header != nil {
		clone.Header = req.Header.Clone()
	} else {
		clone.Header = make(http.Header)
	}
	return &clone
}
