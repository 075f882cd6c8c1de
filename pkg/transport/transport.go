package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	errs "httpretry/pkg/errors"
	"httpretry/pkg/logger"
	"httpretry/pkg/ratelimit"
)

// HeaderRequestID carries the call-scoped id shared by every attempt
const HeaderRequestID = "X-Request-ID"

// Transport performs exactly one HTTP exchange. The timeout bounds that one
// exchange; expiry must surface as an error for which errors.IsDeadlineAbort
// reports true.
type Transport interface {
	Exchange(ctx context.Context, target string, req *Request, timeout time.Duration) (*Response, error)
}

// Func adapts a plain function to Transport
type Func func(ctx context.Context, target string, req *Request, timeout time.Duration) (*Response, error)

// Exchange calls f
func (f Func) Exchange(ctx context.Context, target string, req *Request, timeout time.Duration) (*Response, error) {
	return f(ctx, target, req, timeout)
}

// Request is the method/headers/body bundle sent on every attempt
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// CredentialSource yields an Authorization header value for a host
type CredentialSource interface {
	Header(host string) (string, bool)
}

// HTTP is a Transport backed by net/http
type HTTP struct {
	client      *http.Client
	headers     map[string]string
	limiter     ratelimit.Limiter
	credentials CredentialSource
	logger      logger.Logger
}

// Option configures an HTTP transport
type Option func(*HTTP)

// WithHTTPClient replaces the underlying http.Client. Its Timeout should be
// zero; the per-attempt deadline is applied through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithHeaders sets default headers added to every request unless already present
func WithHeaders(headers map[string]string) Option {
	return func(h *HTTP) {
		for k, v := range headers {
			h.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent default header
func WithUserAgent(ua string) Option {
	return func(h *HTTP) {
		if ua != "" {
			h.headers["User-Agent"] = ua
		}
	}
}

// WithLimiter paces attempts; the wait counts against the attempt deadline
func WithLimiter(l ratelimit.Limiter) Option {
	return func(h *HTTP) { h.limiter = l }
}

// WithCredentials attaches an Authorization header for hosts the source knows
func WithCredentials(src CredentialSource) Option {
	return func(h *HTTP) { h.credentials = src }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTP creates a net/http backed transport
func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client:  &http.Client{},
		headers: make(map[string]string),
		logger:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Exchange performs one request bounded by timeout and reads the whole body
// before returning, so the deadline covers the body as well.
func (h *HTTP) Exchange(ctx context.Context, target string, req *Request, timeout time.Duration) (*Response, error) {
	if req == nil {
		req = &Request{}
	}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeRequest, Message: "failed to build request", Err: err}
	}
	h.applyHeaders(httpReq, req.Header)

	if h.limiter != nil {
		if err := h.limiter.Wait(attemptCtx); err != nil {
			return nil, h.classify(ctx, attemptCtx, "rate limiter wait aborted", err)
		}
	}

	start := time.Now()
	h.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method":  method,
		"url":     target,
		"timeout": timeout,
	})

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, h.classify(ctx, attemptCtx, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, h.classify(ctx, attemptCtx, "failed to read response body", err)
	}

	elapsed := time.Since(start)
	logger.LogExchange(h.logger, method, target, resp.StatusCode, float64(elapsed.Microseconds())/1000)

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
		Elapsed:    elapsed,
	}, nil
}

func (h *HTTP) applyHeaders(httpReq *http.Request, header http.Header) {
	for k, values := range header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, v := range h.headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}
	if h.credentials != nil && httpReq.Header.Get("Authorization") == "" {
		if value, ok := h.credentials.Header(httpReq.URL.Hostname()); ok {
			httpReq.Header.Set("Authorization", value)
		}
	}
}

// classify types err as a deadline abort only when the attempt deadline, not
// the caller's context, ended the exchange.
func (h *HTTP) classify(parent, attemptCtx context.Context, message string, err error) error {
	if parent.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
		return errs.NewTimeout(message, err)
	}
	return errs.NewNetwork(message, err)
}

// EnsureRequestID sets a fresh X-Request-ID on req unless one is present and returns it
func EnsureRequestID(req *Request) string {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if id := req.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	id := uuid.NewString()
	req.Header.Set(HeaderRequestID, id)
	return id
}

// Host extracts the host name from a target URL
func Host(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid target %q: missing host", target)
	}
	return u.Hostname(), nil
}
