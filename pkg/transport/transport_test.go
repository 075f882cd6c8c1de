package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "httpretry/pkg/errors"
	"httpretry/pkg/logger"
	"httpretry/pkg/ratelimit"
)

type staticCredentials map[string]string

func (s staticCredentials) Header(host string) (string, bool) {
	v, ok := s[host]
	return v, ok
}

func TestExchangeReadsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, `{"ping":true}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "httpretry-test", r.Header.Get("User-Agent"))
		w.Header().Set("X-Served-By", "test")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	h := NewHTTP(WithUserAgent("httpretry-test"), WithLogger(logger.NewNopLogger()))
	req := &Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"ping":true}`),
	}

	resp, err := h.Exchange(context.Background(), server.URL, req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", string(resp.Body))
	assert.Equal(t, "test", resp.Header.Get("X-Served-By"))
	assert.Positive(t, resp.Elapsed)
}

func TestExchangeDefaultsToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := NewHTTP(WithLogger(logger.NewNopLogger())).Exchange(context.Background(), server.URL, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestExchangeDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTP(WithLogger(logger.NewNopLogger())).Exchange(context.Background(), server.URL, nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errs.IsDeadlineAbort(err))

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeTimeout, typed.Type)
}

func TestExchangeParentCancelIsNotTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := NewHTTP(WithLogger(logger.NewNopLogger())).Exchange(ctx, server.URL, nil, 5*time.Second)
	require.Error(t, err)
	assert.False(t, errs.IsDeadlineAbort(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeConnectionRefusedIsNetwork(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewHTTP(WithLogger(logger.NewNopLogger())).Exchange(context.Background(), "http://"+addr+"/", nil, time.Second)
	require.Error(t, err)
	assert.False(t, errs.IsDeadlineAbort(err))

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeNetwork, typed.Type)
}

func TestExchangeInvalidRequest(t *testing.T) {
	_, err := NewHTTP(WithLogger(logger.NewNopLogger())).Exchange(context.Background(), "http://bad host/", nil, time.Second)
	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeRequest, typed.Type)
}

func TestExchangeHeadersAndCredentials(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	h := NewHTTP(
		WithHeaders(map[string]string{"Accept": "text/plain", "X-Team": "infra"}),
		WithCredentials(staticCredentials{"127.0.0.1": "Bearer secret"}),
		WithLogger(logger.NewNopLogger()),
	)
	req := &Request{Header: http.Header{"Accept": []string{"application/json"}}}

	_, err := h.Exchange(context.Background(), server.URL, req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "application/json", got.Get("Accept"), "request headers win over defaults")
	assert.Equal(t, "infra", got.Get("X-Team"))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))

	req.Header.Set("Authorization", "Basic abc")
	_, err = h.Exchange(context.Background(), server.URL, req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Basic abc", got.Get("Authorization"), "explicit authorization is kept")
}

func TestExchangeLimiterWaitCountsAgainstDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// one token per minute: the second attempt cannot get one within its deadline
	limiter := ratelimit.NewTokenBucket(1, time.Minute, 1)
	h := NewHTTP(WithLimiter(limiter), WithLogger(logger.NewNopLogger()))

	_, err := h.Exchange(context.Background(), server.URL, nil, time.Second)
	require.NoError(t, err)

	_, err = h.Exchange(context.Background(), server.URL, nil, 100*time.Millisecond)
	require.Error(t, err)
}

func TestFuncAdapter(t *testing.T) {
	var tr Transport = Func(func(ctx context.Context, target string, req *Request, timeout time.Duration) (*Response, error) {
		return &Response{StatusCode: 418}, nil
	})
	resp, err := tr.Exchange(context.Background(), "http://x/", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 418, resp.StatusCode)
}

func TestEnsureRequestID(t *testing.T) {
	req := &Request{}
	id := EnsureRequestID(req)
	assert.Len(t, id, 36)
	assert.Equal(t, id, req.Header.Get(HeaderRequestID))
	assert.Equal(t, id, EnsureRequestID(req), "existing id is kept")
}

func TestHost(t *testing.T) {
	host, err := Host("https://api.example.com:8443/v1?x=1")
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", host)

	_, err = Host("/relative/path")
	assert.Error(t, err)

	_, err = Host("http://[::1")
	assert.Error(t, err)
}
