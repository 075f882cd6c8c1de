package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "httpretry/pkg/errors"
	"httpretry/pkg/logger"
	"httpretry/pkg/retry"
	"httpretry/pkg/transport"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m := New("", nil)
	require.NotNil(t, m)
	assert.NotNil(t, m.Registry())

	registry := prometheus.NewRegistry()
	m = New("test", registry)
	assert.Same(t, registry, m.Registry())
}

func TestObserverCounts(t *testing.T) {
	t.Parallel()

	m := New("test", prometheus.NewRegistry())
	calls := 0
	tr := transport.Func(func(ctx context.Context, target string, req *transport.Request, timeout time.Duration) (*transport.Response, error) {
		calls++
		if calls < 3 {
			return &transport.Response{StatusCode: 503}, nil
		}
		return &transport.Response{StatusCode: 200}, nil
	})

	client := retry.NewClient(tr, retry.WithObserver(m), retry.WithLogger(logger.NewNopLogger()))
	resp, err := client.Do(context.Background(), "http://svc/", nil,
		retry.WithInitialRetryDelay(time.Millisecond),
		retry.WithMaxRetryDelay(2*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("status_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("5XX")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attemptsPerCall))
}

func TestResult(t *testing.T) {
	t.Parallel()

	ok := retry.NewOutcome(&transport.Response{StatusCode: 204}, nil)
	bad := retry.NewOutcome(&transport.Response{StatusCode: 404}, nil)
	netErr := errs.NewNetwork("refused", errors.New("refused"))

	assert.Equal(t, ResultSuccess, Result(retry.Event{Outcome: ok}))
	assert.Equal(t, ResultStatus, Result(retry.Event{Outcome: bad}))
	assert.Equal(t, ResultError, Result(retry.Event{Err: netErr}))
	assert.Equal(t, ResultCancelled, Result(retry.Event{Err: context.Canceled}))
}

func TestOnRetryCustomClassifier(t *testing.T) {
	t.Parallel()

	m := New("test", prometheus.NewRegistry())
	m.OnRetry(retry.Event{Delay: 2 * time.Second})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("custom")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New("test", prometheus.NewRegistry())
	m.OnDone(retry.Event{Outcome: retry.NewOutcome(&transport.Response{StatusCode: 200}, nil), Elapsed: time.Second})

	path := filepath.Join(t.TempDir(), "httpretry.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_calls_total{result="success"} 1`)

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}
