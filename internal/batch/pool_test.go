package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpretry/internal/testserver"
	"httpretry/pkg/logger"
	"httpretry/pkg/retry"
	"httpretry/pkg/storage"
	"httpretry/pkg/transport"
)

func fastRetries() []retry.Option {
	return []retry.Option{
		retry.WithInitialRetryDelay(time.Millisecond),
		retry.WithMaxRetryDelay(5 * time.Millisecond),
		retry.WithTimeout(2 * time.Second),
	}
}

func newClient() *retry.Client {
	nop := logger.NewNopLogger()
	return retry.NewClient(transport.NewHTTP(transport.WithLogger(nop)), retry.WithLogger(nop))
}

func TestRunAgainstFlakyServer(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	srv.Script("/ok", testserver.Step{Status: 200, Body: "fine"})
	srv.Script("/flaky", append(testserver.Statuses(503, 502), testserver.Step{Status: 200, Body: "recovered"})...)
	srv.Script("/gone", testserver.Step{Status: 404})
	srv.Script("/down", testserver.Statuses(500)...)

	targets := []string{srv.URL() + "/ok", srv.URL() + "/flaky", srv.URL() + "/gone", srv.URL() + "/down"}
	results := Run(context.Background(), 3, newClient(), targets, nil,
		WithRetryOptions(fastRetries()...), WithLogger(logger.NewNopLogger()))

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.Job.Index)
		assert.Equal(t, targets[i], r.Job.Target)
		require.NoError(t, r.Err)
	}

	assert.Equal(t, "fine", string(results[0].Response.Body))
	assert.Equal(t, "recovered", string(results[1].Response.Body))
	assert.Equal(t, 404, results[2].Response.StatusCode)
	assert.Equal(t, 500, results[3].Response.StatusCode)

	assert.Equal(t, 3, srv.Hits("/flaky"))
	assert.Equal(t, 1, srv.Hits("/gone"))
	assert.Equal(t, 4, srv.Hits("/down"), "default 5XX budget allows three retries")
}

func TestRunSavesBodiesAndSkipsSaved(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.Script("/a", testserver.Step{Status: 200, Body: "alpha"})
	srv.Script("/b", testserver.Step{Status: 200, Body: "beta"})
	srv.Script("/err", testserver.Step{Status: 400, Body: "bad"})

	sink, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	targets := []string{srv.URL() + "/a", srv.URL() + "/b", srv.URL() + "/err"}
	opts := []Option{WithSink(sink), WithSkipSaved(true), WithRetryOptions(fastRetries()...), WithLogger(logger.NewNopLogger())}

	first := Run(context.Background(), 2, newClient(), targets, nil, opts...)
	for _, r := range first {
		require.NoError(t, r.Err)
		assert.False(t, r.Skipped)
	}
	assert.True(t, sink.IsSaved(targets[0]))
	assert.True(t, sink.IsSaved(targets[1]))
	assert.False(t, sink.IsSaved(targets[2]), "non-2xx bodies are not saved")

	second := Run(context.Background(), 2, newClient(), targets, nil, opts...)
	assert.True(t, second[0].Skipped)
	assert.True(t, second[1].Skipped)
	assert.False(t, second[2].Skipped)
	assert.Equal(t, 1, srv.Hits("/a"))
	assert.Equal(t, 2, srv.Hits("/err"))
}

type countingDoer struct {
	mu     sync.Mutex
	active int32
	peak   int32
	calls  int32
}

func (d *countingDoer) Do(ctx context.Context, target string, req *transport.Request, opts ...retry.Option) (*transport.Response, error) {
	n := atomic.AddInt32(&d.active, 1)
	defer atomic.AddInt32(&d.active, -1)
	atomic.AddInt32(&d.calls, 1)

	d.mu.Lock()
	if n > d.peak {
		d.peak = n
	}
	d.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	return &transport.Response{StatusCode: 200}, nil
}

func TestPoolBoundsConcurrency(t *testing.T) {
	doer := &countingDoer{}
	targets := make([]string, 12)
	for i := range targets {
		targets[i] = fmt.Sprintf("http://svc/%d", i)
	}

	results := Run(context.Background(), 3, doer, targets, nil, WithLogger(logger.NewNopLogger()))

	assert.Len(t, results, 12)
	assert.Equal(t, int32(12), atomic.LoadInt32(&doer.calls))
	assert.LessOrEqual(t, doer.peak, int32(3))
}

type failingSink struct{}

func (failingSink) IsSaved(string) bool {
	return false
}

func (failingSink) Save(string, io.Reader) error {
	return errors.New("disk full")
}

func TestPoolReportsSaveFailure(t *testing.T) {
	results := Run(context.Background(), 1, &countingDoer{}, []string{"http://svc/x"}, nil,
		WithSink(failingSink{}), WithLogger(logger.NewNopLogger()))
	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Err, "disk full")
	assert.NotNil(t, results[0].Response)
}

func TestPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, 2, &countingDoer{}, []string{"http://svc/1", "http://svc/2"}, nil, WithLogger(logger.NewNopLogger()))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestNewPoolMinimumWorkers(t *testing.T) {
	p := NewPool(context.Background(), 0, &countingDoer{}, WithLogger(logger.NewNopLogger()))
	assert.Equal(t, 1, p.NumWorkers())
}
