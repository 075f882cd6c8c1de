package testserver

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestScriptRepeatsLastStep(t *testing.T) {
	srv := New()
	defer srv.Close()

	srv.Script("/x", Step{Status: 503}, Step{Status: 200, Body: "ok", Header: map[string]string{"X-Step": "2"}})

	code, _ := get(t, srv.URL()+"/x")
	assert.Equal(t, 503, code)
	code, body := get(t, srv.URL()+"/x")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)
	code, _ = get(t, srv.URL()+"/x")
	assert.Equal(t, 200, code)

	assert.Equal(t, 3, srv.Hits("/x"))
	assert.Equal(t, 3, srv.TotalHits())
	assert.Len(t, srv.Requests(), 3)
}

func TestUnknownPath(t *testing.T) {
	srv := New()
	defer srv.Close()

	code, _ := get(t, srv.URL()+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, srv.Hits("/nope"))
}

func TestHangEndsWithClient(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.Script("/hang", Step{Hang: true})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL()+"/hang", nil)
	require.NoError(t, err)

	_, err = http.DefaultClient.Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatuses(t *testing.T) {
	steps := Statuses(500, 200)
	require.Len(t, steps, 2)
	assert.Equal(t, 500, steps[0].Status)
	assert.Equal(t, 200, steps[1].Status)
}
