package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, false)

	p.Info("Target", "http://svc/")
	p.Error("request failed", "connection refused")
	p.Success("done")

	out := buf.String()
	assert.Contains(t, out, "Target: http://svc/\n")
	assert.Contains(t, out, "request failed: connection refused\n")
	assert.NotContains(t, out, "\033[", "a buffer is not a terminal")
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)

	p.Info("a", "b")
	p.Warning("w")
	p.Highlight("h")
	p.Dim("d")
	p.Success("s")
	assert.Empty(t, buf.String())

	p.Error("boom")
	assert.Equal(t, "boom\n", buf.String())
}

func TestBatchTracker(t *testing.T) {
	bt := NewBatchTracker(4)
	bt.RecordSuccess()
	bt.RecordStatusFailure()
	bt.RecordError()

	assert.Equal(t, 3, bt.Done())
	assert.Equal(t, 2, bt.Failures())
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 7)+strings.Repeat(ProgressEmpty, 3)+"] 3/4", bt.Bar(10))
	assert.Contains(t, bt.Summary(), "ok=1 failed_status=1 errors=1 skipped=0")

	bt.RecordSkipped()
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 10)+"] 4/4", bt.Bar(10))
	assert.GreaterOrEqual(t, bt.Rate(), 0.0)
}
