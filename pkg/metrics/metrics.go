package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"httpretry/pkg/retry"
)

// Call results reported on calls_total
const (
	ResultSuccess   = "success"
	ResultStatus    = "status_failure"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// RetryMetrics records retry progress as Prometheus metrics. It implements
// retry.Observer.
type RetryMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	callsTotal      *prometheus.CounterVec
	backoffSeconds  prometheus.Histogram
	callDuration    *prometheus.HistogramVec
	attemptsPerCall prometheus.Histogram
	registry        *prometheus.Registry
}

// New creates metrics registered on registry, or on a fresh registry when nil
func New(namespace string, registry *prometheus.Registry) *RetryMetrics {
	if namespace == "" {
		namespace = "httpretry"
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &RetryMetrics{registry: registry}

	m.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of HTTP attempts by outcome",
		},
		[]string{"outcome"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of scheduled retries by budget key",
		},
		[]string{"budget_key"},
	)

	m.callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of finished calls by result",
		},
		[]string{"result"},
	)

	m.backoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backoff_seconds",
			Help:      "Backoff delay scheduled before a retry",
			Buckets:   []float64{.1, .5, 1, 2, 4, 6, 9, 13.5, 20, 25, 60},
		},
	)

	m.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Wall time of a call including retries and waits",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	m.attemptsPerCall = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts_per_call",
			Help:      "Number of attempts a call needed",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	registry.MustRegister(
		m.attemptsTotal,
		m.retriesTotal,
		m.callsTotal,
		m.backoffSeconds,
		m.callDuration,
		m.attemptsPerCall,
	)

	return m
}

// Registry returns the registry the metrics live on
func (m *RetryMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnAttempt counts one attempt
func (m *RetryMetrics) OnAttempt(ev retry.Event) {
	m.attemptsTotal.WithLabelValues(ev.Outcome.Kind.String()).Inc()
}

// OnRetry counts a scheduled retry and its delay
func (m *RetryMetrics) OnRetry(ev retry.Event) {
	key := ev.Decision.Key
	if key == "" {
		key = "custom"
	}
	m.retriesTotal.WithLabelValues(key).Inc()
	m.backoffSeconds.Observe(ev.Delay.Seconds())
}

// OnDone records the call result
func (m *RetryMetrics) OnDone(ev retry.Event) {
	result := Result(ev)
	m.callsTotal.WithLabelValues(result).Inc()
	m.callDuration.WithLabelValues(result).Observe(ev.Elapsed.Seconds())
	m.attemptsPerCall.Observe(float64(ev.Attempt + 1))
}

// Result names the result of a finished call
func Result(ev retry.Event) string {
	switch {
	case errors.Is(ev.Err, context.Canceled):
		return ResultCancelled
	case ev.Err != nil:
		return ResultError
	case ev.Outcome.StatusCode() >= 400:
		return ResultStatus
	default:
		return ResultSuccess
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func (m *RetryMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

var _ retry.Observer = (*RetryMetrics)(nil)
