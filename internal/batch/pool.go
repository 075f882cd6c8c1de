package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"httpretry/pkg/logger"
	"httpretry/pkg/retry"
	"httpretry/pkg/transport"
)

// Job is one independent call
type Job struct {
	Index   int
	Target  string
	Request *transport.Request
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Response *transport.Response
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Doer runs one call with retries. *retry.Client implements it.
type Doer interface {
	Do(ctx context.Context, target string, req *transport.Request, opts ...retry.Option) (*transport.Response, error)
}

// Sink stores response bodies
type Sink interface {
	IsSaved(target string) bool
	Save(target string, r io.Reader) error
}

// Pool runs jobs on a fixed number of workers. Each job is its own call with
// its own resolved configuration; workers share nothing but the Doer.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      Doer
	sink        Sink
	skipSaved   bool
	options     []retry.Option
	logger      logger.Logger
}

// Option configures a Pool
type Option func(*Pool)

// WithSink saves every final 2xx body to s
func WithSink(s Sink) Option {
	return func(p *Pool) { p.sink = s }
}

// WithSkipSaved skips targets whose body the sink already holds
func WithSkipSaved(skip bool) Option {
	return func(p *Pool) { p.skipSaved = skip }
}

// WithRetryOptions applies opts to every call
func WithRetryOptions(opts ...retry.Option) Option {
	return func(p *Pool) { p.options = append(p.options, opts...) }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool; workers below 1 are raised to 1
func NewPool(ctx context.Context, numWorkers int, client Doer, opts ...Option) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		logger:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs and closes Results.
// Results must be drained concurrently or Stop blocks.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("worker pool stopped")
}

// Cancel aborts in-flight calls and drops queued jobs
func (p *Pool) Cancel() {
	p.cancel()
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the result channel
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// NumWorkers returns the worker count
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		var result Result
		if p.ctx.Err() != nil {
			result = Result{Job: job, Err: p.ctx.Err()}
		} else {
			result = p.process(job, id)
		}

		// results are always delivered so every submitted job is accounted for
		p.resultQueue <- result
	}
}

func (p *Pool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}
	log := p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"target":    job.Target,
	})

	if p.skipSaved && p.sink != nil && p.sink.IsSaved(job.Target) {
		log.Debug("body already saved, skipping")
		result.Skipped = true
		return result
	}

	resp, err := p.client.Do(p.ctx, job.Target, job.Request, p.options...)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}
	result.Response = resp

	if p.sink != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := p.sink.Save(job.Target, bytes.NewReader(resp.Body)); err != nil {
			result.Err = fmt.Errorf("save failed: %w", err)
			log.ErrorWithFields("failed to save body", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return result
}

// Run executes jobs for targets and returns results in target order
func Run(ctx context.Context, numWorkers int, client Doer, targets []string, req *transport.Request, opts ...Option) []Result {
	pool := NewPool(ctx, numWorkers, client, opts...)
	pool.Start()

	results := make([]Result, len(targets))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results[r.Job.Index] = r
		}
	}()

	for i, target := range targets {
		job := Job{Index: i, Target: target, Request: req}
		if err := pool.Submit(job); err != nil {
			results[i] = Result{Job: job, Err: err}
		}
	}
	pool.Stop()
	<-done

	return results
}
