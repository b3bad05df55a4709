// Package worker runs candidate mixture fits pulled from the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/scoredist/internal/adapters/mq/queue"
	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/internal/domain/model"
	"github.com/okian/scoredist/pkg/logger"
	"github.com/okian/scoredist/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Fitter fits a fixed number of components to a sample.
type Fitter interface {
	Fit(ctx context.Context, sample []float64, n int, rng *rand.Rand) (gmm.Fit, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes fit jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for in-process fitting.
type InMemoryWorker struct {
	queue  Queue
	fitter Fitter
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, fitter Fitter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		fitter:   fitter,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process fits one candidate and replies. Reply channels are buffered by
// the submitter for every job it enqueued, so the send does not block.
func (w *InMemoryWorker) process(ctx context.Context, j Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	fit, err := w.fitter.Fit(ctx, j.Sample, j.Components, gmm.CandidateSource(j.Seed, j.Components))
	elapsed := time.Since(start)
	latencyMs := float64(elapsed.Microseconds()) / 1000

	metrics.RecordWorkerProcessingLatency(latencyMs)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordFitError(errorKind(err))
		w.logger.Debug(ctx, "candidate fit failed",
			logger.String("analysisID", j.AnalysisID),
			logger.Int("components", j.Components),
			logger.Error(err),
		)
	} else {
		metrics.RecordFit(fit.State.String(), fit.Iterations, latencyMs, fit.Reseeds)
	}

	if j.Reply == nil {
		return
	}
	select {
	case j.Reply <- model.FitOutcome{Components: j.Components, Fit: fit, Err: err, Duration: elapsed}:
	case <-ctx.Done():
	}
}

// errorKind maps a fit error onto a metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, gmm.ErrComponentCollapse):
		return "collapse"
	case errors.Is(err, gmm.ErrEmptySample), errors.Is(err, gmm.ErrNonFiniteSample):
		return "sample"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, queue Queue, fitter Fitter) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(queue, fitter, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
