// Package queue provides the bounded in-memory worker pool that runs
// per-store scrape jobs. One search enqueues one job per discovered
// store; pool size bounds how many stores are worked concurrently.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
)

// Job is one unit of asynchronous work.
type Job func(ctx context.Context) error

// ErrorHandler is invoked for every job that returns an error.
type ErrorHandler func(err error, job Job)

// Pool is a fixed-size worker pool over a bounded channel.
type Pool struct {
	logger       *slog.Logger
	workers      int
	jobs         chan Job
	errorHandler ErrorHandler

	wg     sync.WaitGroup
	closed atomic.Bool

	stats poolStats
}

type poolStats struct {
	Enqueued  atomic.Int64
	Processed atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Dropped   atomic.Int64
	Panics    atomic.Int64
}

// Stats is a copyable snapshot of the pool counters.
type Stats struct {
	Enqueued  int64
	Processed int64
	Succeeded int64
	Failed    int64
	Dropped   int64
	Panics    int64
}

// NewPool creates a pool with the given worker count and queue
// capacity. Both are clamped to at least 1.
func NewPool(logger *slog.Logger, workers, capacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{
		logger:  logger,
		workers: workers,
		jobs:    make(chan Job, capacity),
	}
}

// SetErrorHandler installs the per-job error callback.
func (p *Pool) SetErrorHandler(handler ErrorHandler) {
	p.errorHandler = handler
}

// Start launches the workers. They run until ctx is canceled or the
// pool is shut down.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker stopped", slog.Int("worker_id", id))
			return
		case job, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("worker exit on closed channel", slog.Int("worker_id", id))
				return
			}
			metrics.StoreQueueDepth.Set(float64(len(p.jobs)))
			if job != nil {
				p.run(ctx, job, id)
			}
		}
	}
}

// run executes one job with panic isolation. A panicking store job
// must never take down its worker; siblings keep draining the queue.
func (p *Pool) run(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.Panics.Add(1)
			p.logger.Error("job panic recovered",
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	err := job(ctx)
	p.stats.Processed.Add(1)

	if err != nil {
		p.stats.Failed.Add(1)
		p.logger.Warn("job failed",
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
		if p.errorHandler != nil {
			p.errorHandler(err, job)
		}
		return
	}
	p.stats.Succeeded.Add(1)
}

// TryEnqueue submits a job without blocking. Returns false when the
// queue is full or the pool is closed.
func (p *Pool) TryEnqueue(job Job) bool {
	if job == nil || p.closed.Load() {
		return false
	}
	select {
	case p.jobs <- job:
		p.stats.Enqueued.Add(1)
		metrics.StoreQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		p.stats.Dropped.Add(1)
		p.logger.Warn("queue full, drop job",
			slog.Int("capacity", cap(p.jobs)),
			slog.Int("pending", len(p.jobs)))
		return false
	}
}

// Enqueue blocks until the job is accepted or ctx is canceled.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if p.closed.Load() {
		return fmt.Errorf("pool is closed")
	}
	select {
	case p.jobs <- job:
		p.stats.Enqueued.Add(1)
		metrics.StoreQueueDepth.Set(float64(len(p.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for in-flight work.
func (p *Pool) Shutdown() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.jobs)
		p.logger.Info("pool shutdown initiated, draining workers")
		p.wg.Wait()
		p.logger.Info("pool shutdown completed")
	}
}

// ShutdownWithTimeout is Shutdown bounded by a deadline. In-flight
// jobs past the deadline are abandoned to their context.
func (p *Pool) ShutdownWithTimeout(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("pool already closed")
	}
	close(p.jobs)
	p.logger.Info("pool shutdown initiated", slog.String("timeout", timeout.String()))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("pool shutdown completed")
		return nil
	case <-time.After(timeout):
		p.logger.Error("pool shutdown timeout")
		return fmt.Errorf("shutdown timeout after %s", timeout)
	}
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Enqueued:  p.stats.Enqueued.Load(),
		Processed: p.stats.Processed.Load(),
		Succeeded: p.stats.Succeeded.Load(),
		Failed:    p.stats.Failed.Load(),
		Dropped:   p.stats.Dropped.Load(),
		Panics:    p.stats.Panics.Load(),
	}
}

// Len returns the number of queued jobs.
func (p *Pool) Len() int { return len(p.jobs) }

// Cap returns the queue capacity.
func (p *Pool) Cap() int { return cap(p.jobs) }

// IsClosed reports whether the pool has been shut down.
func (p *Pool) IsClosed() bool { return p.closed.Load() }

// String describes the pool state for log lines.
func (p *Pool) String() string {
	s := p.Stats()
	return fmt.Sprintf("Pool[workers=%d, capacity=%d, pending=%d, closed=%v, enqueued=%d, processed=%d, succeeded=%d, failed=%d, dropped=%d, panics=%d]",
		p.workers, p.Cap(), p.Len(), p.IsClosed(),
		s.Enqueued, s.Processed, s.Succeeded, s.Failed, s.Dropped, s.Panics)
}
