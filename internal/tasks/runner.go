// Package tasks runs detached background work that the request path never
// waits for: message fan-out and attachment cleanup.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/appdevjohn/Social-Network-Backend/internal/metrics"
)

// Task statuses recorded in metrics.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Runner executes named tasks on their own goroutines, bounded by a weighted
// semaphore. Each task gets a fresh context detached from the request that
// scheduled it, capped by the runner's timeout. Failures are logged and counted.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a runner allowing maxConcurrent tasks at once.
func NewRunner(maxConcurrent int64, timeout time.Duration, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Go schedules fn and returns immediately. Tasks scheduled after Close are
// dropped.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		metrics.BackgroundTasks.WithLabelValues(name, StatusDropped).Inc()
		r.logger.Warn("Background task dropped after shutdown", "task", name)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			metrics.BackgroundTasks.WithLabelValues(name, StatusDropped).Inc()
			r.logger.Warn("Background task dropped", "task", name, "error", err)
			return
		}
		defer r.sem.Release(1)

		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		start := time.Now()
		err := run(ctx, fn)
		if err != nil {
			metrics.BackgroundTasks.WithLabelValues(name, StatusFailed).Inc()
			r.logger.Warn("Background task failed",
				"task", name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		}
		metrics.BackgroundTasks.WithLabelValues(name, StatusOK).Inc()
		r.logger.Debug("Background task done", "task", name, "duration_ms", time.Since(start).Milliseconds())
	}()
}

// run calls fn, turning a panic into an error so one bad task cannot take the
// process down.
func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every scheduled task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops accepting tasks, cancels running ones, and waits for them.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
