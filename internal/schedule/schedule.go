// Package schedule repeats a task on a fixed interval until shutdown.
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of scheduled work.
type Task interface {
	Run(ctx context.Context) error
}

type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Runner runs its task immediately, then on every tick or Notify. Runs never
// overlap.
type Runner struct {
	task     Task
	interval time.Duration
	notify   chan struct{}
}

// NewRunner creates a runner. A non-positive interval means a single run.
func NewRunner(task Task, interval time.Duration) *Runner {
	return &Runner{
		task:     task,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Notify requests an extra run as soon as the current one ends. Non-blocking.
func (r *Runner) Notify() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, or after the first run when the runner
// has no interval. It returns the error of the last run.
func (r *Runner) Run(ctx context.Context) error {
	err := r.runOnce(ctx, 1)
	if r.interval <= 0 {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for n := 2; ; n++ {
		select {
		case <-ctx.Done():
			return err
		case <-r.notify:
		case <-ticker.C:
		}
		err = r.runOnce(ctx, n)
	}
}

func (r *Runner) runOnce(ctx context.Context, n int) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	start := time.Now()
	err := r.task.Run(ctx)
	if err != nil {
		zap.L().Error("scheduled run failed", zap.Int("run", n), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	zap.L().Info("scheduled run finished", zap.Int("run", n), zap.Duration("took", time.Since(start)))
	if r.interval > 0 {
		zap.L().Info("next run scheduled", zap.Time("at", time.Now().Add(r.interval)))
	}
	return nil
}
