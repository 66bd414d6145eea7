// Package executor runs independent build tasks on a bounded worker pool.
//
// A build has no partial-success contract, so the pool is fail-fast: the
// first task error cancels the shared context, tasks that have not started
// are skipped, and in-flight tool processes observe the cancellation.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/bundleforge/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work. It must only write to paths no other task writes.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Executor orchestrates a batch of independent tasks.
type Executor struct {
	numWorkers int
}

// New creates an executor running at most numWorkers tasks at once. Values
// below one run tasks sequentially.
func New(numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{numWorkers: numWorkers}
}

// Run executes every task and returns the first real failure. Cancellation
// errors caused by that failure are not reported as root causes.
func (e *Executor) Run(ctx context.Context, tasks []Task) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", e.numWorkers, "tasks", len(tasks))

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.numWorkers)

	for _, task := range tasks {
		g.Go(func() error {
			return e.worker(runCtx, task)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug("All tasks completed.")
	return nil
}

// worker runs a single task unless the batch has already failed.
func (e *Executor) worker(ctx context.Context, task Task) error {
	logger := ctxlog.FromContext(ctx).With("taskID", task.ID)

	if ctx.Err() != nil {
		logger.Warn("Context canceled, skipping task execution.")
		return ctx.Err()
	}

	logger.Debug("Worker picked up task for execution.")
	if err := task.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logger.Debug("Task interrupted by an upstream failure.")
			return err
		}
		logger.Error("Task execution failed.", "error", err)
		return fmt.Errorf("%s: %w", task.ID, err)
	}
	logger.Debug("Task execution succeeded.")
	return nil
}
