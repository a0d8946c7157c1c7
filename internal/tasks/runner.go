package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task is one tracked background unit of work. Its completion and failure
// state are observable, so nothing launched through the runner can fail
// silently and tests can await it deterministically.
type Task struct {
	name string
	done chan struct{}

	mu  sync.Mutex
	err error
}

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's error, or nil while running or on success.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task completes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner owns background tasks and drains them on shutdown.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner constructs a task runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Go launches fn on its own goroutine and returns the tracking handle.
// Panics are converted to task errors so a misbehaving job cannot take the
// process down.
func (r *Runner) Go(ctx context.Context, name string, fn func(context.Context) error) *Task {
	task := &Task{name: name, done: make(chan struct{})}
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer close(task.done)
		defer func() {
			if rec := recover(); rec != nil {
				task.mu.Lock()
				task.err = fmt.Errorf("task %s panicked: %v", name, rec)
				task.mu.Unlock()
				r.logger.Error("background task panicked", slog.String("task", name), slog.Any("panic", rec))
			}
		}()

		if err := fn(ctx); err != nil {
			task.mu.Lock()
			task.err = err
			task.mu.Unlock()
			r.logger.Warn("background task failed", slog.String("task", name), slog.Any("error", err))
		}
	}()

	return task
}

// Drain waits for all launched tasks to finish or ctx to expire.
func (r *Runner) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
