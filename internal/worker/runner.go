package worker

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner manages a set of workers, cancelling all on first error.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Add appends workers. It must be called before Run.
func (r *Runner) Add(workers ...Worker) {
	r.workers = append(r.workers, workers...)
}

// Len reports how many workers are registered.
func (r *Runner) Len() int { return len(r.workers) }

// Run starts all workers in parallel. It blocks until all workers finish.
// If any worker returns a non-nil error, the context is cancelled and
// the first error is returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		slog.Info("worker started", "type", w.Name())
		g.Go(func() error {
			err := w.Run(ctx)
			slog.Debug("worker stopped", "type", w.Name())
			return err
		})
	}
	return g.Wait()
}
