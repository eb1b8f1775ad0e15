package worker

import (
	"context"
	"log/slog"
	"time"
)

const pruneInterval = time.Hour

// PruneStore is the persistence interface consumed by FetchLogPruner.
type PruneStore interface {
	PruneFetches(ctx context.Context, cutoff time.Time) (int64, error)
}

// FetchLogPruner periodically deletes fetch log records older than the
// retention window.
type FetchLogPruner struct {
	store     PruneStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewFetchLogPruner creates a pruner keeping records for retention.
func NewFetchLogPruner(store PruneStore, retention time.Duration) *FetchLogPruner {
	return &FetchLogPruner{
		store:     store,
		retention: retention,
		interval:  pruneInterval,
		now:       time.Now,
	}
}

// Name returns the worker identifier.
func (w *FetchLogPruner) Name() string { return "fetchlog_pruner" }

// Run prunes once at startup, then on a periodic schedule until ctx is cancelled.
func (w *FetchLogPruner) Run(ctx context.Context) error {
	w.prune(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

func (w *FetchLogPruner) prune(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)
	n, err := w.store.PruneFetches(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			slog.LogAttrs(ctx, slog.LevelError, "fetch log prune failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if n > 0 {
		slog.Info("fetch log pruned", "records", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
}
