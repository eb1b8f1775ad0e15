package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	gateway "github.com/ryuka-api/ryuka/internal"
)

const (
	fetchChanSize   = 1000
	fetchBatchSize  = 100
	fetchFlushEvery = 5 * time.Second
	fetchDrainTime  = 30 * time.Second
)

// FetchStore is the persistence interface consumed by FetchRecorder.
type FetchStore interface {
	InsertFetches(ctx context.Context, records []gateway.FetchRecord) error
}

// FetchRecorder buffers fetch log records and batch-flushes them to the store.
// Records are dropped if the channel is full (back-pressure on slow DB).
type FetchRecorder struct {
	ch         chan gateway.FetchRecord
	store      FetchStore
	flushEvery time.Duration

	queueLen prometheus.Gauge   // optional
	dropped  prometheus.Counter // optional
}

// NewFetchRecorder creates a FetchRecorder backed by store.
func NewFetchRecorder(store FetchStore) *FetchRecorder {
	return &FetchRecorder{
		ch:         make(chan gateway.FetchRecord, fetchChanSize),
		store:      store,
		flushEvery: fetchFlushEvery,
	}
}

// WithMetrics reports queue depth and drops to the given collectors.
func (f *FetchRecorder) WithMetrics(queueLen prometheus.Gauge, dropped prometheus.Counter) *FetchRecorder {
	f.queueLen = queueLen
	f.dropped = dropped
	return f
}

// Name returns the worker identifier.
func (f *FetchRecorder) Name() string { return "fetch_recorder" }

// Record enqueues a fetch record. It never blocks; drops on full channel.
func (f *FetchRecorder) Record(r gateway.FetchRecord) {
	select {
	case f.ch <- r:
		if f.queueLen != nil {
			f.queueLen.Set(float64(len(f.ch)))
		}
	default:
		if f.dropped != nil {
			f.dropped.Inc()
		}
		slog.Warn("fetch record dropped, channel full", "kind", string(r.Kind))
	}
}

// Run processes records until ctx is cancelled, then drains remaining records.
func (f *FetchRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.flushEvery)
	defer ticker.Stop()

	buf := make([]gateway.FetchRecord, 0, fetchBatchSize)

	for {
		select {
		case r := <-f.ch:
			buf = append(buf, r)
			if len(buf) >= fetchBatchSize {
				f.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				f.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ctx.Done():
			f.drain(buf)
			return nil
		}
	}
}

func (f *FetchRecorder) drain(buf []gateway.FetchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchDrainTime)
	defer cancel()

	for {
		select {
		case r := <-f.ch:
			buf = append(buf, r)
			if len(buf) >= fetchBatchSize {
				f.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			if len(buf) > 0 {
				f.flush(ctx, buf)
			}
			return
		}
	}
}

func (f *FetchRecorder) flush(ctx context.Context, buf []gateway.FetchRecord) {
	// Copy to avoid aliasing the caller's slice.
	batch := make([]gateway.FetchRecord, len(buf))
	copy(batch, buf)

	// Assign IDs off the hot path; callers leave ID empty.
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.Must(uuid.NewV7()).String()
		}
	}

	if err := f.store.InsertFetches(ctx, batch); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "fetch log flush failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
	if f.queueLen != nil {
		f.queueLen.Set(float64(len(f.ch)))
	}
}
