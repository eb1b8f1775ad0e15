package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
type FakeStore struct {
	mu      sync.RWMutex
	records []gateway.FetchRecord
	PingErr error
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// InsertFetches appends records.
func (s *FakeStore) InsertFetches(_ context.Context, records []gateway.FetchRecord) error {
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
	return nil
}

// ListFetches returns matching records, newest first.
func (s *FakeStore) ListFetches(_ context.Context, f gateway.FetchFilter) ([]gateway.FetchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gateway.FetchRecord, 0, len(s.records))
	for _, r := range s.records {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Outcome != "" && r.Outcome != f.Outcome {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b gateway.FetchRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Offset > 0 {
		out = out[min(f.Offset, len(out)):]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SummarizeFetches groups records at or after since by kind and outcome.
func (s *FakeStore) SummarizeFetches(_ context.Context, since time.Time) ([]gateway.FetchSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		kind    gateway.Kind
		outcome string
	}
	idx := make(map[key]int)
	var out []gateway.FetchSummary
	for _, r := range s.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		k := key{r.Kind, r.Outcome}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, gateway.FetchSummary{Kind: r.Kind, Outcome: r.Outcome})
		}
		sum := &out[i]
		sum.AvgLatencyMs = (sum.AvgLatencyMs*float64(sum.Count) + float64(r.LatencyMs)) / float64(sum.Count+1)
		sum.Count++
	}
	return out, nil
}

// PruneFetches drops records created before cutoff.
func (s *FakeStore) PruneFetches(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r gateway.FetchRecord) bool {
		return r.CreatedAt.Before(cutoff)
	})
	return int64(before - len(s.records)), nil
}

// Ping returns PingErr.
func (s *FakeStore) Ping(context.Context) error { return s.PingErr }

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
