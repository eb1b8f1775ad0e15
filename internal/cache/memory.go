package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// Memory is an in-memory W-TinyLFU cache backed by otter. Unlike FIFO it
// admits and evicts by access frequency, so it trades the strict insertion
// order for a better hit rate on skewed traffic.
type Memory struct {
	cache   *otter.Cache[string, Entry]
	maxSize int
	now     func() time.Time
}

// noExpiry is otter's lifetime for entries stored without a TTL.
const noExpiry = 100 * 365 * 24 * time.Hour

// NewMemory creates an in-memory cache with the given max entry count.
// Otter expires each entry after the TTL it was stored with.
func NewMemory(maxSize int, opts ...Option) (*Memory, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	o := buildOptions(opts)

	otterOpts := &otter.Options[string, Entry]{
		MaximumSize: maxSize,
		ExpiryCalculator: otter.ExpiryWritingFunc(func(e otter.Entry[string, Entry]) time.Duration {
			return lifetime(e.Value)
		}),
	}
	if o.onEvict != nil {
		onEvict := o.onEvict
		otterOpts.OnDeletion = func(e otter.DeletionEvent[string, Entry]) {
			if e.WasEvicted() {
				onEvict(e.Key)
			}
		}
	}

	c, err := otter.New[string, Entry](otterOpts)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c, maxSize: maxSize, now: o.now}, nil
}

// lifetime is the TTL e was stored with, or noExpiry when it has none.
func lifetime(e Entry) time.Duration {
	if e.ExpiresAt.IsZero() {
		return noExpiry
	}
	return max(e.ExpiresAt.Sub(e.CreatedAt), time.Nanosecond)
}

// Get retrieves a value from the cache if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	e, ok := m.cache.GetIfPresent(key)
	if !ok {
		return Entry{}, false
	}
	if e.Expired(m.now()) {
		m.cache.Invalidate(key)
		return Entry{}, false
	}
	return e, true
}

// Set stores a value with per-entry TTL.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	now := m.now()
	e := Entry{Key: key, Value: val, CreatedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	m.cache.Set(key, e)
}

// Delete removes a value from the cache.
func (m *Memory) Delete(_ context.Context, key string) {
	m.cache.Invalidate(key)
}

// Clear removes all values from the cache.
func (m *Memory) Clear(_ context.Context) {
	m.cache.InvalidateAll()
}

// Stats returns otter's estimated size and current keys.
func (m *Memory) Stats(_ context.Context) Stats {
	keys := make([]string, 0, m.cache.EstimatedSize())
	for k := range m.cache.Keys() {
		keys = append(keys, k)
	}
	return Stats{Size: len(keys), MaxSize: m.maxSize, Keys: keys}
}
