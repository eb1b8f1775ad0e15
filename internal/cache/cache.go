// Package cache provides the bounded TTL cache that sits in front of the
// provider fallback fetch.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Entry is a cached payload together with its bookkeeping timestamps.
type Entry struct {
	Key       string
	Value     []byte    // owned by the cache; callers must not mutate
	CreatedAt time.Time // when Value was stored
	ExpiresAt time.Time // zero means no TTL
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stats is a diagnostic snapshot. Keys are reported without an expiry check.
type Stats struct {
	Size    int      `json:"size"`
	MaxSize int      `json:"max_size"`
	Keys    []string `json:"keys"`
}

// Cache is the interface for result caching.
type Cache interface {
	// Get returns the entry for key if present and not expired.
	// An expired entry is removed as a side effect.
	Get(ctx context.Context, key string) (Entry, bool)
	// Set stores val under key. A ttl <= 0 stores the entry without expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	// Delete removes a single key.
	Delete(ctx context.Context, key string)
	// Clear removes all entries.
	Clear(ctx context.Context)
	// Stats returns size, capacity and the currently held keys.
	Stats(ctx context.Context) Stats
}

// Backend names accepted by New.
const (
	BackendFIFO    = "fifo"
	BackendTinyLFU = "tinylfu"
)

// New builds the cache backend named by backend.
func New(backend string, maxSize int, opts ...Option) (Cache, error) {
	switch backend {
	case "", BackendFIFO:
		return NewFIFO(maxSize, opts...), nil
	case BackendTinyLFU:
		return NewMemory(maxSize, opts...)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Option configures a cache backend.
type Option func(*options)

type options struct {
	onEvict func(key string)
	now     func() time.Time
}

// WithOnEvict registers a callback invoked for every capacity eviction.
// It runs with the cache lock held and must not call back into the cache.
func WithOnEvict(fn func(key string)) Option {
	return func(o *options) { o.onEvict = fn }
}

// WithClock replaces time.Now as the cache's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
