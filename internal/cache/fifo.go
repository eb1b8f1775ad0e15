package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries is the capacity used when a non-positive size is given.
const DefaultMaxEntries = 100

// FIFO is a bounded TTL cache that evicts in insertion order.
//
// Reads never reorder entries, and overwriting a held key updates its value
// and expiry in place without moving it to the back of the queue. Expired
// entries are removed lazily by the Get that observes them; there is no
// background sweep.
type FIFO struct {
	mu      sync.Mutex
	order   *list.List // front = oldest insertion; elements hold *Entry
	index   map[string]*list.Element
	maxSize int
	onEvict func(key string)
	now     func() time.Time
}

// NewFIFO creates a FIFO cache holding at most maxSize entries.
func NewFIFO(maxSize int, opts ...Option) *FIFO {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	o := buildOptions(opts)
	return &FIFO{
		order:   list.New(),
		index:   make(map[string]*list.Element, maxSize),
		maxSize: maxSize,
		onEvict: o.onEvict,
		now:     o.now,
	}
}

// Get returns the entry for key if present and unexpired.
func (c *FIFO) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	e := el.Value.(*Entry)
	if e.Expired(c.now()) {
		c.removeLocked(el)
		return Entry{}, false
	}
	return *e, true
}

// Set inserts or overwrites key. Inserting a new key at capacity first
// evicts exactly one entry, the earliest inserted.
func (c *FIFO) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	now := c.now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		e := el.Value.(*Entry)
		e.Value = val
		e.CreatedAt = now
		e.ExpiresAt = expiresAt
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			evicted := oldest.Value.(*Entry).Key
			c.removeLocked(oldest)
			if c.onEvict != nil {
				c.onEvict(evicted)
			}
		}
	}

	c.index[key] = c.order.PushBack(&Entry{
		Key:       key,
		Value:     val,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
}

// Delete removes key if present.
func (c *FIFO) Delete(_ context.Context, key string) {
	c.mu.Lock()
	if el, ok := c.index[key]; ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *FIFO) Clear(_ context.Context) {
	c.mu.Lock()
	c.order.Init()
	clear(c.index)
	c.mu.Unlock()
}

// Stats returns the held keys in insertion order.
func (c *FIFO) Stats(_ context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return Stats{Size: len(keys), MaxSize: c.maxSize, Keys: keys}
}

func (c *FIFO) removeLocked(el *list.Element) {
	delete(c.index, el.Value.(*Entry).Key)
	c.order.Remove(el)
}
