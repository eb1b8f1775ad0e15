// Package provider implements the upstream content providers and the
// per-kind registry that orders them for fallback.
package provider

import (
	"slices"
	"sync"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// Registry maps content kinds to their ordered provider lists.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	kinds map[gateway.Kind][]gateway.Provider
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[gateway.Kind][]gateway.Provider)}
}

// Register appends providers to the list for kind, preserving argument order.
// Registering a kind with no providers records the kind as known but empty.
func (r *Registry) Register(kind gateway.Kind, providers ...gateway.Provider) {
	r.mu.Lock()
	r.kinds[kind] = append(r.kinds[kind], providers...)
	r.mu.Unlock()
}

// Providers returns a copy of the ordered provider list for kind.
func (r *Registry) Providers(kind gateway.Kind) []gateway.Provider {
	r.mu.RLock()
	list := slices.Clone(r.kinds[kind])
	r.mu.RUnlock()
	return list
}

// Has reports whether kind was registered, even with an empty list.
func (r *Registry) Has(kind gateway.Kind) bool {
	r.mu.RLock()
	_, ok := r.kinds[kind]
	r.mu.RUnlock()
	return ok
}

// Kinds returns a sorted slice of all registered kinds.
func (r *Registry) Kinds() []gateway.Kind {
	r.mu.RLock()
	kinds := make([]gateway.Kind, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()
	slices.Sort(kinds)
	return kinds
}
