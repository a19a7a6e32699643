// Package adapter holds the per-service-slug Adapter implementations the
// Proxy Executor (C8) dispatches to, and the registry that resolves a
// service_slug to one.
package adapter

import (
	"sync"

	"saturn/internal/core/ports"
)

// Registry implements ports.AdapterRegistry with a mutex-guarded map,
// generalizing the same double-checked-map idiom used by the per-key rate
// limiter in mrz1836-sigil/internal/chain/ratelimit.go to a simpler
// single-lock register/resolve pair (entries are registered once at
// startup, not created lazily on first use).
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ports.Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ports.Adapter)}
}

func (r *Registry) Resolve(slug string) (ports.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[slug]
	return a, ok
}

func (r *Registry) Register(slug string, a ports.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[slug] = a
}
