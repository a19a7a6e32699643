package service

import "sync"

// capabilityEntry is one (provider_slug, priority) pair registered under
// a capability verb.
type capabilityEntry struct {
	serviceSlug string
	priority    int
	active      bool
}

// CapabilityRegistryImpl implements ports.CapabilityRegistry: capability
// verb -> ordered list of providers. resolve returns the active provider
// with the lowest priority number, so curated providers (priority in
// [0,99]) always win over community ones (priority >= 100) by default.
type CapabilityRegistryImpl struct {
	mu      sync.RWMutex
	entries map[string][]capabilityEntry
}

func NewCapabilityRegistry() *CapabilityRegistryImpl {
	return &CapabilityRegistryImpl{entries: make(map[string][]capabilityEntry)}
}

func (r *CapabilityRegistryImpl) Register(capability, serviceSlug string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[capability] = append(r.entries[capability], capabilityEntry{
		serviceSlug: serviceSlug,
		priority:    priority,
		active:      true,
	})
}

func (r *CapabilityRegistryImpl) Resolve(capability string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates, ok := r.entries[capability]
	if !ok {
		return "", false
	}

	best := -1
	bestPriority := 0
	for i, c := range candidates {
		if !c.active {
			continue
		}
		if best == -1 || c.priority < bestPriority {
			best = i
			bestPriority = c.priority
		}
	}
	if best == -1 {
		return "", false
	}
	return candidates[best].serviceSlug, true
}

func (r *CapabilityRegistryImpl) List() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.entries))
	for capability, candidates := range r.entries {
		slugs := make([]string, 0, len(candidates))
		for _, c := range candidates {
			slugs = append(slugs, c.serviceSlug)
		}
		out[capability] = slugs
	}
	return out
}
