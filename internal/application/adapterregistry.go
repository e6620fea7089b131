package application

import (
	"sync"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// AdapterRegistry maps providers to their adapters. Adapters may be
// registered or replaced while the application runs; in-flight polling loops
// keep the adapter they started with.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[model.ProviderID]driven.ProviderAdapter
}

// NewAdapterRegistry creates an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[model.ProviderID]driven.ProviderAdapter)}
}

// Register installs or replaces the adapter for provider.
func (r *AdapterRegistry) Register(provider model.ProviderID, adapter driven.ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[provider] = adapter
}

// Get returns the adapter for provider.
func (r *AdapterRegistry) Get(provider model.ProviderID) (driven.ProviderAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[provider]
	return adapter, ok
}

// Has reports whether an adapter is registered for provider.
func (r *AdapterRegistry) Has(provider model.ProviderID) bool {
	_, ok := r.Get(provider)
	return ok
}

// Supported returns the providers with a registered adapter, in display order.
func (r *AdapterRegistry) Supported() []model.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var supported []model.ProviderID
	for _, p := range model.Providers() {
		if _, ok := r.adapters[p]; ok {
			supported = append(supported, p)
		}
	}
	return supported
}
