package client

import (
	"sync"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// Constructor builds a Client for a discovered descriptor.
type Constructor func(descriptor *domain.Descriptor) Client

// Factory produces capability clients keyed by provider id, with a
// per-type fallback and the static manifest client as the last resort.
type Factory struct {
	mu     sync.RWMutex
	byID   map[string]Constructor
	byType map[domain.ProviderType]Constructor
}

// NewFactory creates a factory with only the static fallback wired.
func NewFactory() *Factory {
	return &Factory{
		byID:   make(map[string]Constructor),
		byType: make(map[domain.ProviderType]Constructor),
	}
}

// Register installs a constructor for one provider id, overriding any
// previous registration.
func (f *Factory) Register(providerID string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[providerID] = ctor
}

// RegisterType installs a constructor for every provider of a type that has
// no id-specific registration.
func (f *Factory) RegisterType(t domain.ProviderType, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byType[t] = ctor
}

// ClientFor resolves the most specific constructor for the descriptor:
// id registration, then type registration, then the static client.
func (f *Factory) ClientFor(descriptor *domain.Descriptor) Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if ctor, ok := f.byID[descriptor.ID]; ok {
		return ctor(descriptor)
	}
	if ctor, ok := f.byType[descriptor.Type]; ok {
		return ctor(descriptor)
	}
	return NewStatic(descriptor)
}
