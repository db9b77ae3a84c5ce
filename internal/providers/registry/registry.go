// Package registry holds the in-memory index of discovered provider
// descriptors for the current process.
//
// The index is rebuilt in full on every refresh, never patched
// incrementally. Readers always see a complete snapshot: the swap is a
// single pointer assignment performed only after the new snapshot is fully
// built.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/discovery"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/pubsub"
)

// Snapshot is one immutable discovery pass result held by the registry.
// Callers must not mutate the returned maps.
type Snapshot struct {
	PassID      string
	Descriptors map[string]*domain.Descriptor
	Errors      []discovery.ScanError
	TakenAt     time.Time
}

// DiscoveryStatus is the diagnostic report over the current snapshot.
type DiscoveryStatus struct {
	PassID          string   `json:"pass_id"`
	TotalDiscovered int      `json:"total_discovered"`
	CloudProviders  int      `json:"cloud_providers"`
	LocalProviders  int      `json:"local_providers"`
	Errors          []string `json:"errors"`
	ProviderIDs     []string `json:"providers"`
	LastScanTime    string   `json:"last_scan_time"`
}

// Registry indexes discovered descriptors by provider id.
type Registry struct {
	scanner *discovery.Scanner
	broker  *pubsub.Broker[Snapshot]

	// snapshot is replaced wholesale under mu; reads copy the pointer.
	mu       sync.RWMutex
	snapshot *Snapshot
}

// New creates an empty registry backed by the given scanner. Call Refresh
// to populate it.
func New(scanner *discovery.Scanner) *Registry {
	return &Registry{
		scanner: scanner,
		broker:  pubsub.NewBroker[Snapshot](),
		snapshot: &Snapshot{
			Descriptors: make(map[string]*domain.Descriptor),
		},
	}
}

// Refresh runs a full discovery pass and atomically swaps the snapshot.
// Readers concurrent with Refresh observe either the old or the new
// snapshot, never a half-built one.
func (r *Registry) Refresh(ctx context.Context) *Snapshot {
	result := r.scanner.Scan(ctx)

	snap := &Snapshot{
		PassID:      result.PassID,
		Descriptors: result.Descriptors,
		Errors:      result.Errors,
		TakenAt:     result.StartedAt,
	}

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()

	log.Info(log.CatRegistry, "registry refreshed", "pass_id", snap.PassID, "providers", len(snap.Descriptors))
	r.broker.Publish(pubsub.RefreshedEvent, *snap)
	return snap
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// All returns every discovered descriptor keyed by provider id.
func (r *Registry) All() map[string]*domain.Descriptor {
	return r.Current().Descriptors
}

// Available returns descriptors currently present on disk. Presence in the
// snapshot is what availability means for the registry; the store tracks
// availability across restarts separately.
func (r *Registry) Available() map[string]*domain.Descriptor {
	return r.Current().Descriptors
}

// ByType returns descriptors filtered by provider type.
func (r *Registry) ByType(t domain.ProviderType) map[string]*domain.Descriptor {
	filtered := make(map[string]*domain.Descriptor)
	for id, desc := range r.Current().Descriptors {
		if desc.Type == t {
			filtered[id] = desc
		}
	}
	return filtered
}

// Get returns the descriptor for id or *domain.ProviderNotFoundError.
func (r *Registry) Get(id string) (*domain.Descriptor, error) {
	desc, ok := r.Current().Descriptors[id]
	if !ok {
		return nil, &domain.ProviderNotFoundError{ProviderID: id}
	}
	return desc, nil
}

// IDs returns all discovered provider ids, sorted.
func (r *Registry) IDs() []string {
	descriptors := r.Current().Descriptors
	ids := make([]string, 0, len(descriptors))
	for id := range descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Status builds the diagnostic discovery report for the current snapshot.
func (r *Registry) Status() DiscoveryStatus {
	snap := r.Current()

	status := DiscoveryStatus{
		PassID:          snap.PassID,
		TotalDiscovered: len(snap.Descriptors),
		ProviderIDs:     make([]string, 0, len(snap.Descriptors)),
		Errors:          make([]string, 0, len(snap.Errors)),
	}
	if !snap.TakenAt.IsZero() {
		status.LastScanTime = snap.TakenAt.Format(time.RFC3339)
	}
	for id, desc := range snap.Descriptors {
		status.ProviderIDs = append(status.ProviderIDs, id)
		switch desc.Type {
		case domain.ProviderTypeCloud:
			status.CloudProviders++
		case domain.ProviderTypeLocal:
			status.LocalProviders++
		}
	}
	sort.Strings(status.ProviderIDs)
	for _, scanErr := range snap.Errors {
		status.Errors = append(status.Errors, scanErr.String())
	}
	return status
}

// Subscribe returns a channel of snapshots published on every refresh.
func (r *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return r.broker.Subscribe(ctx)
}

// Close shuts down the refresh event broker.
func (r *Registry) Close() {
	r.broker.Close()
}
