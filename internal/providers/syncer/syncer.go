// Package syncer reconciles the in-memory registry snapshot with the
// provider store.
//
// Direction is one-way: the registry describes what exists on disk right
// now, the store remembers what has ever existed. Reconciliation inserts
// new providers, flips vanished ones to unavailable, and refreshes metadata
// on the intersection. Store rows are never deleted by a sync pass, so
// credentials survive a provider being temporarily removed.
package syncer

import (
	"sort"
	"time"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/registry"
)

// Report summarizes one reconciliation pass.
type Report struct {
	PassID       string        `json:"pass_id"`
	RegistryOnly []string      `json:"registry_only"`
	DBOnly       []string      `json:"db_only"`
	Synchronized []string      `json:"synchronized"`
	Updated      []string      `json:"updated"`
	Duration     time.Duration `json:"-"`
}

// Syncer applies registry snapshots to the provider store.
type Syncer struct {
	providers domain.ProviderRepository
}

// New creates a syncer writing to the given repository.
func New(providers domain.ProviderRepository) *Syncer {
	return &Syncer{providers: providers}
}

// Sync reconciles the snapshot with the store and returns what changed.
// The whole write set is applied in a single transaction; on error the
// store is untouched. Running the same snapshot twice is a no-op the
// second time.
func (s *Syncer) Sync(snap *registry.Snapshot) (*Report, error) {
	start := time.Now()

	existing, err := s.providers.ListAll()
	if err != nil {
		return nil, err
	}

	byProviderID := make(map[string]*domain.Provider, len(existing))
	for _, p := range existing {
		byProviderID[p.ProviderID()] = p
	}

	report := &Report{
		PassID:       snap.PassID,
		RegistryOnly: []string{},
		DBOnly:       []string{},
		Synchronized: []string{},
		Updated:      []string{},
	}
	var changes domain.SyncChanges

	// Phase 1: descriptors with no store row become inserts.
	// Phase 3 (same loop): the intersection gets metadata refreshed and
	// is re-marked available in case it had previously vanished.
	for id, desc := range snap.Descriptors {
		row, ok := byProviderID[id]
		if !ok {
			report.RegistryOnly = append(report.RegistryOnly, id)
			changes.Insert = append(changes.Insert, domain.NewProvider(id, desc.Name, desc.Type))
			continue
		}
		report.Synchronized = append(report.Synchronized, id)
		if row.Name() != desc.Name || row.Type() != desc.Type || !row.IsAvailable() {
			row.UpdateMetadata(desc.Name, desc.Type)
			row.MarkAvailable()
			report.Updated = append(report.Updated, id)
			changes.UpdateMetadata = append(changes.UpdateMetadata, row)
		}
	}

	// Phase 2: rows with no descriptor this pass go unavailable. They are
	// kept, not deleted, so configuration survives the absence.
	for id, row := range byProviderID {
		if _, ok := snap.Descriptors[id]; ok {
			continue
		}
		report.DBOnly = append(report.DBOnly, id)
		if row.IsAvailable() {
			changes.MarkUnavailable = append(changes.MarkUnavailable, id)
		}
	}

	sort.Strings(report.RegistryOnly)
	sort.Strings(report.DBOnly)
	sort.Strings(report.Synchronized)
	sort.Strings(report.Updated)
	sort.Slice(changes.Insert, func(i, j int) bool {
		return changes.Insert[i].ProviderID() < changes.Insert[j].ProviderID()
	})
	sort.Strings(changes.MarkUnavailable)

	if !changes.Empty() {
		if err := s.providers.ApplySync(changes); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(start)
	log.Info(log.CatSync, "store reconciled",
		"pass_id", report.PassID,
		"inserted", len(report.RegistryOnly),
		"unavailable", len(report.DBOnly),
		"updated", len(report.Updated),
		"unchanged", len(report.Synchronized)-len(report.Updated),
		"elapsed", report.Duration)

	return report, nil
}
