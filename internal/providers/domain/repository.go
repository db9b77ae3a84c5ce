package domain

// SyncChanges is the write set one synchronization pass applies to the store.
// The sqlite repository applies all three phases, in order, inside a single
// transaction: partial synchronization is not an acceptable state.
type SyncChanges struct {
	// Insert holds providers discovered on disk with no store row yet.
	Insert []*Provider

	// MarkUnavailable holds provider ids present in the store but absent
	// from the current registry snapshot. Rows are flipped to
	// is_available=false, never deleted.
	MarkUnavailable []string

	// UpdateMetadata holds providers whose name or type on disk diverged
	// from the store row.
	UpdateMetadata []*Provider
}

// Empty reports whether the pass has nothing to write.
func (c SyncChanges) Empty() bool {
	return len(c.Insert) == 0 && len(c.MarkUnavailable) == 0 && len(c.UpdateMetadata) == 0
}

// ProviderRepository persists Provider rows.
//
// Implementations:
//   - sqlite.providerRepository
//
// Domain rationale: the synchronizer and the credential store speak in
// provider ids and entities, never SQL. Methods return
// *ProviderNotFoundError on lookup misses and *StoreUnavailableError when
// the store cannot be reached.
type ProviderRepository interface {
	// FindByProviderID looks a provider up by its business key.
	FindByProviderID(providerID string) (*Provider, error)

	// ListAll returns every provider row, available or not.
	ListAll() ([]*Provider, error)

	// ListIDs returns every provider_id in the store.
	ListIDs() ([]string, error)

	// EnsureExists is an idempotent upsert: creates the row if absent,
	// refreshes name/type if they changed, no-op otherwise.
	EnsureExists(providerID, name string, t ProviderType) (*Provider, error)

	// ApplySync applies one synchronization pass atomically.
	ApplySync(changes SyncChanges) error

	// PurgeAll hard-deletes every provider and credential row. Only the
	// explicit destructive admin operation calls this.
	PurgeAll() error
}

// CredentialRepository persists encrypted credential rows. A provider
// exclusively owns its rows; replace and delete operate on the whole set.
type CredentialRepository interface {
	// ListForProvider returns all credential rows for a provider id,
	// in insertion order.
	ListForProvider(providerID string) ([]*Credential, error)

	// ReplaceForProvider atomically deletes every existing credential row
	// for the provider and inserts the given set, then sets the configured
	// flag to whether the set is non-empty. The provider row must already
	// exist.
	ReplaceForProvider(providerID string, creds []*Credential) error

	// DeleteForProvider removes every credential row and marks the
	// provider unconfigured. Returns false, not an error, when the
	// provider has no row.
	DeleteForProvider(providerID string) (bool, error)
}
