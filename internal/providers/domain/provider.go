package domain

import "time"

// Provider is the persistent record for a provider. The provider_id business
// key matches Descriptor.ID; the surrogate id is assigned by the store on
// first insert.
//
// Lifecycle: created the first time an id is seen by the synchronizer or the
// credential-save path, updated on every sync pass, never hard-deleted in
// normal operation. "Deleting" a configuration clears isConfigured and
// removes the credential rows.
type Provider struct {
	id            int64
	providerID    string
	name          string
	providerType  ProviderType
	isAvailable   bool
	isConfigured  bool
	lastCheckTime time.Time
}

// NewProvider creates a freshly discovered provider record: available on
// disk, not yet configured, no surrogate id.
func NewProvider(providerID, name string, t ProviderType) *Provider {
	return &Provider{
		providerID:    providerID,
		name:          name,
		providerType:  t,
		isAvailable:   true,
		isConfigured:  false,
		lastCheckTime: time.Now().UTC(),
	}
}

// ReconstituteProvider rebuilds a Provider from persisted state.
// Used by the sqlite repository when loading rows.
func ReconstituteProvider(
	id int64,
	providerID, name string,
	t ProviderType,
	isAvailable, isConfigured bool,
	lastCheckTime time.Time,
) *Provider {
	return &Provider{
		id:            id,
		providerID:    providerID,
		name:          name,
		providerType:  t,
		isAvailable:   isAvailable,
		isConfigured:  isConfigured,
		lastCheckTime: lastCheckTime,
	}
}

func (p *Provider) ID() int64                { return p.id }
func (p *Provider) ProviderID() string       { return p.providerID }
func (p *Provider) Name() string             { return p.name }
func (p *Provider) Type() ProviderType       { return p.providerType }
func (p *Provider) IsAvailable() bool        { return p.isAvailable }
func (p *Provider) IsConfigured() bool       { return p.isConfigured }
func (p *Provider) LastCheckTime() time.Time { return p.lastCheckTime }

// SetID assigns the surrogate key after an insert.
func (p *Provider) SetID(id int64) { p.id = id }

// MarkAvailable records that the provider was seen on disk this pass.
func (p *Provider) MarkAvailable() {
	p.isAvailable = true
	p.lastCheckTime = time.Now().UTC()
}

// MarkUnavailable records that the provider vanished from disk.
// Configuration state is untouched: credentials stay valid for when the
// provider returns.
func (p *Provider) MarkUnavailable() {
	p.isAvailable = false
	p.lastCheckTime = time.Now().UTC()
}

// UpdateMetadata refreshes descriptive fields from a discovered descriptor.
// The registry is authoritative for name and type; the store remains
// authoritative for the availability and configured flags.
func (p *Provider) UpdateMetadata(name string, t ProviderType) {
	p.name = name
	p.providerType = t
	p.lastCheckTime = time.Now().UTC()
}

// MarkConfigured flips the configured flag after a successful credential save.
func (p *Provider) MarkConfigured() { p.isConfigured = true }

// MarkUnconfigured flips the configured flag after credential deletion.
func (p *Provider) MarkUnconfigured() { p.isConfigured = false }

// Credential is one encrypted key/value pair owned by a provider.
// The key is unique per provider; the value is ciphertext produced by the
// credential cipher and never stored in the clear.
type Credential struct {
	ID             int64
	ProviderRowID  int64
	Key            string
	EncryptedValue string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
