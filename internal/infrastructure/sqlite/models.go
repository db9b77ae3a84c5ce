package sqlite

import (
	"time"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// ProviderModel represents the database row for the providers table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type ProviderModel struct {
	ID            int64
	ProviderID    string
	Name          string
	ProviderType  string
	IsAvailable   bool
	IsConfigured  bool
	LastCheckTime int64 // Unix timestamp
}

// toProviderModel converts a domain Provider entity to a database ProviderModel.
func toProviderModel(p *domain.Provider) *ProviderModel {
	return &ProviderModel{
		ID:            p.ID(),
		ProviderID:    p.ProviderID(),
		Name:          p.Name(),
		ProviderType:  string(p.Type()),
		IsAvailable:   p.IsAvailable(),
		IsConfigured:  p.IsConfigured(),
		LastCheckTime: p.LastCheckTime().Unix(),
	}
}

// toDomain converts a database ProviderModel to a domain Provider entity.
func (m *ProviderModel) toDomain() *domain.Provider {
	return domain.ReconstituteProvider(
		m.ID,
		m.ProviderID,
		m.Name,
		domain.ProviderType(m.ProviderType),
		m.IsAvailable,
		m.IsConfigured,
		time.Unix(m.LastCheckTime, 0).UTC(),
	)
}

// CredentialModel represents the database row for the provider_credentials
// table. ProviderID here is the providers surrogate key, not the business id.
type CredentialModel struct {
	ID             int64
	ProviderID     int64
	Key            string
	EncryptedValue string
	CreatedAt      int64 // Unix timestamp
	UpdatedAt      int64 // Unix timestamp
}

// toDomain converts a database CredentialModel to a domain Credential.
func (m *CredentialModel) toDomain() *domain.Credential {
	return &domain.Credential{
		ID:             m.ID,
		ProviderRowID:  m.ProviderID,
		Key:            m.Key,
		EncryptedValue: m.EncryptedValue,
		CreatedAt:      time.Unix(m.CreatedAt, 0).UTC(),
		UpdatedAt:      time.Unix(m.UpdatedAt, 0).UTC(),
	}
}
