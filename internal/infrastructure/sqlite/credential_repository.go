package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// credentialRepository implements domain.CredentialRepository using SQLite.
type credentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates the SQLite-backed credential repository.
func NewCredentialRepository(db *sql.DB) domain.CredentialRepository {
	return &credentialRepository{db: db}
}

// Ensure credentialRepository implements domain.CredentialRepository.
var _ domain.CredentialRepository = (*credentialRepository)(nil)

// scanCredential scans a row into a CredentialModel.
func scanCredential(scanner interface{ Scan(...any) error }) (*CredentialModel, error) {
	var model CredentialModel
	err := scanner.Scan(
		&model.ID, &model.ProviderID, &model.Key, &model.EncryptedValue,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// ListForProvider retrieves all credential rows for a provider business id,
// in insertion order. Returns an empty slice when the provider has no row
// or no credentials.
func (r *credentialRepository) ListForProvider(providerID string) ([]*domain.Credential, error) {
	rows, err := r.db.Query(
		`SELECT c.id, c.provider_id, c.key, c.encrypted_value, c.created_at, c.updated_at
		 FROM provider_credentials c
		 JOIN providers p ON p.id = c.provider_id
		 WHERE p.provider_id = ?
		 ORDER BY c.id`,
		providerID,
	)
	if err != nil {
		return nil, wrapStoreErr("failed to list credentials", err)
	}
	defer rows.Close()

	var creds []*domain.Credential
	for rows.Next() {
		model, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate credentials", err)
	}
	return creds, nil
}

// ReplaceForProvider atomically swaps the provider's credential set for the
// given one and marks the provider configured. The delete-then-insert swap
// keeps partially updated credential sets from ever being observable.
// Returns ProviderNotFoundError when the provider row is missing.
func (r *credentialRepository) ReplaceForProvider(providerID string, creds []*domain.Credential) error {
	rowID, err := r.providerRowID(providerID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return wrapStoreErr("failed to begin credential transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM provider_credentials WHERE provider_id = ?`, rowID); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	now := time.Now().UTC().Unix()
	for _, cred := range creds {
		if _, err := tx.Exec(
			`INSERT INTO provider_credentials (provider_id, key, encrypted_value, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rowID, cred.Key, cred.EncryptedValue, now, now,
		); err != nil {
			return fmt.Errorf("failed to insert credential %q: %w", cred.Key, err)
		}
	}

	configured := len(creds) > 0
	if _, err := tx.Exec(`UPDATE providers SET is_configured = ? WHERE id = ?`, configured, rowID); err != nil {
		return fmt.Errorf("failed to update configured flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("failed to commit credential transaction", err)
	}
	log.Info(log.CatStore, "credentials replaced", "provider_id", providerID, "count", len(creds))
	return nil
}

// DeleteForProvider removes every credential row for the provider and marks
// it unconfigured. Returns false, not an error, when the provider has no row.
func (r *credentialRepository) DeleteForProvider(providerID string) (bool, error) {
	rowID, err := r.providerRowID(providerID)
	var notFound *domain.ProviderNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, wrapStoreErr("failed to begin credential transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM provider_credentials WHERE provider_id = ?`, rowID); err != nil {
		return false, fmt.Errorf("failed to delete credentials: %w", err)
	}
	if _, err := tx.Exec(`UPDATE providers SET is_configured = 0 WHERE id = ?`, rowID); err != nil {
		return false, fmt.Errorf("failed to update configured flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, wrapStoreErr("failed to commit credential transaction", err)
	}
	log.Info(log.CatStore, "credentials deleted", "provider_id", providerID)
	return true, nil
}

// providerRowID resolves the business id to the surrogate key.
func (r *credentialRepository) providerRowID(providerID string) (int64, error) {
	var rowID int64
	err := r.db.QueryRow(`SELECT id FROM providers WHERE provider_id = ?`, providerID).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ProviderNotFoundError{ProviderID: providerID}
	}
	if err != nil {
		return 0, wrapStoreErr("failed to resolve provider row", err)
	}
	return rowID, nil
}
