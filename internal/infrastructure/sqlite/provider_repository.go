package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// providerColumns is the list of columns to select for provider queries.
const providerColumns = `id, provider_id, name, provider_type, is_available, is_configured, last_check_time`

// providerRepository implements domain.ProviderRepository using SQLite.
type providerRepository struct {
	db *sql.DB
}

// NewProviderRepository creates the SQLite-backed provider repository.
func NewProviderRepository(db *sql.DB) domain.ProviderRepository {
	return &providerRepository{db: db}
}

// Ensure providerRepository implements domain.ProviderRepository.
var _ domain.ProviderRepository = (*providerRepository)(nil)

// scanProvider scans a row into a ProviderModel.
func scanProvider(scanner interface{ Scan(...any) error }) (*ProviderModel, error) {
	var model ProviderModel
	err := scanner.Scan(
		&model.ID, &model.ProviderID, &model.Name, &model.ProviderType,
		&model.IsAvailable, &model.IsConfigured, &model.LastCheckTime,
	)
	return &model, err
}

// FindByProviderID retrieves a provider by its business key.
// Returns ProviderNotFoundError if no matching row exists.
func (r *providerRepository) FindByProviderID(providerID string) (*domain.Provider, error) {
	row := r.db.QueryRow(
		`SELECT `+providerColumns+` FROM providers WHERE provider_id = ?`,
		providerID,
	)
	model, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ProviderNotFoundError{ProviderID: providerID}
	}
	if err != nil {
		return nil, wrapStoreErr("failed to find provider", err)
	}
	return model.toDomain(), nil
}

// ListAll retrieves every provider row, available or not, ordered by
// provider_id for stable output.
func (r *providerRepository) ListAll() ([]*domain.Provider, error) {
	rows, err := r.db.Query(`SELECT ` + providerColumns + ` FROM providers ORDER BY provider_id`)
	if err != nil {
		return nil, wrapStoreErr("failed to list providers", err)
	}
	defer rows.Close()

	var providers []*domain.Provider
	for rows.Next() {
		model, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate providers", err)
	}
	return providers, nil
}

// ListIDs retrieves every provider_id in the store, ordered.
func (r *providerRepository) ListIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT provider_id FROM providers ORDER BY provider_id`)
	if err != nil {
		return nil, wrapStoreErr("failed to list provider ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan provider id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate provider ids", err)
	}
	return ids, nil
}

// EnsureExists is an idempotent upsert on the business key: the row is
// created if absent, its name and type refreshed if they drifted, and left
// alone otherwise. Availability and configured flags are never touched here.
func (r *providerRepository) EnsureExists(providerID, name string, t domain.ProviderType) (*domain.Provider, error) {
	existing, err := r.FindByProviderID(providerID)
	var notFound *domain.ProviderNotFoundError
	switch {
	case err == nil:
		if existing.Name() == name && existing.Type() == t {
			return existing, nil
		}
		existing.UpdateMetadata(name, t)
		if err := r.updateMetadata(r.db, existing); err != nil {
			return nil, err
		}
		return existing, nil

	case errors.As(err, &notFound):
		provider := domain.NewProvider(providerID, name, t)
		if err := r.insert(r.db, provider); err != nil {
			return nil, err
		}
		log.Info(log.CatStore, "provider row created", "provider_id", providerID)
		return provider, nil

	default:
		return nil, err
	}
}

// ApplySync applies one synchronization pass atomically. Either every phase
// lands or none do.
func (r *providerRepository) ApplySync(changes domain.SyncChanges) error {
	tx, err := r.db.Begin()
	if err != nil {
		return wrapStoreErr("failed to begin sync transaction", err)
	}
	defer tx.Rollback()

	for _, provider := range changes.Insert {
		if err := r.insert(tx, provider); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Unix()
	for _, providerID := range changes.MarkUnavailable {
		if _, err := tx.Exec(
			`UPDATE providers SET is_available = 0, last_check_time = ? WHERE provider_id = ?`,
			now, providerID,
		); err != nil {
			return fmt.Errorf("failed to mark provider unavailable: %w", err)
		}
	}

	for _, provider := range changes.UpdateMetadata {
		if err := r.updateMetadata(tx, provider); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("failed to commit sync transaction", err)
	}
	return nil
}

// PurgeAll hard-deletes every provider and credential row. Credentials go
// first so the wipe does not depend on cascade support being enabled.
func (r *providerRepository) PurgeAll() error {
	tx, err := r.db.Begin()
	if err != nil {
		return wrapStoreErr("failed to begin purge transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM provider_credentials`); err != nil {
		return fmt.Errorf("failed to purge credentials: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM providers`); err != nil {
		return fmt.Errorf("failed to purge providers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("failed to commit purge transaction", err)
	}
	log.Warn(log.CatStore, "provider store purged")
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (r *providerRepository) insert(e execer, provider *domain.Provider) error {
	model := toProviderModel(provider)
	result, err := e.Exec(
		`INSERT INTO providers (provider_id, name, provider_type, is_available, is_configured, last_check_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		model.ProviderID, model.Name, model.ProviderType,
		model.IsAvailable, model.IsConfigured, model.LastCheckTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	provider.SetID(id)
	return nil
}

func (r *providerRepository) updateMetadata(e execer, provider *domain.Provider) error {
	model := toProviderModel(provider)
	_, err := e.Exec(
		`UPDATE providers SET name = ?, provider_type = ?, is_available = ?, last_check_time = ? WHERE provider_id = ?`,
		model.Name, model.ProviderType, model.IsAvailable, model.LastCheckTime, model.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider metadata: %w", err)
	}
	return nil
}

// wrapStoreErr classifies connection-level failures as StoreUnavailableError
// so callers can degrade to registry-only mode.
func wrapStoreErr(msg string, err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		return &domain.StoreUnavailableError{Err: fmt.Errorf("%s: %w", msg, err)}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
