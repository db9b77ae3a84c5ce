// Package testutil provides shared fixtures for database and provider-tree
// setup in tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/infrastructure/sqlite"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// SetupTestDB opens a fully-migrated database under t.TempDir().
// The handle is closed automatically when the test finishes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "castellan.db"))
	require.NoError(t, err, "test database should open")
	t.Cleanup(func() { db.Close() })
	return db
}

// SetupRepositories opens a test database and wires both repositories over it.
func SetupRepositories(t *testing.T) (domain.ProviderRepository, domain.CredentialRepository) {
	t.Helper()
	db := SetupTestDB(t)
	return sqlite.NewProviderRepository(db), sqlite.NewCredentialRepository(db)
}
