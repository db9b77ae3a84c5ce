package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

func setupRepos(t *testing.T) (domain.ProviderRepository, domain.CredentialRepository) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProviderRepository(db), NewCredentialRepository(db)
}

func TestProviderRepository_FindByProviderID_NotFound(t *testing.T) {
	repo, _ := setupRepos(t)

	_, err := repo.FindByProviderID("cloud.openai")

	var notFound *domain.ProviderNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "cloud.openai", notFound.ProviderID)
}

func TestProviderRepository_EnsureExists_CreatesRow(t *testing.T) {
	repo, _ := setupRepos(t)

	created, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	require.NotZero(t, created.ID(), "insert should assign the surrogate key")
	require.True(t, created.IsAvailable())
	require.False(t, created.IsConfigured())

	found, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.Equal(t, created.ID(), found.ID())
	require.Equal(t, "OpenAI", found.Name())
	require.Equal(t, domain.ProviderTypeCloud, found.Type())
}

func TestProviderRepository_EnsureExists_Idempotent(t *testing.T) {
	repo, _ := setupRepos(t)

	first, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	second, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	require.Equal(t, first.ID(), second.ID(), "same business key must map to the same row")

	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestProviderRepository_EnsureExists_RefreshesMetadata(t *testing.T) {
	repo, _ := setupRepos(t)

	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	_, err = repo.EnsureExists("cloud.openai", "OpenAI Platform", domain.ProviderTypeCloud)
	require.NoError(t, err)

	found, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.Equal(t, "OpenAI Platform", found.Name())
}

func TestProviderRepository_ApplySync_AllPhases(t *testing.T) {
	repo, _ := setupRepos(t)

	existing, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	_, err = repo.EnsureExists("local.ollama", "ollama", domain.ProviderTypeLocal)
	require.NoError(t, err)

	existing.UpdateMetadata("OpenAI Platform", domain.ProviderTypeCloud)
	changes := domain.SyncChanges{
		Insert:          []*domain.Provider{domain.NewProvider("cloud.anthropic", "Anthropic", domain.ProviderTypeCloud)},
		MarkUnavailable: []string{"local.ollama"},
		UpdateMetadata:  []*domain.Provider{existing},
	}
	require.NoError(t, repo.ApplySync(changes))

	inserted, err := repo.FindByProviderID("cloud.anthropic")
	require.NoError(t, err)
	require.True(t, inserted.IsAvailable())
	require.NotZero(t, changes.Insert[0].ID(), "ApplySync should assign ids to inserted rows")

	vanished, err := repo.FindByProviderID("local.ollama")
	require.NoError(t, err)
	require.False(t, vanished.IsAvailable(), "row should be flipped, not deleted")

	updated, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.Equal(t, "OpenAI Platform", updated.Name())
}

func TestProviderRepository_ApplySync_UnavailableKeepsConfigured(t *testing.T) {
	repo, creds := setupRepos(t)

	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	}))

	require.NoError(t, repo.ApplySync(domain.SyncChanges{MarkUnavailable: []string{"cloud.openai"}}))

	found, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.False(t, found.IsAvailable())
	require.True(t, found.IsConfigured(), "configuration must survive unavailability")

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Len(t, stored, 1, "credentials must survive unavailability")
}

func TestProviderRepository_ApplySync_DuplicateInsertRollsBack(t *testing.T) {
	repo, _ := setupRepos(t)

	changes := domain.SyncChanges{
		Insert: []*domain.Provider{
			domain.NewProvider("cloud.openai", "OpenAI", domain.ProviderTypeCloud),
			domain.NewProvider("cloud.openai", "Duplicate", domain.ProviderTypeCloud),
		},
	}
	require.Error(t, repo.ApplySync(changes), "unique constraint should reject the second insert")

	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Empty(t, all, "failed sync must leave the store untouched")
}

func TestProviderRepository_ListIDs(t *testing.T) {
	repo, _ := setupRepos(t)

	_, err := repo.EnsureExists("local.ollama", "ollama", domain.ProviderTypeLocal)
	require.NoError(t, err)
	_, err = repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	ids, err := repo.ListIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai", "local.ollama"}, ids)
}

func TestProviderRepository_PurgeAll(t *testing.T) {
	repo, creds := setupRepos(t)

	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	}))

	require.NoError(t, repo.PurgeAll())

	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Empty(t, all)

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Empty(t, stored)
}
