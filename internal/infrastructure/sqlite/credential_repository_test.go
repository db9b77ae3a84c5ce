package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

func TestCredentialRepository_ReplaceForProvider_MissingProvider(t *testing.T) {
	_, creds := setupRepos(t)

	err := creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	})

	var notFound *domain.ProviderNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestCredentialRepository_ReplaceForProvider_SavesAndMarksConfigured(t *testing.T) {
	repo, creds := setupRepos(t)
	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "cipher-a"},
		{Key: "org_id", EncryptedValue: "cipher-b"},
	}))

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "api_key", stored[0].Key)
	require.Equal(t, "cipher-a", stored[0].EncryptedValue)
	require.NotZero(t, stored[0].ProviderRowID)

	provider, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.True(t, provider.IsConfigured())
}

func TestCredentialRepository_ReplaceForProvider_ReplacesWholeSet(t *testing.T) {
	repo, creds := setupRepos(t)
	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "old-key"},
		{Key: "org_id", EncryptedValue: "old-org"},
	}))
	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "new-key"},
	}))

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Len(t, stored, 1, "old rows must be gone, not merged")
	require.Equal(t, "new-key", stored[0].EncryptedValue)
}

func TestCredentialRepository_ReplaceForProvider_EmptySetUnconfigures(t *testing.T) {
	repo, creds := setupRepos(t)
	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	}))
	require.NoError(t, creds.ReplaceForProvider("cloud.openai", nil))

	provider, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.False(t, provider.IsConfigured())
}

func TestCredentialRepository_DeleteForProvider(t *testing.T) {
	repo, creds := setupRepos(t)
	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)
	require.NoError(t, creds.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	}))

	deleted, err := creds.DeleteForProvider("cloud.openai")
	require.NoError(t, err)
	require.True(t, deleted)

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Empty(t, stored)

	provider, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.False(t, provider.IsConfigured())
}

func TestCredentialRepository_DeleteForProvider_MissingIsNotError(t *testing.T) {
	_, creds := setupRepos(t)

	deleted, err := creds.DeleteForProvider("cloud.nowhere")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestCredentialRepository_ListForProvider_EmptyWithoutRows(t *testing.T) {
	repo, creds := setupRepos(t)
	_, err := repo.EnsureExists("cloud.openai", "OpenAI", domain.ProviderTypeCloud)
	require.NoError(t, err)

	stored, err := creds.ListForProvider("cloud.openai")
	require.NoError(t, err)
	require.Empty(t, stored)
}
