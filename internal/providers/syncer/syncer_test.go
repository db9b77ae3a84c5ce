package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/providers/discovery"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/registry"
	"github.com/castellan-sh/castellan/internal/testutil"
)

func snapshotOf(t *testing.T, roots discovery.Roots) *registry.Snapshot {
	t.Helper()
	reg := registry.New(discovery.New(roots))
	t.Cleanup(reg.Close)
	return reg.Refresh(context.Background())
}

func TestSync_InsertsNewProviders(t *testing.T) {
	repo, _ := testutil.SetupRepositories(t)
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithProvider(domain.ProviderTypeLocal, "ollama")

	report, err := New(repo).Sync(snapshotOf(t, tree.Roots()))
	require.NoError(t, err)

	require.Equal(t, []string{"cloud.openai", "local.ollama"}, report.RegistryOnly)
	require.Empty(t, report.DBOnly)
	require.Empty(t, report.Synchronized)

	stored, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.True(t, stored.IsAvailable())
	require.False(t, stored.IsConfigured())
}

func TestSync_Idempotent(t *testing.T) {
	repo, _ := testutil.SetupRepositories(t)
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	snap := snapshotOf(t, tree.Roots())
	s := New(repo)

	first, err := s.Sync(snap)
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai"}, first.RegistryOnly)

	second, err := s.Sync(snap)
	require.NoError(t, err)
	require.Empty(t, second.RegistryOnly, "second pass over the same snapshot must be a no-op")
	require.Empty(t, second.Updated)
	require.Equal(t, []string{"cloud.openai"}, second.Synchronized)

	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSync_MarksVanishedUnavailable(t *testing.T) {
	repo, creds := testutil.SetupRepositories(t)
	_, err := repo.EnsureExists("cloud.legacy", "legacy", domain.ProviderTypeCloud)
	require.NoError(t, err)
	require.NoError(t, creds.ReplaceForProvider("cloud.legacy", []*domain.Credential{
		{Key: "api_key", EncryptedValue: "ciphertext"},
	}))

	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")

	report, err := New(repo).Sync(snapshotOf(t, tree.Roots()))
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.legacy"}, report.DBOnly)

	vanished, err := repo.FindByProviderID("cloud.legacy")
	require.NoError(t, err)
	require.False(t, vanished.IsAvailable())
	require.True(t, vanished.IsConfigured(), "credentials stay valid while the provider is gone")

	stored, err := creds.ListForProvider("cloud.legacy")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestSync_ReappearanceRestoresAvailability(t *testing.T) {
	repo, _ := testutil.SetupRepositories(t)
	empty := testutil.NewProviderTree(t)
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	s := New(repo)

	_, err := s.Sync(snapshotOf(t, tree.Roots()))
	require.NoError(t, err)
	_, err = s.Sync(snapshotOf(t, empty.Roots()))
	require.NoError(t, err)

	report, err := s.Sync(snapshotOf(t, tree.Roots()))
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai"}, report.Updated)

	restored, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.True(t, restored.IsAvailable())
}

func TestSync_RefreshesDriftedMetadata(t *testing.T) {
	repo, _ := testutil.SetupRepositories(t)
	_, err := repo.EnsureExists("cloud.openai", "Old Name", domain.ProviderTypeCloud)
	require.NoError(t, err)

	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")

	report, err := New(repo).Sync(snapshotOf(t, tree.Roots()))
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai"}, report.Updated)
	require.Equal(t, []string{"cloud.openai"}, report.Synchronized)

	updated, err := repo.FindByProviderID("cloud.openai")
	require.NoError(t, err)
	require.Equal(t, "openai", updated.Name())
}

func TestSync_EmptySnapshotAgainstEmptyStore(t *testing.T) {
	repo, _ := testutil.SetupRepositories(t)
	empty := testutil.NewProviderTree(t)

	report, err := New(repo).Sync(snapshotOf(t, empty.Roots()))
	require.NoError(t, err)
	require.Empty(t, report.RegistryOnly)
	require.Empty(t, report.DBOnly)
	require.Empty(t, report.Synchronized)
}
