package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/providers/discovery"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/registry"
	"github.com/castellan-sh/castellan/internal/security"
	"github.com/castellan-sh/castellan/internal/testutil"
)

func testCipher(t *testing.T) *security.Cipher {
	t.Helper()
	cipher, err := security.NewCipherWithKey(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return cipher
}

func newService(t *testing.T, tree *testutil.TreeBuilder) *ProviderService {
	t.Helper()
	reg := registry.New(discovery.New(tree.Roots()))
	t.Cleanup(reg.Close)
	providers, credentials := testutil.SetupRepositories(t)
	return NewProviderService(reg, providers, credentials, testCipher(t), nil)
}

func newDegradedService(t *testing.T, tree *testutil.TreeBuilder) *ProviderService {
	t.Helper()
	reg := registry.New(discovery.New(tree.Roots()))
	t.Cleanup(reg.Close)
	return NewProviderService(reg, nil, nil, testCipher(t), errors.New("database locked"))
}

func TestRefreshProviders_DiscoversAndSyncs(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithProvider(domain.ProviderTypeLocal, "ollama")
	svc := newService(t, tree)

	snap, err := svc.RefreshProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Descriptors, 2)

	status, err := svc.GetDatabaseStatus()
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai", "local.ollama"}, status.Synchronized)
	require.Empty(t, status.InRegistryOnly)
	require.Empty(t, status.InDatabaseOnly)
}

func TestGetProvidersByType(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithProvider(domain.ProviderTypeCloud, "anthropic").
		WithProvider(domain.ProviderTypeLocal, "ollama")
	svc := newService(t, tree)
	_, err := svc.RefreshProviders(context.Background())
	require.NoError(t, err)

	require.Len(t, svc.GetAllProviders(), 3)
	require.Len(t, svc.GetCloudProviders(), 2)
	require.Len(t, svc.GetLocalProviders(), 1)
}

func TestSaveAndGetProviderConfig_RoundTrip(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai",
			testutil.WithAuthRequirement("api_key", "API Key", true, true))
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{
		"api_key": "sk-secret",
		"org_id":  "org-1",
	}))

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"api_key": "sk-secret", "org_id": "org-1"}, config)

	require.True(t, svc.CheckProviderConfigured("cloud.openai"))
}

func TestSaveProviderConfig_SkipsEmptyValues(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{
		"api_key": "sk-secret",
		"org_id":  "",
	}))

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"api_key": "sk-secret"}, config)
}

func TestSaveProviderConfig_UndiscoveredProvider(t *testing.T) {
	// Saving for a provider not on disk creates the row from the id alone.
	svc := newService(t, testutil.NewProviderTree(t))
	ctx := context.Background()

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.mistral", map[string]string{
		"api_key": "sk-secret",
	}))
	require.True(t, svc.CheckProviderConfigured("cloud.mistral"))

	err := svc.SaveProviderConfig(ctx, "not-a-valid-id", map[string]string{"api_key": "x"})
	require.Error(t, err, "malformed ids cannot create rows")
}

func TestGetProviderConfig_UnknownProviderIsEmpty(t *testing.T) {
	svc := newService(t, testutil.NewProviderTree(t))

	config, err := svc.GetProviderConfig(context.Background(), "cloud.nowhere")
	require.NoError(t, err)
	require.Empty(t, config)
}

func TestGetProviderConfig_CorruptedRowIsSkipped(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	reg := registry.New(discovery.New(tree.Roots()))
	t.Cleanup(reg.Close)
	providers, credentials := testutil.SetupRepositories(t)
	svc := NewProviderService(reg, providers, credentials, testCipher(t), nil)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	good, err := testCipher(t).Encrypt("sk-secret")
	require.NoError(t, err)
	require.NoError(t, credentials.ReplaceForProvider("cloud.openai", []*domain.Credential{
		{Key: "api_key", EncryptedValue: good},
		{Key: "org_id", EncryptedValue: "not-real-ciphertext"},
	}))

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"api_key": "sk-secret"}, config, "corrupted row must not hide the valid one")
}

func TestDeleteProviderConfig(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk-secret"}))

	deleted, err := svc.DeleteProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, svc.CheckProviderConfigured("cloud.openai"))

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Empty(t, config, "cached config must be invalidated on delete")

	deleted, err = svc.DeleteProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.True(t, deleted, "deleting an unconfigured provider clears nothing but succeeds")

	deleted, err = svc.DeleteProviderConfig(ctx, "cloud.nowhere")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestGetAvailableProviders_ConfiguredAndAvailableOnly(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithProvider(domain.ProviderTypeCloud, "anthropic")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk"}))
	// Configured directly, never discovered; EnsureExists creates it available.
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.mistral", map[string]string{"api_key": "sk"}))

	available, err := svc.GetAvailableProviders()
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.mistral", "cloud.openai"}, available)

	has, err := svc.HasAnyProviders()
	require.NoError(t, err)
	require.True(t, has)
}

func TestGetAllProvidersDict(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk"}))

	dict, err := svc.GetAllProvidersDict()
	require.NoError(t, err)
	require.Len(t, dict, 1)
	require.Equal(t, ProviderInfo{
		Name:         "openai",
		ProviderType: "cloud",
		IsConfigured: true,
		IsAvailable:  true,
	}, dict["cloud.openai"])
}

func TestPurge(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk"}))

	require.NoError(t, svc.Purge(ctx))

	has, err := svc.HasAnyProviders()
	require.NoError(t, err)
	require.False(t, has)

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Empty(t, config)
}

func TestPurge_DropsCachedConfigForVanishedProviders(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk-secret"}))

	// Warm the cache, then drop the provider from disk and refresh so the
	// registry no longer carries its id.
	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Equal(t, "sk-secret", config["api_key"])

	require.NoError(t, os.RemoveAll(filepath.Join(tree.Roots().Cloud, "openai")))
	_, err = svc.RefreshProviders(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Purge(ctx))

	config, err = svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Empty(t, config, "purge must not leave decrypted config behind")
}

func TestDegradedMode_RegistryOnly(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")
	svc := newDegradedService(t, tree)
	ctx := context.Background()

	// Discovery still works.
	snap, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Descriptors, 1)
	require.False(t, svc.StoreAvailable())

	// Persistence degrades instead of crashing.
	err = svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk"})
	require.True(t, IsStoreUnavailable(err))
	_, err = svc.GetProviderConfig(ctx, "cloud.openai")
	require.True(t, IsStoreUnavailable(err))
	_, err = svc.GetDatabaseStatus()
	require.True(t, IsStoreUnavailable(err))
	require.False(t, svc.CheckProviderConfigured("cloud.openai"))

	health := svc.Healthcheck(ctx)
	require.False(t, health.StoreReachable)
	require.Equal(t, "database locked", health.StoreError)
	require.Equal(t, 1, health.TotalDiscovered)
}

func TestValidateProvider(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai",
			testutil.WithAuthRequirement("api_key", "API Key", true, true))
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)

	// No credentials stored yet.
	err = svc.ValidateProvider(ctx, "cloud.openai")
	var authErr *domain.ProviderAuthenticationError
	require.True(t, errors.As(err, &authErr))

	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk-secret"}))
	require.NoError(t, svc.ValidateProvider(ctx, "cloud.openai"))

	err = svc.ValidateProvider(ctx, "cloud.nowhere")
	var notFound *domain.ProviderNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestHealthcheck_CountsConfigured(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithBrokenProvider(domain.ProviderTypeCloud, "broken")
	svc := newService(t, tree)
	ctx := context.Background()
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk"}))

	health := svc.Healthcheck(ctx)
	require.True(t, health.StoreReachable)
	require.Equal(t, 1, health.TotalDiscovered)
	require.Equal(t, 1, health.ConfiguredCount)
	require.Len(t, health.DiscoveryErrors, 1)
	require.NotEmpty(t, health.LastScanTime)
}

// Full pipeline: discover, sync, configure, vanish, resync, reappear.
func TestProviderLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	providers, credentials := testutil.SetupRepositories(t)
	cipher := testCipher(t)

	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai",
			testutil.WithAuthRequirement("api_key", "API Key", true, true))
	reg := registry.New(discovery.New(tree.Roots()))
	t.Cleanup(reg.Close)
	svc := NewProviderService(reg, providers, credentials, cipher, nil)

	// Discover and configure.
	_, err := svc.RefreshProviders(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SaveProviderConfig(ctx, "cloud.openai", map[string]string{"api_key": "sk-secret"}))

	// Provider vanishes from disk.
	empty := testutil.NewProviderTree(t)
	regGone := registry.New(discovery.New(empty.Roots()))
	t.Cleanup(regGone.Close)
	svcGone := NewProviderService(regGone, providers, credentials, cipher, nil)
	_, err = svcGone.RefreshProviders(ctx)
	require.NoError(t, err)

	available, err := svcGone.GetAvailableProviders()
	require.NoError(t, err)
	require.Empty(t, available, "vanished provider is no longer available")
	require.True(t, svcGone.CheckProviderConfigured("cloud.openai"), "but stays configured")

	// Provider comes back; credentials still decrypt.
	_, err = svc.RefreshProviders(ctx)
	require.NoError(t, err)

	available, err = svc.GetAvailableProviders()
	require.NoError(t, err)
	require.Equal(t, []string{"cloud.openai"}, available)

	config, err := svc.GetProviderConfig(ctx, "cloud.openai")
	require.NoError(t, err)
	require.Equal(t, "sk-secret", config["api_key"])
}
