package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/config"
	"github.com/castellan-sh/castellan/internal/providers/application"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/testutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai").
		WithProvider(domain.ProviderTypeLocal, "ollama")

	base := t.TempDir()
	cfg := config.Defaults()
	cfg.Providers.CloudDir = tree.Roots().Cloud
	cfg.Providers.LocalDir = tree.Roots().Local
	cfg.Database.Path = filepath.Join(base, "castellan.db")
	cfg.Log.Path = filepath.Join(base, "logs", "castellan.log")
	cfg.AutoRefresh = false
	return cfg
}

func TestNew_WiresServiceAndStore(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.True(t, a.Service.StoreAvailable())

	require.NoError(t, a.Start(context.Background()))
	providers := a.Service.GetAllProviders()
	require.Len(t, providers, 2)

	status, err := a.Service.GetDatabaseStatus()
	require.NoError(t, err)
	require.Len(t, status.Synchronized, 2)
}

func TestNew_StoreFailureDegradesToRegistryOnly(t *testing.T) {
	cfg := testConfig(t)
	// A directory where the db file should be makes sqlite refuse to open.
	cfg.Database.Path = t.TempDir()

	a, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	require.False(t, a.Service.StoreAvailable())

	require.NoError(t, a.Start(context.Background()))
	require.Len(t, a.Service.GetAllProviders(), 2)

	err = a.Service.SaveProviderConfig(context.Background(), "cloud.openai",
		map[string]string{"api_key": "sk-test"})
	require.True(t, application.IsStoreUnavailable(err))
}

func TestStart_AutoRefreshPicksUpNewProviders(t *testing.T) {
	tree := testutil.NewProviderTree(t).
		WithProvider(domain.ProviderTypeCloud, "openai")

	base := t.TempDir()
	cfg := config.Defaults()
	cfg.Providers.CloudDir = tree.Roots().Cloud
	cfg.Providers.LocalDir = tree.Roots().Local
	cfg.Database.Path = filepath.Join(base, "castellan.db")
	cfg.Log.Path = filepath.Join(base, "logs", "castellan.log")
	cfg.AutoRefresh = true
	cfg.AutoRefreshDebounce = 50

	a, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	require.Len(t, a.Service.GetAllProviders(), 1)

	tree.WithProvider(domain.ProviderTypeCloud, "anthropic")

	require.Eventually(t, func() bool {
		return len(a.Service.GetAllProviders()) == 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestClose_IsSafeWithoutStart(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
