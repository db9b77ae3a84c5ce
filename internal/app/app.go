// Package app wires castellan's subsystems into a single application
// context that is constructed once and passed to the CLI layer.
package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/castellan-sh/castellan/internal/config"
	"github.com/castellan-sh/castellan/internal/infrastructure/sqlite"
	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/application"
	"github.com/castellan-sh/castellan/internal/providers/discovery"
	"github.com/castellan-sh/castellan/internal/providers/registry"
	"github.com/castellan-sh/castellan/internal/security"
	"github.com/castellan-sh/castellan/internal/tracing"
	"github.com/castellan-sh/castellan/internal/watcher"
)

// App holds every long-lived subsystem: discovery registry, credential
// store, provider service, tracing, and the optional auto-refresh watcher.
// The store may be unavailable; the app then runs in registry-only mode
// and persistence operations report the store error.
type App struct {
	Config   config.Config
	Registry *registry.Registry
	Service  *application.ProviderService

	tracing       *tracing.Provider
	db            func() error
	watcherHandle *watcher.Watcher
	watcherCancel context.CancelFunc
	closeLog      func()
}

// New constructs the application context from configuration. A store
// that fails to open is not fatal: discovery still works and every
// persistence operation reports the failure instead.
func New(cfg config.Config) (*App, error) {
	closeLog := initLogging(cfg)

	tp := initTracing(cfg)

	scanOpts := []discovery.Option{}
	if !cfg.Providers.SelfHeal {
		scanOpts = append(scanOpts, discovery.WithoutSelfHeal())
	}
	scanner := discovery.New(discovery.Roots{
		Cloud: cfg.CloudRoot(),
		Local: cfg.LocalRoot(),
	}, scanOpts...)
	reg := registry.New(scanner)

	cipher, err := security.NewCipher()
	if err != nil {
		reg.Close()
		closeLog()
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Registry: reg,
		tracing:  tp,
		closeLog: closeLog,
	}

	db, storeErr := sqlite.NewDB(cfg.DatabasePath())
	if storeErr != nil {
		log.Warn(log.CatDB, "store unavailable, running registry-only",
			"path", cfg.DatabasePath(), "error", storeErr.Error())
		app.Service = application.NewProviderService(reg, nil, nil, cipher, storeErr,
			application.WithTracer(tp.Tracer()))
		return app, nil
	}

	app.db = db.Close
	app.Service = application.NewProviderService(
		reg,
		sqlite.NewProviderRepository(db),
		sqlite.NewCredentialRepository(db),
		cipher,
		nil,
		application.WithTracer(tp.Tracer()),
	)
	return app, nil
}

// Start runs the initial discovery pass and, when auto-refresh is
// enabled, begins watching the provider roots for changes.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Service.RefreshProviders(ctx); err != nil {
		// Sync failures leave the registry populated; discovery results
		// are still usable.
		log.ErrorErr(log.CatSync, "initial sync failed", err)
	}

	if !a.Config.AutoRefresh {
		return nil
	}
	return a.startWatcher(ctx)
}

func (a *App) startWatcher(ctx context.Context) error {
	cfg := watcher.Config{
		Roots:       []string{a.Config.CloudRoot(), a.Config.LocalRoot()},
		DebounceDur: a.Config.DebounceDuration(),
	}
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	signals, err := w.Start()
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watcherHandle = w
	a.watcherCancel = cancel

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				log.Info(log.CatWatcher, "provider roots changed, refreshing")
				if _, err := a.Service.RefreshProviders(watchCtx); err != nil {
					log.ErrorErr(log.CatWatcher, "auto-refresh failed", err)
				}
			}
		}
	}()
	return nil
}

// Close shuts down the watcher, registry, tracing, store, and log file.
func (a *App) Close() error {
	var firstErr error

	if a.watcherCancel != nil {
		a.watcherCancel()
	}
	if a.watcherHandle != nil {
		if err := a.watcherHandle.Stop(); err != nil {
			firstErr = err
		}
	}

	a.Registry.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if a.db != nil {
		if err := a.db(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.closeLog != nil {
		a.closeLog()
	}
	return firstErr
}

// initLogging opens the log file and applies the configured level.
// Logging failures are not fatal; the app runs silently instead.
func initLogging(cfg config.Config) func() {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return func() {}
	}
	closeLog, err := log.Init(path)
	if err != nil {
		return func() {}
	}
	log.SetMinLevel(cfg.LogLevel())
	return closeLog
}

// initTracing builds the tracer provider, falling back to a disabled
// provider when the configured exporter cannot be constructed.
func initTracing(cfg config.Config) *tracing.Provider {
	trCfg := cfg.Tracing
	if trCfg.Enabled && trCfg.Exporter == "file" && trCfg.FilePath == "" {
		trCfg.FilePath = cfg.TracingFilePath()
	}
	tp, err := tracing.NewProvider(trCfg)
	if err != nil {
		log.ErrorErr(log.CatConfig, "tracing init failed, disabling", err)
		tp, _ = tracing.NewProvider(tracing.Config{Enabled: false})
	}
	return tp
}
