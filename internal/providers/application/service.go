// Package application implements the provider use cases: discovery refresh,
// store synchronization, and encrypted credential management.
//
// This package serves as a facade bridging the domain layer to
// infrastructure concerns: the filesystem scanner behind the registry, the
// SQLite repositories, the credential cipher, and the capability client
// factory. Anything user-facing (CLI commands, widgets) talks to
// ProviderService, never to the layers below.
package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/castellan-sh/castellan/internal/cachemanager"
	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/client"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/registry"
	"github.com/castellan-sh/castellan/internal/providers/syncer"
	"github.com/castellan-sh/castellan/internal/security"
	"github.com/castellan-sh/castellan/internal/tracing"
)

const configCacheTTL = 10 * time.Minute

// ProviderService is the application facade for the provider pipeline.
//
// When the store could not be opened at startup the service runs in a
// degraded registry-only mode: discovery keeps working, every persistence
// operation returns StoreUnavailableError, and the process does not crash.
type ProviderService struct {
	registry    *registry.Registry
	syncer      *syncer.Syncer
	providers   domain.ProviderRepository
	credentials domain.CredentialRepository
	cipher      *security.Cipher
	clients     *client.Factory
	configCache *cachemanager.ReadThroughCache[string, map[string]string, string]
	tracer      trace.Tracer
	storeErr    error
}

// Option configures a ProviderService.
type Option func(*ProviderService)

// WithTracer attaches a tracer to the credential and sync paths.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *ProviderService) { s.tracer = tracer }
}

// WithClientFactory overrides the capability client factory.
func WithClientFactory(factory *client.Factory) Option {
	return func(s *ProviderService) { s.clients = factory }
}

// NewProviderService wires the service. providers and credentials may be nil
// when the store failed to open; storeErr then explains why every
// persistence call degrades.
func NewProviderService(
	reg *registry.Registry,
	providers domain.ProviderRepository,
	credentials domain.CredentialRepository,
	cipher *security.Cipher,
	storeErr error,
	opts ...Option,
) *ProviderService {
	s := &ProviderService{
		registry:    reg,
		providers:   providers,
		credentials: credentials,
		cipher:      cipher,
		clients:     client.NewFactory(),
		tracer:      noop.NewTracerProvider().Tracer("noop"),
		storeErr:    storeErr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if providers != nil {
		s.syncer = syncer.New(providers)
	}
	s.configCache = cachemanager.NewReadThroughCache[string, map[string]string, string](
		cachemanager.NewInMemoryCacheManager[string, map[string]string](
			"provider-config", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		s.loadProviderConfig,
		false,
	)
	return s
}

// StoreAvailable reports whether persistence operations can succeed.
func (s *ProviderService) StoreAvailable() bool {
	return s.providers != nil && s.credentials != nil
}

func (s *ProviderService) storeUnavailable() error {
	return &domain.StoreUnavailableError{Err: s.storeErr}
}

// --- Discovery and registry ---

// GetAllProviders returns every discovered descriptor keyed by provider id.
func (s *ProviderService) GetAllProviders() map[string]*domain.Descriptor {
	return s.registry.All()
}

// GetCloudProviders returns discovered cloud descriptors.
func (s *ProviderService) GetCloudProviders() map[string]*domain.Descriptor {
	return s.registry.ByType(domain.ProviderTypeCloud)
}

// GetLocalProviders returns discovered local descriptors.
func (s *ProviderService) GetLocalProviders() map[string]*domain.Descriptor {
	return s.registry.ByType(domain.ProviderTypeLocal)
}

// GetProvider returns one descriptor or ProviderNotFoundError.
func (s *ProviderService) GetProvider(providerID string) (*domain.Descriptor, error) {
	return s.registry.Get(providerID)
}

// GetDiscoveryStatus returns the diagnostic report for the current snapshot.
func (s *ProviderService) GetDiscoveryStatus() registry.DiscoveryStatus {
	return s.registry.Status()
}

// RefreshProviders rebuilds the registry from disk and, when the store is
// available, reconciles it. Discovery succeeds even when the sync fails;
// the error reports the sync outcome.
func (s *ProviderService) RefreshProviders(ctx context.Context) (*registry.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanRefresh)
	defer span.End()

	snap := s.registry.Refresh(ctx)
	span.SetAttributes(
		attribute.String(tracing.AttrPassID, snap.PassID),
		attribute.Int(tracing.AttrProviderCount, len(snap.Descriptors)),
		attribute.Int(tracing.AttrErrorCount, len(snap.Errors)),
	)

	// Flush the decrypted config wholesale; invalidating the new
	// snapshot's ids would miss providers that vanished in this pass.
	s.configCache.Flush(ctx)

	if !s.StoreAvailable() {
		log.Warn(log.CatSync, "store unavailable, registry-only refresh")
		return snap, nil
	}
	if _, err := s.syncWithSpan(ctx, snap); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return snap, err
	}
	return snap, nil
}

// ForceDatabaseSync reconciles the current snapshot with the store.
func (s *ProviderService) ForceDatabaseSync(ctx context.Context) (*syncer.Report, error) {
	if !s.StoreAvailable() {
		return nil, s.storeUnavailable()
	}
	return s.syncWithSpan(ctx, s.registry.Current())
}

func (s *ProviderService) syncWithSpan(ctx context.Context, snap *registry.Snapshot) (*syncer.Report, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanSync)
	defer span.End()

	report, err := s.syncer.Sync(snap)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrSyncInserted, len(report.RegistryOnly)),
		attribute.Int(tracing.AttrSyncUnavailable, len(report.DBOnly)),
		attribute.Int(tracing.AttrSyncUpdated, len(report.Updated)),
	)
	return report, nil
}

// DatabaseStatus compares the registry snapshot with the store without
// writing anything.
type DatabaseStatus struct {
	TotalRegistry  int      `json:"total_registry"`
	TotalDatabase  int      `json:"total_database"`
	InRegistryOnly []string `json:"in_registry_only"`
	InDatabaseOnly []string `json:"in_database_only"`
	Synchronized   []string `json:"synchronized"`
}

// GetDatabaseStatus reports which providers exist only in the registry,
// only in the store, or in both.
func (s *ProviderService) GetDatabaseStatus() (*DatabaseStatus, error) {
	if !s.StoreAvailable() {
		return nil, s.storeUnavailable()
	}

	dbIDs, err := s.providers.ListIDs()
	if err != nil {
		return nil, err
	}
	inDB := make(map[string]bool, len(dbIDs))
	for _, id := range dbIDs {
		inDB[id] = true
	}

	status := &DatabaseStatus{
		TotalDatabase:  len(dbIDs),
		InRegistryOnly: []string{},
		InDatabaseOnly: []string{},
		Synchronized:   []string{},
	}
	registryIDs := s.registry.IDs()
	status.TotalRegistry = len(registryIDs)

	for _, id := range registryIDs {
		if inDB[id] {
			status.Synchronized = append(status.Synchronized, id)
			delete(inDB, id)
		} else {
			status.InRegistryOnly = append(status.InRegistryOnly, id)
		}
	}
	for id := range inDB {
		status.InDatabaseOnly = append(status.InDatabaseOnly, id)
	}
	sort.Strings(status.InDatabaseOnly)
	return status, nil
}

// --- Credentials ---

// SaveProviderConfig encrypts and persists the credential set for a
// provider, creating its store row first if needed. Empty values are
// skipped, matching the semantics of clearing a field in a form.
func (s *ProviderService) SaveProviderConfig(ctx context.Context, providerID string, credentials map[string]string) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanSaveConfig,
		trace.WithAttributes(attribute.String(tracing.AttrProviderID, providerID)))
	defer span.End()

	if !s.StoreAvailable() {
		return s.storeUnavailable()
	}

	name, providerType, err := s.identityFor(providerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if _, err := s.providers.EnsureExists(providerID, name, providerType); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	keys := make([]string, 0, len(credentials))
	for key := range credentials {
		if credentials[key] != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([]*domain.Credential, 0, len(keys))
	for _, key := range keys {
		ciphertext, err := s.cipher.Encrypt(credentials[key])
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		rows = append(rows, &domain.Credential{Key: key, EncryptedValue: ciphertext})
	}

	if err := s.credentials.ReplaceForProvider(providerID, rows); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int(tracing.AttrCredentialCount, len(rows)))

	s.configCache.Invalidate(ctx, providerID)
	log.Info(log.CatStore, "provider configuration saved", "provider_id", providerID, "fields", len(rows))
	return nil
}

// GetProviderConfig returns the decrypted credential map for a provider.
// An unknown provider yields an empty map, not an error. Individual rows
// that fail to decrypt are skipped and logged, so one corrupted value does
// not take the rest of the configuration down.
func (s *ProviderService) GetProviderConfig(ctx context.Context, providerID string) (map[string]string, error) {
	if !s.StoreAvailable() {
		return nil, s.storeUnavailable()
	}
	return s.configCache.Get(ctx, providerID, providerID, configCacheTTL)
}

func (s *ProviderService) loadProviderConfig(ctx context.Context, providerID string) (map[string]string, error) {
	_, span := s.tracer.Start(ctx, tracing.SpanLoadConfig,
		trace.WithAttributes(attribute.String(tracing.AttrProviderID, providerID)))
	defer span.End()

	rows, err := s.credentials.ListForProvider(providerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	config := make(map[string]string, len(rows))
	for _, row := range rows {
		value, err := s.cipher.Decrypt(row.EncryptedValue)
		if err != nil {
			log.ErrorErr(log.CatCrypto, "credential decryption failed, skipping", err,
				"provider_id", providerID, "key", row.Key)
			continue
		}
		config[row.Key] = value
	}
	return config, nil
}

// DeleteProviderConfig removes every stored credential for the provider and
// marks it unconfigured. Returns false when the provider had no store row.
func (s *ProviderService) DeleteProviderConfig(ctx context.Context, providerID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanDeleteConfig,
		trace.WithAttributes(attribute.String(tracing.AttrProviderID, providerID)))
	defer span.End()

	if !s.StoreAvailable() {
		return false, s.storeUnavailable()
	}

	deleted, err := s.credentials.DeleteForProvider(providerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	s.configCache.Invalidate(ctx, providerID)
	return deleted, nil
}

// CheckProviderConfigured reports whether the provider has a configured
// store row. Unknown providers and degraded mode read as not configured.
func (s *ProviderService) CheckProviderConfigured(providerID string) bool {
	if !s.StoreAvailable() {
		return false
	}
	provider, err := s.providers.FindByProviderID(providerID)
	if err != nil {
		return false
	}
	return provider.IsConfigured()
}

// GetAvailableProviders returns ids of providers that are both configured
// and currently available, sorted.
func (s *ProviderService) GetAvailableProviders() ([]string, error) {
	if !s.StoreAvailable() {
		return nil, s.storeUnavailable()
	}
	all, err := s.providers.ListAll()
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, p := range all {
		if p.IsConfigured() && p.IsAvailable() {
			ids = append(ids, p.ProviderID())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// HasAnyProviders reports whether at least one provider is configured.
func (s *ProviderService) HasAnyProviders() (bool, error) {
	if !s.StoreAvailable() {
		return false, s.storeUnavailable()
	}
	all, err := s.providers.ListAll()
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p.IsConfigured() {
			return true, nil
		}
	}
	return false, nil
}

// ProviderInfo is the store-side view of one provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	ProviderType string `json:"provider_type"`
	IsConfigured bool   `json:"is_configured"`
	IsAvailable  bool   `json:"is_available"`
}

// GetAllProvidersDict returns every store row keyed by provider id.
func (s *ProviderService) GetAllProvidersDict() (map[string]ProviderInfo, error) {
	if !s.StoreAvailable() {
		return nil, s.storeUnavailable()
	}
	all, err := s.providers.ListAll()
	if err != nil {
		return nil, err
	}
	result := make(map[string]ProviderInfo, len(all))
	for _, p := range all {
		result[p.ProviderID()] = ProviderInfo{
			Name:         p.Name(),
			ProviderType: string(p.Type()),
			IsConfigured: p.IsConfigured(),
			IsAvailable:  p.IsAvailable(),
		}
	}
	return result, nil
}

// Purge hard-deletes every provider and credential row. Destructive,
// reserved for the explicit reset command.
func (s *ProviderService) Purge(ctx context.Context) error {
	if !s.StoreAvailable() {
		return s.storeUnavailable()
	}
	if err := s.providers.PurgeAll(); err != nil {
		return err
	}
	// The cache may hold config for providers no longer in the registry;
	// after a purge nothing cached is valid.
	s.configCache.Flush(ctx)
	return nil
}

// --- Capability clients ---

// ValidateProvider checks the stored credentials against the provider's
// capability client.
func (s *ProviderService) ValidateProvider(ctx context.Context, providerID string) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanValidateProvider,
		trace.WithAttributes(attribute.String(tracing.AttrProviderID, providerID)))
	defer span.End()

	desc, err := s.registry.Get(providerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	config, err := s.GetProviderConfig(ctx, providerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c := s.clients.ClientFor(desc)
	err = client.Execute(ctx, providerID, "validate_credentials", func(ctx context.Context) error {
		return c.ValidateCredentials(ctx, config)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ListProviderModels returns the models a configured provider exposes.
func (s *ProviderService) ListProviderModels(ctx context.Context, providerID string) ([]domain.ModelSpec, error) {
	desc, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	config, err := s.GetProviderConfig(ctx, providerID)
	if err != nil {
		return nil, err
	}

	c := s.clients.ClientFor(desc)
	var models []domain.ModelSpec
	err = client.Execute(ctx, providerID, "list_models", func(ctx context.Context) error {
		var opErr error
		models, opErr = c.ListModels(ctx, config)
		return opErr
	})
	return models, err
}

// identityFor resolves display name and type for a provider id, preferring
// the discovered descriptor and falling back to parsing the id itself, so
// credentials can be saved for providers not currently on disk.
func (s *ProviderService) identityFor(providerID string) (string, domain.ProviderType, error) {
	if desc, err := s.registry.Get(providerID); err == nil {
		return desc.Name, desc.Type, nil
	}
	providerType, name, err := domain.SplitProviderID(providerID)
	if err != nil {
		return "", "", err
	}
	return name, providerType, nil
}

// --- Health ---

// HealthReport summarizes store reachability and discovery state.
type HealthReport struct {
	StoreReachable  bool     `json:"store_reachable"`
	StoreError      string   `json:"store_error,omitempty"`
	TotalDiscovered int      `json:"total_discovered"`
	DiscoveryErrors []string `json:"discovery_errors"`
	ConfiguredCount int      `json:"configured_count"`
	LastScanTime    string   `json:"last_scan_time,omitempty"`
}

// Healthcheck builds the health report without mutating anything.
func (s *ProviderService) Healthcheck(ctx context.Context) HealthReport {
	status := s.registry.Status()
	report := HealthReport{
		StoreReachable:  s.StoreAvailable(),
		TotalDiscovered: status.TotalDiscovered,
		DiscoveryErrors: status.Errors,
		LastScanTime:    status.LastScanTime,
	}
	if !report.StoreReachable {
		if s.storeErr != nil {
			report.StoreError = s.storeErr.Error()
		}
		return report
	}

	all, err := s.providers.ListAll()
	if err != nil {
		report.StoreReachable = false
		report.StoreError = err.Error()
		return report
	}
	for _, p := range all {
		if p.IsConfigured() {
			report.ConfiguredCount++
		}
	}
	return report
}

// IsStoreUnavailable reports whether err is the degraded-mode error.
func IsStoreUnavailable(err error) bool {
	var unavailable *domain.StoreUnavailableError
	return errors.As(err, &unavailable)
}
