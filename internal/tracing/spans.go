package tracing

// Span attribute keys for the provider pipeline.
const (
	// Discovery attributes
	AttrPassID        = "discovery.pass_id"
	AttrProviderCount = "discovery.provider_count"
	AttrErrorCount    = "discovery.error_count"

	// Provider attributes
	AttrProviderID   = "provider.id"
	AttrProviderType = "provider.type"

	// Sync attributes
	AttrSyncInserted    = "sync.inserted"
	AttrSyncUnavailable = "sync.unavailable"
	AttrSyncUpdated     = "sync.updated"

	// Credential attributes
	AttrCredentialCount = "credential.count"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names for consistent naming across the pipeline.
const (
	SpanRefresh          = "registry.refresh"
	SpanSync             = "store.sync"
	SpanSaveConfig       = "credentials.save"
	SpanLoadConfig       = "credentials.load"
	SpanDeleteConfig     = "credentials.delete"
	SpanValidateProvider = "provider.validate"
)
