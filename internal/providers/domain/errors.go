package domain

import (
	"fmt"
	"strings"
)

// ProviderNotFoundError indicates a lookup by provider id missed both the
// registry and the store.
type ProviderNotFoundError struct {
	ProviderID string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %q not found", e.ProviderID)
}

// ManifestNotFoundError indicates a provider directory has no manifest file.
type ManifestNotFoundError struct {
	Path string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at %s", e.Path)
}

// MalformedManifestError indicates a manifest file exists but is not valid JSON.
type MalformedManifestError struct {
	Path string
	Err  error
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("malformed manifest %s: %v", e.Path, e.Err)
}

func (e *MalformedManifestError) Unwrap() error { return e.Err }

// ValidationError carries every schema violation found in a manifest,
// not just the first.
type ValidationError struct {
	Path       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %s", e.Path, strings.Join(e.Violations, "; "))
}

// DecryptionError indicates a stored credential could not be decrypted,
// either because the ciphertext was tampered with or because the derived
// key changed (different user or machine). Callers treat it as
// "credential unreadable", never as a crash.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt credential: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// StoreUnavailableError indicates the persistent store could not be reached.
// The system degrades to registry-only mode; every persistence-dependent
// call surfaces this error instead of crashing.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("credential store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// ProviderConnectionError is raised by per-provider API clients when the
// backend cannot be reached. The core propagates it unchanged.
type ProviderConnectionError struct {
	ProviderID string
	Err        error
}

func (e *ProviderConnectionError) Error() string {
	return fmt.Sprintf("provider %s: connection failed: %v", e.ProviderID, e.Err)
}

func (e *ProviderConnectionError) Unwrap() error { return e.Err }

// ProviderAuthenticationError is raised by per-provider API clients when the
// stored credentials are rejected. The core propagates it unchanged.
type ProviderAuthenticationError struct {
	ProviderID string
	Err        error
}

func (e *ProviderAuthenticationError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %v", e.ProviderID, e.Err)
}

func (e *ProviderAuthenticationError) Unwrap() error { return e.Err }
