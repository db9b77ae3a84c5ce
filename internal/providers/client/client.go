// Package client defines the capability contract a provider implementation
// fulfills and the factory that produces one per discovered descriptor.
//
// The contract is static: a provider is a Go value satisfying Client,
// selected by provider type, never loaded reflectively from the plugin
// directory. The plugin directory contributes metadata only.
package client

import (
	"context"
	"errors"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// Client is the capability surface of one provider implementation.
type Client interface {
	// ValidateCredentials checks the credential set against the provider.
	// A missing or rejected credential is a ProviderAuthenticationError.
	ValidateCredentials(ctx context.Context, credentials map[string]string) error

	// ListModels returns the models the provider exposes for the given
	// credentials.
	ListModels(ctx context.Context, credentials map[string]string) ([]domain.ModelSpec, error)

	// Ping checks that the provider is reachable at all.
	Ping(ctx context.Context) error
}

// Execute runs op and maps its failure into the provider error taxonomy:
// authentication failures pass through, context and transport failures
// become ProviderConnectionError. The zero-cost path is an op that succeeds.
func Execute(ctx context.Context, providerID, operation string, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}

	log.ErrorErr(log.CatClient, "provider operation failed", err,
		"provider_id", providerID, "operation", operation)

	var authErr *domain.ProviderAuthenticationError
	if errors.As(err, &authErr) {
		return err
	}
	return &domain.ProviderConnectionError{ProviderID: providerID, Err: err}
}
