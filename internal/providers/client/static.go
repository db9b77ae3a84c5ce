package client

import (
	"context"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// staticClient is the descriptor-driven default implementation: it validates
// credential shape against the manifest's auth requirements and serves the
// manifest's default model list. Providers with a live API get their own
// Client registered in the factory; everything else falls back to this.
type staticClient struct {
	descriptor *domain.Descriptor
}

// NewStatic creates the manifest-backed client for a descriptor.
func NewStatic(descriptor *domain.Descriptor) Client {
	return &staticClient{descriptor: descriptor}
}

var _ Client = (*staticClient)(nil)

func (c *staticClient) ValidateCredentials(ctx context.Context, credentials map[string]string) error {
	for _, key := range c.descriptor.RequiredCredentialKeys() {
		if credentials[key] == "" {
			return &domain.ProviderAuthenticationError{
				ProviderID: c.descriptor.ID,
				Err:        &missingCredentialError{Key: key},
			}
		}
	}
	return nil
}

func (c *staticClient) ListModels(ctx context.Context, credentials map[string]string) ([]domain.ModelSpec, error) {
	if err := c.ValidateCredentials(ctx, credentials); err != nil {
		return nil, err
	}
	models := make([]domain.ModelSpec, len(c.descriptor.DefaultModels))
	copy(models, c.descriptor.DefaultModels)
	return models, nil
}

func (c *staticClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

type missingCredentialError struct {
	Key string
}

func (e *missingCredentialError) Error() string {
	return "missing required credential " + e.Key
}
