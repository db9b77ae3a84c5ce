// Package manifest loads and validates provider manifest files.
//
// A manifest is the declarative JSON file at the root of a provider plugin
// directory describing the provider's identity, auth requirements, and
// capabilities. Loading is a pure parse+validate step: the loader never
// writes to disk and never touches the store.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// Filename is the manifest file name looked for in every provider directory.
const Filename = "manifest.json"

// MarkerFilename is the implementation marker: a directory carrying one is a
// provider candidate even without a manifest.
const MarkerFilename = "provider.json"

// rawManifest mirrors the on-disk JSON shape before validation.
type rawManifest struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Version           string               `json:"version"`
	ProviderType      string               `json:"provider_type"`
	AuthRequirements  []rawAuthRequirement `json:"auth_requirements"`
	SupportedFeatures map[string]any       `json:"supported_features"`
	DefaultModels     []domain.ModelSpec   `json:"default_models"`
}

type rawAuthRequirement struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
}

// Load reads and validates the manifest at path, returning a normalized
// descriptor.
//
// Error contract:
//   - *domain.ManifestNotFoundError when the file does not exist
//   - *domain.MalformedManifestError on a JSON syntax error
//   - *domain.ValidationError enumerating EVERY schema violation
//
// The scanner recovers from all three per-directory; none aborts a pass.
func Load(path string) (*domain.Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the discovery walk
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.ManifestNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.MalformedManifestError{Path: path, Err: err}
	}

	return normalize(raw, path)
}

// normalize validates raw fields, collecting every violation instead of
// failing on the first, and produces the descriptor on success.
func normalize(raw rawManifest, path string) (*domain.Descriptor, error) {
	var violations []string

	if raw.ID == "" {
		violations = append(violations, "id is required")
	} else if _, _, err := domain.SplitProviderID(raw.ID); err != nil {
		violations = append(violations, fmt.Sprintf("id: %v", err))
	}
	if raw.Name == "" {
		violations = append(violations, "name is required")
	}
	if raw.Version == "" {
		violations = append(violations, "version is required")
	}
	if raw.Description == "" {
		violations = append(violations, "description is required")
	}
	if raw.ProviderType == "" {
		violations = append(violations, "provider_type is required")
	} else if !domain.ValidProviderType(raw.ProviderType) {
		violations = append(violations, fmt.Sprintf("provider_type %q must be \"cloud\" or \"local\"", raw.ProviderType))
	}

	for i, req := range raw.AuthRequirements {
		if req.Key == "" {
			violations = append(violations, fmt.Sprintf("auth_requirements[%d]: key is required", i))
		}
		if req.Name == "" {
			violations = append(violations, fmt.Sprintf("auth_requirements[%d]: name is required", i))
		}
	}

	if len(violations) > 0 {
		return nil, &domain.ValidationError{Path: path, Violations: violations}
	}

	reqs := make([]domain.AuthRequirement, len(raw.AuthRequirements))
	for i, req := range raw.AuthRequirements {
		reqs[i] = domain.AuthRequirement{
			Key:         req.Key,
			Name:        req.Name,
			Description: req.Description,
			Required:    req.Required,
			Secret:      req.Secret,
		}
	}

	return &domain.Descriptor{
		ID:                raw.ID,
		Name:              raw.Name,
		Description:       raw.Description,
		Version:           raw.Version,
		Type:              domain.ProviderType(raw.ProviderType),
		AuthRequirements:  reqs,
		SupportedFeatures: raw.SupportedFeatures,
		DefaultModels:     raw.DefaultModels,
		SourcePath:        filepath.Dir(path),
	}, nil
}
