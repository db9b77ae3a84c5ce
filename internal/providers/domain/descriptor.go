package domain

import (
	"fmt"
	"strings"
)

// ProviderType distinguishes hosted API providers from local inference engines.
type ProviderType string

const (
	ProviderTypeCloud ProviderType = "cloud"
	ProviderTypeLocal ProviderType = "local"
)

// ValidProviderType reports whether s names a known provider type.
func ValidProviderType(s string) bool {
	return s == string(ProviderTypeCloud) || s == string(ProviderTypeLocal)
}

// AuthRequirement declares one credential field a provider needs.
// Secret fields are masked in any user-facing rendering.
type AuthRequirement struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
}

// ModelSpec describes one model a provider ships by default.
type ModelSpec struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Descriptor is the normalized, validated form of a provider manifest.
// It is transient: rebuilt from disk on every discovery pass and never
// persisted as-is.
type Descriptor struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Version           string            `json:"version"`
	Type              ProviderType      `json:"provider_type"`
	AuthRequirements  []AuthRequirement `json:"auth_requirements"`
	SupportedFeatures map[string]any    `json:"supported_features,omitempty"`
	DefaultModels     []ModelSpec       `json:"default_models,omitempty"`

	// SourcePath is the directory the manifest was loaded from.
	SourcePath string `json:"source_path,omitempty"`
}

// MakeProviderID builds the canonical "<type>.<name>" identifier.
func MakeProviderID(t ProviderType, dirName string) string {
	return fmt.Sprintf("%s.%s", t, dirName)
}

// SplitProviderID splits a canonical id into its type prefix and name.
// Returns an error when the id does not match "<type>.<name>".
func SplitProviderID(id string) (ProviderType, string, error) {
	prefix, name, ok := strings.Cut(id, ".")
	if !ok || name == "" {
		return "", "", fmt.Errorf("provider id %q is not of the form <type>.<name>", id)
	}
	if !ValidProviderType(prefix) {
		return "", "", fmt.Errorf("provider id %q has unknown type prefix %q", id, prefix)
	}
	return ProviderType(prefix), name, nil
}

// RequiredCredentialKeys returns the keys of all required auth fields,
// in manifest order.
func (d *Descriptor) RequiredCredentialKeys() []string {
	keys := make([]string, 0, len(d.AuthRequirements))
	for _, req := range d.AuthRequirements {
		if req.Required {
			keys = append(keys, req.Key)
		}
	}
	return keys
}
