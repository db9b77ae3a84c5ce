package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/castellan-sh/castellan/internal/providers/domain"
)

// DefaultDescriptor builds the minimal descriptor synthesized for a
// directory that carries an implementation marker but no manifest: one
// required secret credential field and a generic identity derived from the
// directory name.
func DefaultDescriptor(typ domain.ProviderType, dirName, sourcePath string) *domain.Descriptor {
	return &domain.Descriptor{
		ID:          domain.MakeProviderID(typ, dirName),
		Name:        titleCase(dirName),
		Description: fmt.Sprintf("%s provider", titleCase(dirName)),
		Version:     "1.0.0",
		Type:        typ,
		AuthRequirements: []domain.AuthRequirement{
			{Key: "api_key", Name: "API Key", Required: true, Secret: true},
		},
		SupportedFeatures: map[string]any{"chat": true, "completion": true},
		SourcePath:        sourcePath,
	}
}

// WriteDefaultManifest persists a synthesized descriptor back to disk so
// subsequent scans find a manifest directly. This is the self-healing step:
// deliberate, logged by the caller, and opt-out-able via configuration.
func WriteDefaultManifest(path string, desc *domain.Descriptor) error {
	payload := map[string]any{
		"id":                 desc.ID,
		"name":               desc.Name,
		"description":        desc.Description,
		"version":            desc.Version,
		"provider_type":      string(desc.Type),
		"auth_requirements":  desc.AuthRequirements,
		"supported_features": desc.SupportedFeatures,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default manifest: %w", err)
	}
	return nil
}

// titleCase upper-cases the first letter of each dash/underscore-separated
// word: "ai_studio" -> "Ai Studio".
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
