package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan-sh/castellan/internal/providers/discovery"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/manifest"
)

// manifestData mirrors the on-disk manifest document.
type manifestData struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Version          string           `json:"version"`
	ProviderType     string           `json:"provider_type"`
	AuthRequirements []map[string]any `json:"auth_requirements,omitempty"`
}

// ManifestOption configures one provider directory in a test tree.
type ManifestOption func(*manifestData)

// WithVersion overrides the manifest version.
func WithVersion(version string) ManifestOption {
	return func(m *manifestData) { m.Version = version }
}

// WithAuthRequirement appends an auth requirement field.
func WithAuthRequirement(key, name string, required, secret bool) ManifestOption {
	return func(m *manifestData) {
		m.AuthRequirements = append(m.AuthRequirements, map[string]any{
			"key":      key,
			"name":     name,
			"required": required,
			"secret":   secret,
		})
	}
}

// TreeBuilder lays provider plugin directories out under a temporary root
// pair, one directory per provider, for discovery tests.
type TreeBuilder struct {
	t     *testing.T
	roots discovery.Roots
}

// NewProviderTree creates empty cloud and local roots under t.TempDir().
func NewProviderTree(t *testing.T) *TreeBuilder {
	t.Helper()
	base := t.TempDir()
	roots := discovery.Roots{
		Cloud: filepath.Join(base, "cloud"),
		Local: filepath.Join(base, "local"),
	}
	require.NoError(t, os.MkdirAll(roots.Cloud, 0o755))
	require.NoError(t, os.MkdirAll(roots.Local, 0o755))
	return &TreeBuilder{t: t, roots: roots}
}

// Roots returns the scanner roots for the built tree.
func (b *TreeBuilder) Roots() discovery.Roots { return b.roots }

// WithProvider writes a valid manifest directory named after the provider.
// The id becomes "<type>.<name>".
func (b *TreeBuilder) WithProvider(typ domain.ProviderType, name string, opts ...ManifestOption) *TreeBuilder {
	b.t.Helper()
	data := manifestData{
		ID:           string(typ) + "." + name,
		Name:         name,
		Description:  name + " provider",
		Version:      "1.0.0",
		ProviderType: string(typ),
	}
	for _, opt := range opts {
		opt(&data)
	}

	dir := filepath.Join(b.rootFor(typ), name)
	require.NoError(b.t, os.MkdirAll(dir, 0o755))
	raw, err := json.MarshalIndent(data, "", "  ")
	require.NoError(b.t, err)
	require.NoError(b.t, os.WriteFile(filepath.Join(dir, manifest.Filename), raw, 0o644))
	return b
}

// WithBrokenProvider writes a directory whose manifest is not valid JSON.
func (b *TreeBuilder) WithBrokenProvider(typ domain.ProviderType, name string) *TreeBuilder {
	b.t.Helper()
	dir := filepath.Join(b.rootFor(typ), name)
	require.NoError(b.t, os.MkdirAll(dir, 0o755))
	require.NoError(b.t, os.WriteFile(filepath.Join(dir, manifest.Filename), []byte(`{broken`), 0o644))
	return b
}

// WithMarkerOnlyProvider writes a directory carrying only an implementation
// marker, no manifest.
func (b *TreeBuilder) WithMarkerOnlyProvider(typ domain.ProviderType, name string) *TreeBuilder {
	b.t.Helper()
	dir := filepath.Join(b.rootFor(typ), name)
	require.NoError(b.t, os.MkdirAll(dir, 0o755))
	require.NoError(b.t, os.WriteFile(filepath.Join(dir, manifest.MarkerFilename), []byte(`{}`), 0o644))
	return b
}

func (b *TreeBuilder) rootFor(typ domain.ProviderType) string {
	if typ == domain.ProviderTypeLocal {
		return b.roots.Local
	}
	return b.roots.Cloud
}
