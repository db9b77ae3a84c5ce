// Package discovery walks the provider plugin roots and builds descriptor
// snapshots.
//
// The central contract is failure isolation: a bad plugin directory
// (broken JSON, schema violations, permission errors) is recorded and
// skipped, and the scan continues. A single bad plugin must never hide
// the others.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/providers/domain"
	"github.com/castellan-sh/castellan/internal/providers/manifest"
)

// maxDepth bounds recursion below each type root. Nested provider groupings
// are supported one extra level; anything deeper is a mistake or a cycle.
const maxDepth = 3

// Roots holds the two plugin directory roots.
type Roots struct {
	Cloud string
	Local string
}

// ScanError records one recovered per-directory failure with full context.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) String() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result is one completed discovery pass. Descriptors is keyed by canonical
// provider id; two passes over an unchanged tree produce identical maps,
// only the error order may differ.
type Result struct {
	PassID      string
	Descriptors map[string]*domain.Descriptor
	Errors      []ScanError
	StartedAt   time.Time
	Duration    time.Duration
}

// Scanner discovers provider plugins under the configured roots.
type Scanner struct {
	roots    Roots
	selfHeal bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithoutSelfHeal disables writing synthesized default manifests back to
// disk. Directories carrying only an implementation marker are then still
// discovered, just not persisted.
func WithoutSelfHeal() Option {
	return func(s *Scanner) { s.selfHeal = false }
}

// New creates a scanner for the given roots. Self-healing manifest
// synthesis is on by default.
func New(roots Roots, opts ...Option) *Scanner {
	s := &Scanner{roots: roots, selfHeal: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan performs one full discovery pass. It never returns an error: every
// failure is recovered into the result's error list. A missing root is
// recorded and skipped, matching the empty-tree case.
func (s *Scanner) Scan(ctx context.Context) *Result {
	result := &Result{
		PassID:      uuid.NewString(),
		Descriptors: make(map[string]*domain.Descriptor),
		StartedAt:   time.Now(),
	}

	log.Info(log.CatDiscovery, "discovery pass started", "pass_id", result.PassID)

	for _, root := range []struct {
		path string
		typ  domain.ProviderType
	}{
		{s.roots.Cloud, domain.ProviderTypeCloud},
		{s.roots.Local, domain.ProviderTypeLocal},
	} {
		if root.path == "" {
			continue
		}
		if _, err := os.Stat(root.path); err != nil {
			if os.IsNotExist(err) {
				log.Warn(log.CatDiscovery, "provider root missing", "path", root.path)
				continue
			}
			result.Errors = append(result.Errors, ScanError{Path: root.path, Err: err})
			continue
		}
		visited := make(map[string]bool)
		s.scanDirectory(ctx, root.path, root.typ, 0, visited, result)
	}

	result.Duration = time.Since(result.StartedAt)
	log.Info(log.CatDiscovery, "discovery pass finished",
		"pass_id", result.PassID,
		"providers", len(result.Descriptors),
		"errors", len(result.Errors),
		"elapsed", result.Duration)

	return result
}

// scanDirectory examines every subdirectory of dir as a provider candidate.
// visited tracks canonical paths to survive symlink cycles.
func (s *Scanner) scanDirectory(ctx context.Context, dir string, typ domain.ProviderType, depth int, visited map[string]bool, result *Result) {
	if depth >= maxDepth {
		log.Warn(log.CatDiscovery, "recursion depth cap reached", "path", dir)
		return
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		result.Errors = append(result.Errors, ScanError{Path: dir, Err: err})
		return
	}
	if visited[canonical] {
		log.Warn(log.CatDiscovery, "directory cycle detected, skipping", "path", dir)
		return
	}
	visited[canonical] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Errors = append(result.Errors, ScanError{Path: dir, Err: err})
		return
	}

	// Deterministic traversal: registry content must not depend on
	// directory enumeration order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			// Follow directory symlinks; the visited set guards cycles.
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
		}
		s.examineCandidate(ctx, path, entry.Name(), typ, depth, visited, result)
	}
}

// examineCandidate applies the candidate policy to one subdirectory:
// manifest present → load it; marker only → synthesize a default manifest;
// neither → recurse one level deeper.
func (s *Scanner) examineCandidate(ctx context.Context, dir, name string, typ domain.ProviderType, depth int, visited map[string]bool, result *Result) {
	manifestPath := filepath.Join(dir, manifest.Filename)
	markerPath := filepath.Join(dir, manifest.MarkerFilename)

	switch {
	case fileExists(manifestPath):
		s.loadInto(manifestPath, typ, result)

	case fileExists(markerPath):
		log.Info(log.CatDiscovery, "implementation marker without manifest, synthesizing default",
			"path", dir, "self_heal", s.selfHeal)
		desc := DefaultDescriptor(typ, name, dir)
		if s.selfHeal {
			if err := WriteDefaultManifest(manifestPath, desc); err != nil {
				// Synthesis failure is recoverable: the descriptor is
				// still registered for this pass.
				result.Errors = append(result.Errors, ScanError{Path: manifestPath, Err: err})
			}
		}
		s.register(desc, result)

	default:
		s.scanDirectory(ctx, dir, typ, depth+1, visited, result)
	}
}

func (s *Scanner) loadInto(manifestPath string, typ domain.ProviderType, result *Result) {
	desc, err := manifest.Load(manifestPath)
	if err != nil {
		log.ErrorErr(log.CatDiscovery, "manifest rejected", err, "path", manifestPath)
		result.Errors = append(result.Errors, ScanError{Path: manifestPath, Err: err})
		return
	}
	if desc.Type != typ {
		log.Warn(log.CatDiscovery, "manifest type differs from root",
			"id", desc.ID, "manifest_type", desc.Type, "root_type", typ)
	}
	s.register(desc, result)
}

func (s *Scanner) register(desc *domain.Descriptor, result *Result) {
	if prev, ok := result.Descriptors[desc.ID]; ok {
		// Last-write-wins on id collisions, by contract.
		log.Warn(log.CatDiscovery, "duplicate provider id, overwriting",
			"id", desc.ID, "previous", prev.SourcePath, "current", desc.SourcePath)
	}
	result.Descriptors[desc.ID] = desc
	log.Debug(log.CatDiscovery, "provider discovered", "id", desc.ID, "path", desc.SourcePath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
