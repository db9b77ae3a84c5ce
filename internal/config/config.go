// Package config provides configuration types and defaults for castellan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castellan-sh/castellan/internal/log"
	"github.com/castellan-sh/castellan/internal/tracing"
)

// ProvidersConfig holds the provider discovery roots and scan behavior.
type ProvidersConfig struct {
	// CloudDir is the root directory scanned for cloud provider manifests.
	CloudDir string `mapstructure:"cloud_dir"`

	// LocalDir is the root directory scanned for local provider manifests.
	LocalDir string `mapstructure:"local_dir"`

	// SelfHeal writes a synthesized default manifest back to disk when a
	// provider directory carries a marker file but no manifest.
	SelfHeal bool `mapstructure:"self_heal"`
}

// DatabaseConfig holds the credential store location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds log output configuration.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"` // "debug", "info", "warn", or "error"
}

// Config holds all configuration options for castellan.
type Config struct {
	Providers           ProvidersConfig `mapstructure:"providers"`
	Database            DatabaseConfig  `mapstructure:"database"`
	AutoRefresh         bool            `mapstructure:"auto_refresh"`
	AutoRefreshDebounce int             `mapstructure:"auto_refresh_debounce"` // milliseconds
	Log                 LogConfig       `mapstructure:"log"`
	Tracing             tracing.Config  `mapstructure:"tracing"`
}

// DefaultBaseDir returns the directory holding castellan's config file,
// database, logs, and default provider roots.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".castellan")
	}
	return filepath.Join(home, ".config", "castellan")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultBaseDir(), "config.yaml")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	base := DefaultBaseDir()
	return Config{
		Providers: ProvidersConfig{
			CloudDir: filepath.Join(base, "providers", "cloud"),
			LocalDir: filepath.Join(base, "providers", "local"),
			SelfHeal: true,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(base, "castellan.db"),
		},
		AutoRefresh:         true,
		AutoRefreshDebounce: 1000,
		Log: LogConfig{
			Path:  filepath.Join(base, "logs", "castellan.log"),
			Level: "info",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// CloudRoot returns the cloud provider root with ~ expanded.
func (c Config) CloudRoot() string {
	return ExpandPath(c.Providers.CloudDir)
}

// LocalRoot returns the local provider root with ~ expanded.
func (c Config) LocalRoot() string {
	return ExpandPath(c.Providers.LocalDir)
}

// DatabasePath returns the credential store path with ~ expanded.
func (c Config) DatabasePath() string {
	return ExpandPath(c.Database.Path)
}

// LogPath returns the log file path with ~ expanded.
func (c Config) LogPath() string {
	return ExpandPath(c.Log.Path)
}

// DebounceDuration returns the auto-refresh debounce window.
func (c Config) DebounceDuration() time.Duration {
	return time.Duration(c.AutoRefreshDebounce) * time.Millisecond
}

// LogLevel returns the configured minimum log level, defaulting to info
// when the level string is empty or unrecognized.
func (c Config) LogLevel() log.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// TracingFilePath returns the trace output path, deriving one next to the
// config file when the exporter is "file" and no path is set.
func (c Config) TracingFilePath() string {
	if c.Tracing.FilePath != "" {
		return ExpandPath(c.Tracing.FilePath)
	}
	return filepath.Join(DefaultBaseDir(), "traces", "traces.jsonl")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Validate checks the full configuration for errors.
func (c Config) Validate() error {
	if c.AutoRefreshDebounce < 0 {
		return fmt.Errorf("auto_refresh_debounce must be >= 0, got %d", c.AutoRefreshDebounce)
	}
	if err := ValidateLog(c.Log); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateLog checks log configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateLog(logCfg LogConfig) error {
	if logCfg.Level != "" {
		switch strings.ToLower(logCfg.Level) {
		case "debug", "info", "warn", "error":
			// Valid
		default:
			return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", logCfg.Level)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tr tracing.Config) error {
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	if tr.Exporter != "" {
		switch tr.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
		}
	}

	if tr.Enabled && tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Castellan Configuration

# Provider discovery roots. Each subdirectory holding a provider.json
# manifest (or a provider marker file) is treated as one provider.
providers:
  cloud_dir: ~/.config/castellan/providers/cloud
  local_dir: ~/.config/castellan/providers/local
  # Write a synthesized default manifest into provider directories that
  # carry a marker file but no manifest. Set to false to keep scans
  # strictly read-only.
  self_heal: true

# Credential store (SQLite). Values are encrypted at rest.
database:
  path: ~/.config/castellan/castellan.db

# Refresh the registry automatically when provider directories change
auto_refresh: true
# Debounce window for filesystem events, in milliseconds
auto_refresh_debounce: 1000

# Log output
log:
  path: ~/.config/castellan/logs/castellan.log
  level: info   # debug, info, warn, or error

# Distributed tracing (disabled by default)
# tracing:
#   enabled: true
#   exporter: file            # none, file, stdout, or otlp
#   file_path: ~/.config/castellan/traces/traces.jsonl
#   sample_rate: 1.0
#
# Example: send traces to a collector via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: localhost:4317
#   sample_rate: 0.1
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
