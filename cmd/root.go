// Package cmd implements the castellan command line interface.
package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castellan-sh/castellan/internal/app"
	"github.com/castellan-sh/castellan/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "castellan",
	Short: "Provider discovery and credential management for AI model providers",
	Long: `Castellan discovers AI model provider plugins from a directory tree,
keeps an in-memory registry reconciled against an encrypted SQLite
credential store, and exposes provider configuration over this CLI.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/castellan/config.yaml)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("providers.cloud_dir", defaults.Providers.CloudDir)
	viper.SetDefault("providers.local_dir", defaults.Providers.LocalDir)
	viper.SetDefault("providers.self_heal", defaults.Providers.SelfHeal)
	viper.SetDefault("database.path", defaults.Database.Path)
	viper.SetDefault("auto_refresh", defaults.AutoRefresh)
	viper.SetDefault("auto_refresh_debounce", defaults.AutoRefreshDebounce)
	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .castellan/config.yaml (current directory)
		// 2. ~/.config/castellan/config.yaml (user config)
		if _, err := os.Stat(".castellan/config.yaml"); err == nil {
			viper.SetConfigFile(".castellan/config.yaml")
		} else {
			viper.AddConfigPath(filepath.Dir(config.DefaultConfigPath()))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default user config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			defaultPath := config.DefaultConfigPath()
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configFilePath returns the config file in use, for commands that write
// settings back.
func configFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return config.DefaultConfigPath()
}

// withApp builds the application context, runs the initial discovery
// pass, invokes fn, and tears everything down. One-shot commands never
// start the filesystem watcher.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	runCfg := cfg
	runCfg.AutoRefresh = false

	a, err := app.New(runCfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// printJSON writes v as indented JSON, the output contract for every
// list-style command.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
