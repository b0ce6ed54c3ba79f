// Package config provides configuration types and defaults for zcore.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/store"
	"github.com/zimmed/zimmed-core/internal/tracing"
)

// DefaultMaxDispatchDepth bounds nested listener dispatch on one controller.
const DefaultMaxDispatchDepth = 16

// Config holds all configuration options for zcore.
type Config struct {
	// DataDir holds zcore.db. Empty resolves to ./.zcore.
	DataDir string          `mapstructure:"data_dir"`
	Log     LogConfig       `mapstructure:"log"`
	Engine  EngineConfig    `mapstructure:"engine"`
	Cache   CacheConfig     `mapstructure:"cache"`
	Store   StoreConfig     `mapstructure:"store"`
	Tracing tracing.Config  `mapstructure:"tracing"`
	Watch   WatchConfig     `mapstructure:"watch"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"` // debug, info, warn or error
	// Categories limits output to the named categories. Empty logs all.
	Categories []string `mapstructure:"categories"`
}

// EngineConfig holds data binding engine limits.
type EngineConfig struct {
	MaxDispatchDepth int `mapstructure:"max_dispatch_depth"`
}

// CacheConfig holds controller cache timings.
type CacheConfig struct {
	Expiration      time.Duration `mapstructure:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Disabled        bool          `mapstructure:"disabled"` // load every controller from the database
}

// StoreConfig holds storage collaborator options.
type StoreConfig struct {
	IDStrategy string `mapstructure:"id_strategy"` // "uuid" (default) or "ulid"
}

// WatchConfig controls the database watcher and autosave batching.
type WatchConfig struct {
	Debounce         time.Duration `mapstructure:"debounce"`
	AutosaveDebounce time.Duration `mapstructure:"autosave_debounce"`
}

// DefaultConfigDir returns ~/.config/zcore, or "" when the home directory
// is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "zcore")
}

// DefaultTracesFilePath returns the traces file under the config dir.
func DefaultTracesFilePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// ValidateLog checks the log level and categories.
func ValidateLog(cfg LogConfig) error {
	if _, err := log.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := log.ParseCategories(cfg.Categories); err != nil {
		return fmt.Errorf("log.categories: %w", err)
	}
	return nil
}

// ValidateEngine checks engine limits.
func ValidateEngine(cfg EngineConfig) error {
	if cfg.MaxDispatchDepth < 1 {
		return fmt.Errorf("engine.max_dispatch_depth must be at least 1 (got %d)", cfg.MaxDispatchDepth)
	}
	return nil
}

// ValidateCache checks cache timings. Zero durations fall back to the cache
// defaults.
func ValidateCache(cfg CacheConfig) error {
	if cfg.Expiration < 0 {
		return fmt.Errorf("cache.expiration must not be negative (got %s)", cfg.Expiration)
	}
	if cfg.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative (got %s)", cfg.CleanupInterval)
	}
	return nil
}

// ValidateStore checks the id strategy.
func ValidateStore(cfg StoreConfig) error {
	if _, err := store.NewIDGenerator(cfg.IDStrategy); err != nil {
		return fmt.Errorf("store.id_strategy: %w", err)
	}
	return nil
}

// ValidateWatch checks watcher timings.
func ValidateWatch(cfg WatchConfig) error {
	if cfg.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative (got %s)", cfg.Debounce)
	}
	if cfg.AutosaveDebounce < 0 {
		return fmt.Errorf("watch.autosave_debounce must not be negative (got %s)", cfg.AutosaveDebounce)
	}
	return nil
}

// Validate runs every section validator and returns the first failure.
func (c Config) Validate() error {
	validators := []func() error{
		func() error { return ValidateLog(c.Log) },
		func() error { return ValidateEngine(c.Engine) },
		func() error { return ValidateCache(c.Cache) },
		func() error { return ValidateStore(c.Store) },
		c.Tracing.Validate,
		func() error { return ValidateWatch(c.Watch) },
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			MaxDispatchDepth: DefaultMaxDispatchDepth,
		},
		Cache: CacheConfig{
			Expiration:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Store: StoreConfig{
			IDStrategy: store.IDStrategyUUID,
		},
		Tracing: tr,
		Watch: WatchConfig{
			Debounce:         100 * time.Millisecond,
			AutosaveDebounce: 250 * time.Millisecond,
		},
		Flags: map[string]bool{},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# zcore configuration

# Directory holding zcore.db (default: ./.zcore)
# data_dir: /path/to/data

# File logging (also enabled by ZCORE_DEBUG=1)
log:
  enabled: false
  # path: zcore.log
  level: info             # debug, info, warn or error
  # categories: [store, db] # model, listener, store, db, config, watcher, cache, feed

# Data binding engine
engine:
  max_dispatch_depth: 16  # nested listener writes allowed on one controller

# Live controller cache
cache:
  expiration: 5m
  cleanup_interval: 10m
  # disabled: true        # always load controllers from the database

# Storage
store:
  id_strategy: uuid       # uuid (default) or ulid

# Database watcher (zcore watch) and demo autosave batching
watch:
  debounce: 100ms
  autosave_debounce: 250ms

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/zcore/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Feature flags
# flags:
#   autosave: true
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. The file is written atomically.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	if err := writeAtomic(configPath, []byte(DefaultConfigTemplate())); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return err
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
