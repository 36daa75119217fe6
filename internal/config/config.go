package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable that overrides a config field.
const EnvPrefix = "RRSYNC_"

// Config represents the main configuration for rrsync.
type Config struct {
	BaseDir string `toml:"base_dir" env:"HOME"`
	LogDir  string `toml:"log_dir" env:"LOG_DIR"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`

	// Listen is the address the HTTP front binds to.
	Listen string `toml:"listen" env:"LISTEN"`
	// AppOrigin is the origin static assets are served from.
	AppOrigin string `toml:"app_origin" env:"APP_ORIGIN"`
	// APIOrigin is the origin of the Data API.
	APIOrigin string `toml:"api_origin" env:"API_ORIGIN"`
	// CORSOrigins lists the browser origins allowed to call the HTTP front.
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS"`
	// Bypass lists URL substrings of dev tooling traffic that is never cached.
	Bypass []string `toml:"bypass" env:"BYPASS"`

	Cache    CacheConfig    `toml:"cache" envPrefix:"CACHE_"`
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Replay   ReplayConfig   `toml:"replay" envPrefix:"REPLAY_"`
}

// CacheConfig represents configuration for the asset cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type string `toml:"type" env:"TYPE"`           // "bolt" or "memory"
	Path string `toml:"path,omitempty" env:"PATH"` // only used for type=bolt

	// Prefix namespaces this app's cache generations; Version selects the live one.
	Prefix   string   `toml:"prefix" env:"PREFIX"`
	Version  string   `toml:"version" env:"VERSION"`
	Manifest []string `toml:"manifest" env:"MANIFEST"`
}

// Name returns the cache generation tag, e.g. "restaurant-reviews-v6".
func (c CacheConfig) Name() string {
	return c.Prefix + "-" + c.Version
}

// DatabaseConfig represents configuration for the local store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" env:"TYPE"`                   // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty" env:"DATA_DIR"` // only used for type=sqlite
}

// ReplayConfig controls the pending mutation replayer.
type ReplayConfig struct {
	Interval    time.Duration `toml:"interval" env:"INTERVAL"`
	Concurrency int           `toml:"concurrency" env:"CONCURRENCY"`
}

// DefaultManifest is the app shell precached on install.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/restaurant.html",
	"/css/styles.css",
	"/js/main.js",
	"/js/restaurant_info.js",
	"/js/dbhelper.js",
	"/manifest.json",
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		LogLevel:    "info",
		Listen:      "127.0.0.1:8000",
		AppOrigin:   "http://localhost:8000",
		APIOrigin:   "http://localhost:1337",
		CORSOrigins: []string{"http://localhost:8000"},
		Bypass:      []string{"browser-sync", "livereload", "sockjs-node"},
		Cache: CacheConfig{
			Type:     "bolt",
			Path:     filepath.Join(baseDir, "cache", "assets.db"),
			Prefix:   "restaurant-reviews",
			Version:  "v1",
			Manifest: append([]string(nil), DefaultManifest...),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Replay: ReplayConfig{
			Interval:    30 * time.Second,
			Concurrency: 4,
		},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.AppOrigin == "" {
		return fmt.Errorf("app_origin is required")
	}
	if c.APIOrigin == "" {
		return fmt.Errorf("api_origin is required")
	}
	if c.Cache.Prefix == "" || c.Cache.Version == "" {
		return fmt.Errorf("cache prefix and version are required")
	}
	if c.Replay.Interval <= 0 {
		return fmt.Errorf("replay interval must be positive, got %s", c.Replay.Interval)
	}
	if c.Replay.Concurrency <= 0 {
		return fmt.Errorf("replay concurrency must be positive, got %d", c.Replay.Concurrency)
	}
	return nil
}

// ApplyEnv overrides fields from RRSYNC_* environment variables.
// Fields whose variable is unset keep their value.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and applies
// environment overrides.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
