// Package config loads the terminal's configuration.
//
// Loading order (later overrides earlier):
//  1. Defaults (hardcoded)
//  2. Config file: ./tillfront.yaml, then $HOME/.config/tillfront/config.yaml
//  3. Environment variables: TILLFRONT_*
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete terminal configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Cache   CacheConfig   `yaml:"cache"`
	Refresh RefreshConfig `yaml:"refresh"`
	Shift   ShiftConfig   `yaml:"shift"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig points the terminal at its POS backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig tunes the local resource cache.
type CacheConfig struct {
	// Dir is where on-disk cache entries live. Empty means
	// $HOME/.tillfront/cache.
	Dir string `yaml:"dir"`
	// MaxAge bounds how old a cached entry may be before it is refetched.
	MaxAge time.Duration `yaml:"max_age"`
	// FormatTag names the cache record format; bump it when cached record
	// shapes change so old entries are dropped.
	FormatTag string `yaml:"format_tag"`
	// Codec picks the cache serialization: "json" (default, hand-diffable
	// files) or "msgpack" (smaller entries).
	Codec string `yaml:"codec"`
	// Redis, when set, backs the cache with Redis instead of local files
	// (multi-terminal setups sharing one cache).
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig connects the cache to a Redis instance.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// RefreshConfig tunes the background refresh loop.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ShiftConfig tunes the shift gate.
type ShiftConfig struct {
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default file names searched in the working directory.
var defaultConfigFiles = []string{
	"tillfront.yaml",
	"tillfront.yml",
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Dir:       filepath.Join(homeDir, ".tillfront", "cache"),
			MaxAge:    5 * time.Hour,
			FormatTag: "v1",
			Codec:     "json",
		},
		Refresh: RefreshConfig{Interval: 30 * time.Second},
		Shift:   ShiftConfig{CheckTimeout: 3 * time.Second},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads configuration from path, applying defaults for absent fields and
// TILLFRONT_* environment overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault searches the default locations and falls back to defaults when
// no file exists. TILLFRONT_CONFIG overrides the search with an explicit path.
func LoadDefault() (*Config, error) {
	if path := os.Getenv("TILLFRONT_CONFIG"); path != "" {
		return Load(path)
	}
	for _, name := range defaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return Load(name)
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, ".config", "tillfront", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := DefaultConfig()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers TILLFRONT_* variables over cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TILLFRONT_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("TILLFRONT_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("TILLFRONT_REDIS_ADDR"); v != "" {
		if cfg.Cache.Redis == nil {
			cfg.Cache.Redis = &RedisConfig{}
		}
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("TILLFRONT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TILLFRONT_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Interval = d
		}
	}
}

// Validate rejects configurations the terminal cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("config: backend.url is required")
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("config: cache.max_age must not be negative")
	}
	if c.Cache.Redis != nil && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required when redis is set")
	}
	switch c.Cache.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("config: cache.codec must be json or msgpack")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error")
	}
	return nil
}
