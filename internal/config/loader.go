package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults.
type Config struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	ManifestPath    string   `json:"manifest" yaml:"manifest" toml:"manifest"`
	MemoryBudgetMB  int      `json:"memory_budget_mb" yaml:"memory_budget_mb" toml:"memory_budget_mb"`
	MemoryMarginMB  int      `json:"memory_margin_mb" yaml:"memory_margin_mb" toml:"memory_margin_mb"`
	Quorum          int      `json:"quorum" yaml:"quorum" toml:"quorum"`
	ModelTimeoutSec int      `json:"model_timeout_sec" yaml:"model_timeout_sec" toml:"model_timeout_sec"`
	AcquireWaitSec  int      `json:"acquire_wait_sec" yaml:"acquire_wait_sec" toml:"acquire_wait_sec"`
	CacheEntries    int      `json:"cache_entries" yaml:"cache_entries" toml:"cache_entries"`
	MinImageDim     int      `json:"min_image_dim" yaml:"min_image_dim" toml:"min_image_dim"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled     bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults applied by Normalize when fields are unset.
const (
	DefaultAddr            = ":8080"
	DefaultModelTimeoutSec = 60
	DefaultAcquireWaitSec  = 30
	DefaultCacheEntries    = 64
	DefaultMinImageDim     = 64
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize fills unset fields with defaults. Quorum stays zero here because
// its default depends on registry size; the engine resolves it at startup.
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelTimeoutSec <= 0 {
		c.ModelTimeoutSec = DefaultModelTimeoutSec
	}
	if c.AcquireWaitSec <= 0 {
		c.AcquireWaitSec = DefaultAcquireWaitSec
	}
	if c.CacheEntries <= 0 {
		c.CacheEntries = DefaultCacheEntries
	}
	if c.MinImageDim <= 0 {
		c.MinImageDim = DefaultMinImageDim
	}
}

// ModelTimeout returns the per-model timeout as a duration.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

// AcquireWait returns the maximum time a request waits for the loader slot.
func (c Config) AcquireWait() time.Duration {
	return time.Duration(c.AcquireWaitSec) * time.Second
}
