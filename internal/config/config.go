// Package config provides configuration management.
package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"freight-pricing/internal/errors"
	"freight-pricing/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Pricing contains formula evaluation settings
	Pricing PricingConfig `json:"pricing"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server"`

	// Cache contains quote cache settings
	Cache CacheConfig `json:"cache"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// PricingConfig contains pricing-related settings
type PricingConfig struct {
	// DefinitionsDir holds the *.hcl formula definition files
	DefinitionsDir string `json:"definitions_dir"`

	// Currency is the currency code quotes are labelled with
	Currency string `json:"currency"`

	// DistanceAliases are variable names bound to the shipper's distance
	DistanceAliases []string `json:"distance_aliases"`

	// TonnageAliases are variable names bound to the shipper's tonnage
	TonnageAliases []string `json:"tonnage_aliases"`

	// LowSpecialRate derives the lowSpecial bucket from low, in both the
	// formula and the fallback paths
	LowSpecialRate float64 `json:"low_special_rate"`

	// Fallback configures the degraded-mode linear formula
	Fallback FallbackConfig `json:"fallback"`
}

// FallbackConfig mirrors pricing.FallbackPolicy in plain numbers
type FallbackConfig struct {
	BasePrice      float64 `json:"base_price"`
	PerKilometer   float64 `json:"per_kilometer"`
	PerTon         float64 `json:"per_ton"`
	HighMultiplier float64 `json:"high_multiplier"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr"`

	// ReadTimeoutSeconds bounds reading a request
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`

	// WriteTimeoutSeconds bounds writing a response
	WriteTimeoutSeconds int `json:"write_timeout_seconds"`

	// BatchConcurrency caps concurrent quotes in one batch request
	BatchConcurrency int `json:"batch_concurrency"`
}

// CacheConfig contains cache-related settings
type CacheConfig struct {
	// Backend is "memory", "redis" or "none"
	Backend string `json:"backend"`

	// RedisAddr is the redis address when Backend is "redis"
	RedisAddr string `json:"redis_addr"`

	// TTLSeconds is how long a quote stays cached
	TTLSeconds int `json:"ttl_seconds"`

	// SweepIntervalSeconds is how often the server drops expired in-memory quotes
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Version: "1.0",
		Pricing: PricingConfig{
			DefinitionsDir:  filepath.Join(homeDir, ".freight-pricing", "formulas"),
			Currency:        "IDR",
			DistanceAliases: []string{"jarak", "distance"},
			TonnageAliases:  []string{"tonase", "tonnage"},
			LowSpecialRate:  0.8,
			Fallback: FallbackConfig{
				BasePrice:      800000,
				PerKilometer:   1000,
				PerTon:         50000,
				HighMultiplier: 1.25,
			},
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
			BatchConcurrency:    8,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			RedisAddr:  "localhost:6379",
			TTLSeconds: 600, // 10 minutes

			SweepIntervalSeconds: 60,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Config("failed to read config", err).WithContext("path", path)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Config("failed to decode config", err).WithContext("path", path)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return errors.Newf(errors.TypeConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Server.BatchConcurrency < 1 {
		return errors.New(errors.TypeConfig, "server.batch_concurrency must be at least 1")
	}
	if len(c.Pricing.DistanceAliases) == 0 || len(c.Pricing.TonnageAliases) == 0 {
		return errors.New(errors.TypeConfig, "pricing distance and tonnage aliases must not be empty")
	}
	if r := c.Pricing.LowSpecialRate; !(r >= 0 && r <= 1) {
		return errors.Newf(errors.TypeConfig, "pricing.low_special_rate must be within [0, 1], got %v", r)
	}
	fb := c.Pricing.Fallback
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"base_price", fb.BasePrice},
		{"per_kilometer", fb.PerKilometer},
		{"per_ton", fb.PerTon},
		{"high_multiplier", fb.HighMultiplier},
	} {
		if !(f.value >= 0) || math.IsInf(f.value, 0) {
			return errors.Newf(errors.TypeConfig, "pricing.fallback.%s must be a non-negative number, got %v", f.name, f.value)
		}
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
