// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the verial-resilience configuration from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable consulted when no path is given.
const EnvConfigFile = "VERIAL_RESILIENCE_CONFIG"

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// Config is the complete application configuration.
type Config struct {
	Storage      Storage      `json:"storage" yaml:"storage"`
	Cache        Cache        `json:"cache" yaml:"cache"`
	Certificates Certificates `json:"certificates" yaml:"certificates"`
	SSL          SSL          `json:"ssl" yaml:"ssl"`
	Timeouts     Timeouts     `json:"timeouts" yaml:"timeouts"`
	API          API          `json:"api" yaml:"api"`
	Log          Log          `json:"log" yaml:"log"`
}

// Storage selects the key-value and config store backends.
type Storage struct {
	// Backend: Key-value store for cached responses (memory, redis, postgres, dynamodb)
	Backend string `json:"backend" yaml:"backend" validate:"storage_backend"`
	// ConfigBackend: Store for named records (memory, file, redis, postgres)
	ConfigBackend string `json:"config_backend" yaml:"config_backend" validate:"config_backend"`
	// ConfigFile: Document path for the file config backend (.json, .yaml, .yml)
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	// RedisAddr: Address or redis:// URL
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// PostgresDSN: lib/pq connection string
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	// DynamoDBTable: Table holding cache entries
	DynamoDBTable string `json:"dynamodb_table,omitempty" yaml:"dynamodb_table,omitempty"`
	// AWSRegion: Region override for the DynamoDB client
	AWSRegion string `json:"aws_region,omitempty" yaml:"aws_region,omitempty"`
}

// Cache configures the HTTP response cache. TTLs are seconds.
type Cache struct {
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	DefaultTTL int            `json:"default_ttl" yaml:"default_ttl" validate:"gte=0"`
	GroupTTL   map[string]int `json:"group_ttl,omitempty" yaml:"group_ttl,omitempty" validate:"dive,keys,oneof=product order config global,endkeys,gt=0"`
	Prefix     string         `json:"prefix" yaml:"prefix"`
}

// Certificates configures the bundle cache and rotation.
type Certificates struct {
	// BaseDir: Directory the application relative CA bundle candidates live under
	BaseDir string `json:"base_dir" yaml:"base_dir"`
	// CacheDir: Disk tier of the certificate cache
	CacheDir string `json:"cache_dir" yaml:"cache_dir" validate:"required"`
	// CacheTTLHours: Freshness of cached bundles
	CacheTTLHours int `json:"cache_ttl_hours" yaml:"cache_ttl_hours" validate:"gte=0"`
	// BundlePath: Managed CA bundle
	BundlePath string `json:"bundle_path" yaml:"bundle_path" validate:"required"`
	// BackupDir: Backup directory, "<bundle dir>/backups" when empty
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
	// RotationIntervalDays: Maximum bundle age
	RotationIntervalDays int `json:"rotation_interval_days" yaml:"rotation_interval_days" validate:"gte=0"`
	// ExpirationThresholdDays: Root expiry window that forces rotation
	ExpirationThresholdDays int `json:"expiration_threshold_days" yaml:"expiration_threshold_days" validate:"gte=0"`
	// RetentionCount: Backups kept
	RetentionCount int `json:"retention_count" yaml:"retention_count" validate:"gte=0"`
	// MinCertificates: Smallest download accepted as a bundle
	MinCertificates int `json:"min_certificates" yaml:"min_certificates" validate:"gte=0"`
}

// SSL holds overrides applied on top of the persisted TLS policy.
type SSL struct {
	// LocalEnvironment: Marks a development host where disable_ssl_local applies
	LocalEnvironment bool    `json:"local_environment" yaml:"local_environment"`
	VerifyPeer       *bool   `json:"verify_peer,omitempty" yaml:"verify_peer,omitempty"`
	DisableSSLLocal  *bool   `json:"disable_ssl_local,omitempty" yaml:"disable_ssl_local,omitempty"`
	DebugSSL         *bool   `json:"debug_ssl,omitempty" yaml:"debug_ssl,omitempty"`
	CABundlePath     *string `json:"ca_bundle_path,omitempty" yaml:"ca_bundle_path,omitempty"`
	SSLVersion       *string `json:"ssl_version,omitempty" yaml:"ssl_version,omitempty"`
	Proxy            *string `json:"proxy,omitempty" yaml:"proxy,omitempty"`
}

// Timeouts configures latency alerting. Thresholds are seconds.
type Timeouts struct {
	WarningThreshold   float64 `json:"warning_threshold" yaml:"warning_threshold" validate:"gte=0"`
	CriticalThreshold  float64 `json:"critical_threshold" yaml:"critical_threshold" validate:"gte=0"`
	PersistProbability float64 `json:"persist_probability" yaml:"persist_probability" validate:"gte=0,lte=1"`
}

// API configures the ERP endpoint.
type API struct {
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

// Log configures the logger.
type Log struct {
	Format string `json:"format" yaml:"format" validate:"oneof=text json zap"`
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
}

// Default returns the built-in configuration: in-memory stores, caching on,
// certificates under ./data.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:       "memory",
			ConfigBackend: "memory",
		},
		Cache: Cache{
			Enabled:    true,
			DefaultTTL: 3600,
			Prefix:     "verial_cache_",
		},
		Certificates: Certificates{
			BaseDir:                 ".",
			CacheDir:                filepath.Join("data", "cert-cache"),
			CacheTTLHours:           24,
			BundlePath:              filepath.Join("data", "certs", "ca-bundle.pem"),
			RotationIntervalDays:    30,
			ExpirationThresholdDays: 30,
			RetentionCount:          5,
			MinCertificates:         50,
		},
		Timeouts: Timeouts{
			WarningThreshold:   5,
			CriticalThreshold:  15,
			PersistProbability: 0.1,
		},
		Log: Log{
			Format: "text",
			Level:  "info",
		},
	}
}

// detectConfigFormat determines the configuration file format based on file extension.
func detectConfigFormat(configPath string) configFormat {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// unmarshalConfig unmarshals configuration data based on the specified format.
func unmarshalConfig(data []byte, config *Config, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// Load reads the configuration from a JSON or YAML file, or applies defaults.
//
// Parameters:
//   - configPath: Path to the configuration file (optional, can be empty)
//     Supported formats: .json, .yaml, .yml
//
// Returns:
//   - *Config: The loaded configuration with defaults applied
//   - error: Read, parse or validation failure
//
// Configuration Priority:
//  1. Default values are set
//  2. VERIAL_RESILIENCE_CONFIG environment variable is checked if configPath is empty
//  3. Config file values override defaults
//  4. Invalid numeric values are reset to their defaults
//  5. The result is validated
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		configPath = os.Getenv(EnvConfigFile)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshalConfig(data, config, detectConfigFormat(configPath)); err != nil {
			return nil, err
		}
		config.resetInvalid()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// resetInvalid restores defaults for non-positive values that have no meaning.
func (c *Config) resetInvalid() {
	d := Default()
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = d.Cache.DefaultTTL
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = d.Cache.Prefix
	}
	if c.Certificates.CacheTTLHours <= 0 {
		c.Certificates.CacheTTLHours = d.Certificates.CacheTTLHours
	}
	if c.Certificates.RotationIntervalDays <= 0 {
		c.Certificates.RotationIntervalDays = d.Certificates.RotationIntervalDays
	}
	if c.Certificates.ExpirationThresholdDays <= 0 {
		c.Certificates.ExpirationThresholdDays = d.Certificates.ExpirationThresholdDays
	}
	if c.Certificates.RetentionCount <= 0 {
		c.Certificates.RetentionCount = d.Certificates.RetentionCount
	}
	if c.Certificates.MinCertificates <= 0 {
		c.Certificates.MinCertificates = d.Certificates.MinCertificates
	}
	if c.Timeouts.WarningThreshold <= 0 {
		c.Timeouts.WarningThreshold = d.Timeouts.WarningThreshold
	}
	if c.Timeouts.CriticalThreshold <= 0 {
		c.Timeouts.CriticalThreshold = d.Timeouts.CriticalThreshold
	}
}

// Days converts a day count to a duration.
func Days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// SecondsF converts fractional seconds to a duration.
func SecondsF(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
