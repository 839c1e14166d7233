package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage backend names accepted in [storage].backend
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds all configuration for drip
type Config struct {
	Environment     string           `toml:"environment"`
	DisplayCurrency string           `toml:"display_currency"` // ISO code used when printing amounts, default "USD"
	Storage         StorageConfig    `toml:"storage"`
	Logging         LoggingConfig    `toml:"logging"`
	Projection      ProjectionConfig `toml:"projection"`
	Export          ExportConfig     `toml:"export"`
}

// StorageConfig selects the key-value backend and where it keeps its data.
type StorageConfig struct {
	Backend    string `toml:"backend"`     // file, badger or sqlite
	Path       string `toml:"path"`        // directory for file/badger, database file for sqlite
	QuotaBytes int64  `toml:"quota_bytes"` // 0 disables the quota
	Seed       bool   `toml:"seed"`        // populate sample data on an empty store
}

// ProjectionConfig holds defaults for scenario projections
type ProjectionConfig struct {
	Years int `toml:"years"`
}

// ExportConfig holds defaults for export documents
type ExportConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // console or json
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:     "development",
		DisplayCurrency: "USD",
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    "data",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Projection: ProjectionConfig{
			Years: 10,
		},
		Export: ExportConfig{
			Dir: ".",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first so its values are
// visible to the DRIP_* overrides; variables already set are not replaced.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateDisplayCurrency(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DRIP_ENV"); env != "" {
		config.Environment = env
	}

	if path := os.Getenv("DRIP_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if backend := os.Getenv("DRIP_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if level := os.Getenv("DRIP_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if quota := os.Getenv("DRIP_QUOTA_BYTES"); quota != "" {
		if q, err := strconv.ParseInt(quota, 10, 64); err == nil {
			config.Storage.QuotaBytes = q
		}
	}

	if dir := os.Getenv("DRIP_EXPORT_DIR"); dir != "" {
		config.Export.Dir = dir
	}

	if dc := os.Getenv("DRIP_DISPLAY_CURRENCY"); dc != "" {
		config.DisplayCurrency = strings.ToUpper(dc)
	}
}

// Validate rejects configurations the application cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s, %s or %s)",
			c.Storage.Backend, BackendFile, BackendBadger, BackendSQLite)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage quota must not be negative, got %d", c.Storage.QuotaBytes)
	}
	if c.Projection.Years <= 0 {
		c.Projection.Years = 10
	}
	return nil
}

// SQLitePath returns the database file used by the sqlite backend.
// A path without an extension is treated as a directory.
func (c *Config) SQLitePath() string {
	if filepath.Ext(c.Storage.Path) != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.Storage.Path, "drip.db")
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// LoggerSettings returns the logging section to build a logger from.
// Production always logs JSON so lines stay machine readable.
func (c *Config) LoggerSettings() LoggingConfig {
	settings := c.Logging
	if c.IsProduction() {
		settings.Format = "json"
	}
	return settings
}

// validateDisplayCurrency ensures DisplayCurrency is a three letter code, defaulting to "USD".
func validateDisplayCurrency(config *Config) {
	dc := strings.ToUpper(strings.TrimSpace(config.DisplayCurrency))
	if len(dc) != 3 {
		dc = "USD"
	}
	config.DisplayCurrency = dc
}
