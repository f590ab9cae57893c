// Package config holds tenor's runtime configuration: storage backend
// selection, logging level, source-adapter bindings, and the optional
// trust/attestation signing key.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all tenor configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Storage StorageConfig           `yaml:"storage"`
	Logging LoggingConfig           `yaml:"logging"`
	Sources map[string]SourceConfig `yaml:"sources"`
	Trust   TrustConfig             `yaml:"trust"`
}

// StorageConfig selects and configures the TenorStorage backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// SourceConfig binds one declared Source construct's protocol fields to
// a live adapter's connection settings.
type SourceConfig struct {
	Protocol string            `yaml:"protocol"`
	Fields   map[string]string `yaml:"fields"`
}

// TrustConfig configures optional bundle attestation.
type TrustConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PrivateKeyPath string `yaml:"private_key_path"`
	TrustDomain    string `yaml:"trust_domain"`
}

// DefaultConfig returns the default configuration: a sqlite-backed
// store at data/tenor.db, info-level text logging, trust disabled.
func DefaultConfig() *Config {
	return &Config{
		Name:    "tenor",
		Version: "1.0",
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "data/tenor.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sources: map[string]SourceConfig{},
		Trust: TrustConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to
// DefaultConfig when the file does not exist. Environment variables
// override whatever the file or defaults set.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if db := os.Getenv("TENOR_DB"); db != "" {
		c.Storage.Path = db
	}
	if backend := os.Getenv("TENOR_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("TENOR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if keyPath := os.Getenv("TENOR_TRUST_KEY"); keyPath != "" {
		c.Trust.Enabled = true
		c.Trust.PrivateKeyPath = keyPath
	}
}
