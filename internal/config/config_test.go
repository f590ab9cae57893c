package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "tenor" {
		t.Errorf("expected Name=tenor, got %s", cfg.Name)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected Storage.Backend=sqlite, got %s", cfg.Storage.Backend)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level=info, got %s", cfg.Logging.Level)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tenor.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Path = "custom/path.db"
	cfg.Logging.Level = "debug"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Storage.Path != "custom/path.db" {
		t.Errorf("expected Storage.Path=custom/path.db, got %s", loaded.Storage.Path)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level=debug, got %s", loaded.Logging.Level)
	}
}

func TestConfigLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "tenor" {
		t.Errorf("expected default Name=tenor, got %s", cfg.Name)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("TENOR_DB", "env/path.db")
	t.Setenv("TENOR_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Path != "env/path.db" {
		t.Errorf("expected Storage.Path=env/path.db, got %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected Logging.Level=warn, got %s", cfg.Logging.Level)
	}
}
