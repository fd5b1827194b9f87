package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Errorf("expected default addr, got %s", cfg.Addr)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Errorf("expected in-process backends by default: %+v", cfg)
	}
	if cfg.ValidatorMaxRetries != 3 {
		t.Errorf("expected default retries 3, got %d", cfg.ValidatorMaxRetries)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGORA_ADDR", ":9999")
	t.Setenv("REDIS_URL", "redis://localhost:6380/1")
	t.Setenv("AGORA_VALIDATOR_TIMEOUT", "30s")
	t.Setenv("AGORA_VALIDATOR_MAX_RETRIES", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected addr override, got %s", cfg.Addr)
	}
	if cfg.RedisURL != "redis://localhost:6380/1" {
		t.Errorf("expected redis override, got %s", cfg.RedisURL)
	}
	if cfg.ValidatorTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.ValidatorTimeout)
	}
	// Unparseable values fall back to the default.
	if cfg.ValidatorMaxRetries != 3 {
		t.Errorf("expected fallback retries 3, got %d", cfg.ValidatorMaxRetries)
	}
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("addr: \":7070\"\nrevisionsDir: /var/lib/agora/revisions\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("AGORA_CONFIG_FILE", path)
	t.Setenv("AGORA_ADDR", ":6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Env wins over file, file wins over defaults.
	if cfg.Addr != ":6060" {
		t.Errorf("expected env addr, got %s", cfg.Addr)
	}
	if cfg.RevisionsDir != "/var/lib/agora/revisions" {
		t.Errorf("expected file revisions dir, got %s", cfg.RevisionsDir)
	}
}

func TestLoadBadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- nope"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("AGORA_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed config file")
	}
}
