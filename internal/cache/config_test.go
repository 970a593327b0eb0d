package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("CACHE_CONFIG", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "localhost:6379" {
		t.Errorf("unexpected addr %q", cfg.Addr)
	}
	if cfg.TTL() != DefaultTTL {
		t.Errorf("unexpected ttl %v", cfg.TTL())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache.internal:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("CACHE_CONFIG", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "cache.internal:6380" || cfg.Password != "secret" || cfg.DB != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.TTL() != 2*time.Minute {
		t.Errorf("unexpected ttl %v", cfg.TTL())
	}
}

func TestLoadConfigYAMLOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	data := []byte("addr: cache.file:6379\nttl_seconds: 60\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "cache.env:6379")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("CACHE_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "cache.file:6379" {
		t.Errorf("expected file addr to win, got %q", cfg.Addr)
	}
	if cfg.TTL() != time.Minute {
		t.Errorf("unexpected ttl %v", cfg.TTL())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CACHE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
