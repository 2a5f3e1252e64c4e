package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "http://backend.local/")
	t.Setenv("AUTH_URL", "http://auth.local")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.SessionStore != SessionStoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.SessionStore)
	}
	if cfg.BackendURL != "http://backend.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Fatalf("unexpected idle timeout %v", cfg.SessionIdleTimeout)
	}
	if cfg.BackendMaxRetries != 2 {
		t.Fatalf("unexpected retries %d", cfg.BackendMaxRetries)
	}
	if cfg.AuthRateLimit != 1 || cfg.AuthRateBurst != 5 {
		t.Fatalf("unexpected auth rate limit %v/%d", cfg.AuthRateLimit, cfg.AuthRateBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.SessionStore != SessionStoreRedis {
		t.Fatalf("expected redis store, got %q", cfg.SessionStore)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("AUTH_URL", "http://auth.local")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing BACKEND_URL to return an error")
	}
}

func TestLoadUnknownStore(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_STORE", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown store to return an error")
	}
}

func TestLoadNegativeRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_RATE_BURST", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected negative burst to return an error")
	}
}
