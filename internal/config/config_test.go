package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
queue:
  entry_ttl: 5m
  join_rate_per_minute: 12
presence:
  mirror_ttl: 1h
history:
  buffer_size: 64
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Queue.EntryTTL != 5*time.Minute {
		t.Fatalf("unexpected queue entry ttl: %s", cfg.Queue.EntryTTL)
	}
	if cfg.Queue.JoinRatePerMinute != 12 {
		t.Fatalf("unexpected join rate per minute: %d", cfg.Queue.JoinRatePerMinute)
	}
	if cfg.Presence.MirrorTTL != time.Hour {
		t.Fatalf("unexpected presence mirror ttl: %s", cfg.Presence.MirrorTTL)
	}
	if cfg.History.BufferSize != 64 {
		t.Fatalf("unexpected history buffer size: %d", cfg.History.BufferSize)
	}

	if cfg.Queue.CleanupInterval != time.Minute {
		t.Fatalf("cleanup interval default should stay 1m, got %s", cfg.Queue.CleanupInterval)
	}
	if cfg.Queue.JoinRatePer10Sec != 10 {
		t.Fatalf("join rate per 10s default should stay 10, got %d", cfg.Queue.JoinRatePer10Sec)
	}
	if cfg.Auth.JWTAccessTTL != 15*time.Minute {
		t.Fatalf("jwt access ttl default should stay 15m, got %s", cfg.Auth.JWTAccessTTL)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Queue.EntryTTL != 10*time.Minute {
		t.Fatalf("unexpected default queue entry ttl: %s", cfg.Queue.EntryTTL)
	}
	if cfg.Queue.JoinRatePerMinute != 30 {
		t.Fatalf("unexpected default join rate: %d", cfg.Queue.JoinRatePerMinute)
	}
	if cfg.Presence.MirrorTTL != 24*time.Hour {
		t.Fatalf("unexpected default presence mirror ttl: %s", cfg.Presence.MirrorTTL)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected default log level: %s", cfg.Log.Level)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("QUEUE_ENTRY_TTL", "3m")
	t.Setenv("QUEUE_JOIN_RATE_PER_10SEC", "4")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Queue.EntryTTL != 3*time.Minute {
		t.Fatalf("unexpected queue entry ttl: %s", cfg.Queue.EntryTTL)
	}
	if cfg.Queue.JoinRatePer10Sec != 4 {
		t.Fatalf("unexpected join rate per 10s: %d", cfg.Queue.JoinRatePer10Sec)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("unexpected jwt secret: %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadRejectsBadDurationEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("QUEUE_ENTRY_TTL", "ten minutes")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed duration override")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"QUEUE_ENTRY_TTL",
		"QUEUE_CLEANUP_INTERVAL",
		"QUEUE_JOIN_RATE_PER_MINUTE",
		"QUEUE_JOIN_RATE_PER_10SEC",
		"PRESENCE_MIRROR_TTL",
		"HISTORY_BUFFER_SIZE",
	} {
		t.Setenv(key, "")
	}
}
