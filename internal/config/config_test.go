package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARENA_ADDR", "")
	t.Setenv("ARENA_STORE_PATH", "")
	t.Setenv("ARENA_GAME_CAPACITY", "")
	t.Setenv("ARENA_RELAY_TIMEOUT", "")
	t.Setenv("ARENA_POLL_TIMEOUT", "")
	t.Setenv("ARENA_ADMIN_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.StorePath != DefaultStorePath {
		t.Fatalf("expected default store path %q, got %q", DefaultStorePath, cfg.StorePath)
	}
	if cfg.GameCapacity != DefaultGameCapacity {
		t.Fatalf("expected default game capacity %d, got %d", DefaultGameCapacity, cfg.GameCapacity)
	}
	if cfg.RelayTimeout != DefaultRelayTimeout {
		t.Fatalf("expected default relay timeout %v, got %v", DefaultRelayTimeout, cfg.RelayTimeout)
	}
	if cfg.JournalPath != "" {
		t.Fatalf("expected journal disabled by default, got %q", cfg.JournalPath)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARENA_ADDR", "127.0.0.1:9000")
	t.Setenv("ARENA_STORE_PATH", "/tmp/arena.db")
	t.Setenv("ARENA_JOURNAL_PATH", "/tmp/journal")
	t.Setenv("ARENA_GAME_CAPACITY", "8")
	t.Setenv("ARENA_RELAY_TIMEOUT", "2s")
	t.Setenv("ARENA_POLL_TIMEOUT", "10s")
	t.Setenv("ARENA_AUTH_BURST", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.StorePath != "/tmp/arena.db" {
		t.Fatalf("unexpected store path: %q", cfg.StorePath)
	}
	if cfg.JournalPath != "/tmp/journal" {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath)
	}
	if cfg.GameCapacity != 8 {
		t.Fatalf("expected game capacity 8, got %d", cfg.GameCapacity)
	}
	if cfg.RelayTimeout != 2*time.Second {
		t.Fatalf("expected relay timeout 2s, got %v", cfg.RelayTimeout)
	}
	if cfg.PollTimeout != 10*time.Second {
		t.Fatalf("expected poll timeout 10s, got %v", cfg.PollTimeout)
	}
	if cfg.AuthBurst != 3 {
		t.Fatalf("expected auth burst 3, got %d", cfg.AuthBurst)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	t.Setenv("ARENA_GAME_CAPACITY", "-1")
	t.Setenv("ARENA_RELAY_TIMEOUT", "abc")
	t.Setenv("ARENA_LOG_MAX_SIZE_MB", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, fragment := range []string{"ARENA_GAME_CAPACITY", "ARENA_RELAY_TIMEOUT", "ARENA_LOG_MAX_SIZE_MB"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected error to mention %s, got %v", fragment, err)
		}
	}
}
