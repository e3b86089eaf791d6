package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.HeartbeatTimeoutSeconds != 60 {
		t.Fatalf("expected 60s heartbeat timeout, got %d", cfg.HeartbeatTimeoutSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "briefq.yaml")
	data := []byte("addr: 127.0.0.1:9999\ndb_path: /tmp/q.db\nheartbeat_timeout_seconds: 120\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("addr not overridden: %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/q.db" {
		t.Fatalf("db_path not overridden: %q", cfg.DBPath)
	}
	if cfg.HeartbeatTimeoutSeconds != 120 {
		t.Fatalf("timeout not overridden: %d", cfg.HeartbeatTimeoutSeconds)
	}
	// Untouched keys keep their defaults.
	if cfg.PollIntervalSeconds != 5 {
		t.Fatalf("poll interval default lost: %d", cfg.PollIntervalSeconds)
	}
}

func TestLoadRejectsIntervalLongerThanTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "briefq.yaml")
	data := []byte("heartbeat_timeout_seconds: 10\nheartbeat_interval_seconds: 30\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DBPath = filepath.Join(dir, "data", "briefq.db")
	cfg.StatusDir = filepath.Join(dir, "status")
	cfg.KeysFile = filepath.Join(dir, "keys", "briefq.keys.yaml")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, p := range []string{filepath.Join(dir, "data"), filepath.Join(dir, "status"), filepath.Join(dir, "keys")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("dir %s not created: %v", p, err)
		}
	}
}
