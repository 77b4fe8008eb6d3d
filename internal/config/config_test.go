package config

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvSyncInterval, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvHeadless, "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.SyncInterval() != DefaultSyncInterval {
		t.Errorf("SyncInterval() = %v, want %v", cfg.SyncInterval(), DefaultSyncInterval)
	}
	if cfg.UploadWorkers() != DefaultUploadWorkers {
		t.Errorf("UploadWorkers() = %d, want %d", cfg.UploadWorkers(), DefaultUploadWorkers)
	}
	if cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = true without an API key")
	}
	if !cfg.Headless() {
		t.Error("Headless() = false by default")
	}
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvDataDir, "/tmp/dsync-test")
	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvTeam, "acme")
	t.Setenv(EnvDataset, "birds")
	t.Setenv(EnvSyncInterval, "30s")
	t.Setenv(EnvRateLimit, "2.5")
	t.Setenv(EnvUploadWorkers, "8")
	t.Setenv(EnvHeadless, "false")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.DBPath() != "/tmp/dsync-test/"+DBFilename {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.SyncInterval() != 30*time.Second {
		t.Errorf("SyncInterval() = %v, want 30s", cfg.SyncInterval())
	}
	if cfg.RateLimit() != 2.5 {
		t.Errorf("RateLimit() = %v, want 2.5", cfg.RateLimit())
	}
	if cfg.UploadWorkers() != 8 {
		t.Errorf("UploadWorkers() = %d, want 8", cfg.UploadWorkers())
	}
	if !cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = false with key, team and dataset set")
	}
	if cfg.Headless() {
		t.Error("Headless() = true with DSYNC_HEADLESS=false")
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"bad interval", EnvSyncInterval, "soon"},
		{"negative interval", EnvSyncInterval, "-1s"},
		{"zero rate", EnvRateLimit, "0"},
		{"zero workers", EnvUploadWorkers, "0"},
		{"headless not a bool", EnvHeadless, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := New(); err == nil {
				t.Fatalf("New() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
