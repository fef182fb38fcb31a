package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Reasoning.Backend != BackendNone {
		t.Errorf("Backend = %q, want %q", cfg.Reasoning.Backend, BackendNone)
	}
	if cfg.Extract.Threshold != 0.85 {
		t.Errorf("Threshold = %v, want 0.85", cfg.Extract.Threshold)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 5*time.Second {
		t.Errorf("Retry = %+v, want 3 attempts / 5s", cfg.Retry)
	}
	if cfg.GCP.DatasetID != "finance" {
		t.Errorf("DatasetID = %q", cfg.GCP.DatasetID)
	}
	if cfg.Worker.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Worker.ListenAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FININGEST_REASONING_BACKEND", "Gemini")
	t.Setenv("FININGEST_TIER_TIMEOUT", "10s")
	t.Setenv("FININGEST_OTEL_ENABLED", "yes")
	t.Setenv("FININGEST_DB_PORT", "6543")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Reasoning.Backend != BackendGemini {
		t.Errorf("Backend = %q", cfg.Reasoning.Backend)
	}
	if cfg.Extract.TierTimeout != 10*time.Second {
		t.Errorf("TierTimeout = %v", cfg.Extract.TierTimeout)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("expected telemetry enabled")
	}
	if !strings.Contains(cfg.Database.ConnectionString(), "port=6543") {
		t.Errorf("ConnectionString() = %q", cfg.Database.ConnectionString())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "FININGEST_DB_PORT", "abc"},
		{"bad backend", "FININGEST_REASONING_BACKEND", "claude"},
		{"openai without key", "FININGEST_REASONING_BACKEND", "openai"},
		{"threshold above one", "FININGEST_CONFIDENCE_THRESHOLD", "1.5"},
		{"zero attempts", "FININGEST_RETRY_MAX_ATTEMPTS", "0"},
		{"bad duration", "FININGEST_RETRY_BASE_DELAY", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s expected error", tt.key, tt.val)
			}
		})
	}
}
