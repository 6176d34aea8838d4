package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.ServiceName != "cryptoaitrade" {
		t.Errorf("service name = %q, want default", cfg.ServiceName)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("http port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.MetricsPath != "/metrics" {
		t.Errorf("metrics path = %q, want /metrics", cfg.MetricsPath)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("service_name: override\nhttp:\n  port: 9090\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "override" {
		t.Errorf("service name = %q, want override", cfg.ServiceName)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("http port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("env = %q, want default dev", cfg.Env)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
