package config

import (
	"strings"
	"testing"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.ConfigDir != "./configs" || cfg.WorldID != "world_1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DisableDB || cfg.StrictProtocol || !cfg.EnableAdmin || cfg.IndexBackend != "sqlite" || !cfg.OTelEnabled || cfg.OTelEndpoint != "" {
		t.Fatalf("unexpected switch defaults: %+v", cfg)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("PKWORLD_ADDR", "127.0.0.1:9000")
	t.Setenv("PKWORLD_DISABLE_DB", "true")
	t.Setenv("PKWORLD_OTEL_ENDPOINT", "http://collector:4318")
	t.Setenv("PKWORLD_OTEL_ENABLED", "false")

	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || !cfg.DisableDB || cfg.OTelEndpoint != "http://collector:4318" || cfg.OTelEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("PKWORLD_DISABLE_DB", "not-a-bool")

	var cfg Server
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
