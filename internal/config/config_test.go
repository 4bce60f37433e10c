package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "linkage" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Engine.Horizon != 12 || cfg.Engine.ConfidenceLevel != 0.95 {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Engine.SeasonalPeriod != 12 || cfg.Engine.DiagnosticLags != 12 {
		t.Fatalf("unexpected seasonal defaults: %+v", cfg.Engine)
	}
	if cfg.Engine.Bounds.MaxP != 2 || cfg.Engine.Bounds.MaxSP != 1 {
		t.Fatalf("unexpected bounds defaults: %+v", cfg.Engine.Bounds)
	}
	if cfg.EStat.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected estat timeout %v", cfg.EStat.RequestTimeout)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("unexpected listen address %q", cfg.Server.Listen)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LINKAGE_ENGINE_HORIZON", "6")
	t.Setenv("LINKAGE_ESTAT_APP_ID", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Horizon != 6 {
		t.Fatalf("env override not applied, got %d", cfg.Engine.Horizon)
	}
	if cfg.EStat.AppID != "secret" {
		t.Fatalf("env override not applied, got %q", cfg.EStat.AppID)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
engine:
  horizon: 18
  confidence_level: 0.9
  bounds:
    max_p: 3
server:
  listen: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Horizon != 18 || cfg.Engine.ConfidenceLevel != 0.9 {
		t.Fatalf("file values not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.Bounds.MaxP != 3 {
		t.Fatalf("bounds not applied: %+v", cfg.Engine.Bounds)
	}
	if cfg.Server.Listen != ":9090" {
		t.Fatalf("listen not applied: %q", cfg.Server.Listen)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Engine.Horizon = 0 },
		func(c *Config) { c.Engine.ConfidenceLevel = 1.2 },
		func(c *Config) { c.Engine.Alpha = 0 },
		func(c *Config) { c.Engine.SeasonalPeriod = 0 },
		func(c *Config) { c.Engine.DiagnosticLags = 0 },
		func(c *Config) { c.Server.Listen = "" },
		func(c *Config) { c.Export.MaxDataPoints = 0 },
	}

	for i, mutate := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
