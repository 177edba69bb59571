package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
	if cfg.Admin.DevMode {
		t.Fatalf("dev mode must default to off")
	}
}

func TestLoadFromPathFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 9090
database:
  dsn: postgres://localhost/yigicoin
admin:
  dev_mode: true
  tokens: ["dev-token"]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver should default to postgres when dsn set, got %q", cfg.Database.Driver)
	}
	if !cfg.Admin.DevMode || len(cfg.Admin.Tokens) != 1 {
		t.Fatalf("admin config not applied: %#v", cfg.Admin)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7001")
	t.Setenv("ADMIN_DEV_MODE", "true")
	t.Setenv("ADMIN_TOKENS", "a, b ,")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Fatalf("env port override not applied: %d", cfg.Server.Port)
	}
	if !cfg.Admin.DevMode {
		t.Fatalf("env dev mode override not applied")
	}
	if len(cfg.Admin.Tokens) != 2 || cfg.Admin.Tokens[1] != "b" {
		t.Fatalf("token list not trimmed: %#v", cfg.Admin.Tokens)
	}
}

func TestInvalidPortRejected(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
