package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_YAMLWithHumanValues(t *testing.T) {
	p := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  backend: pebble
  pebble_path: /var/lib/ctx/db
retention:
  enabled: true
  cron: "0 3 * * *"
  max_age: 720h
  max_bytes: 10MB
limits:
  max_body_bytes: 1MB
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr: %s", cfg.Addr())
	}
	if cfg.Storage.Backend != "pebble" || cfg.Storage.PebblePath != "/var/lib/ctx/db" {
		t.Fatalf("storage not parsed: %+v", cfg.Storage)
	}
	if cfg.Retention.MaxAge.Duration() != 720*time.Hour {
		t.Fatalf("max_age not parsed: %v", cfg.Retention.MaxAge.Duration())
	}
	if cfg.Retention.MaxBytes.Int64() != 10*1000*1000 {
		t.Fatalf("max_bytes not parsed: %d", cfg.Retention.MaxBytes.Int64())
	}
	if cfg.Limits.MaxBodyBytes.Int64() != 1000*1000 {
		t.Fatalf("max_body_bytes not parsed: %d", cfg.Limits.MaxBodyBytes.Int64())
	}
}

func TestLoadEffective_MissingFileUsesDefaults(t *testing.T) {
	cfg, envUsed, err := LoadEffective(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if envUsed {
		t.Fatal("no env vars set, envUsed should be false")
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.DataRoot != "./data" {
		t.Fatalf("defaults not applied: %+v", cfg.Storage)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONTEXTDB_ADDR", "10.0.0.5:7070")
	t.Setenv("CONTEXTDB_BACKEND", "postgres")
	t.Setenv("CONTEXTDB_POSTGRES_DSN", "postgres://u:p@h/db")
	t.Setenv("CONTEXTDB_API_BACKEND_KEYS", "k1, k2 ,")
	t.Setenv("CONTEXTDB_REQUIRE_PRINCIPAL", "true")

	var cfg Config
	if !LoadEnvOverrides(&cfg) {
		t.Fatal("envUsed should be true")
	}
	if cfg.Server.Address != "10.0.0.5" || cfg.Server.Port != 7070 {
		t.Fatalf("addr override not split: %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.Postgres.DSN == "" {
		t.Fatalf("storage overrides missing: %+v", cfg.Storage)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("key list not parsed: %v", cfg.Security.APIKeys.Backend)
	}
	if cfg.Security.RequirePrincipal == nil || !*cfg.Security.RequirePrincipal {
		t.Fatal("require_principal override missing")
	}
}

func TestValidate_BackendConsistency(t *testing.T) {
	yes, no := true, false

	var cfg Config
	cfg.Storage.Backend = "file"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("file backend should validate: %v", err)
	}
	cfg.Security.RequirePrincipal = &yes
	if err := cfg.Validate(); err == nil {
		t.Fatal("require_principal with the file backend must be rejected")
	}

	cfg = Config{}
	cfg.Storage.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres without dsn must be rejected")
	}
	cfg.Storage.Postgres.DSN = "postgres://u:p@h/db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres with dsn should validate: %v", err)
	}
	cfg.Security.RequirePrincipal = &no
	if err := cfg.Validate(); err == nil {
		t.Fatal("disabling scoping on postgres must be rejected")
	}

	cfg = Config{}
	cfg.Storage.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend must be rejected")
	}
}

func TestEffectiveRequirePrincipal_DefaultsByBackend(t *testing.T) {
	var cfg Config
	cfg.Storage.Backend = "file"
	if cfg.EffectiveRequirePrincipal() {
		t.Fatal("file backend should default to unscoped")
	}
	cfg.Storage.Backend = "postgres"
	if !cfg.EffectiveRequirePrincipal() {
		t.Fatal("postgres backend should default to scoped")
	}
}
