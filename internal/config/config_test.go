package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "absent.yaml"), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Verification.Timeout != 10*time.Second || cfg.Verification.LookupWindow != 5*time.Minute {
		t.Errorf("unexpected verification defaults: %+v", cfg.Verification)
	}
	if cfg.Pipeline.RecentPrompts != 10 {
		t.Errorf("expected 10 recent prompts, got %d", cfg.Pipeline.RecentPrompts)
	}
	if cfg.Store.Path != filepath.Join(dir, DefaultStoreFile) {
		t.Errorf("unexpected store path %q", cfg.Store.Path)
	}
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":8080"
store:
  path: data/records.jsonl
verification:
  provider: openai
  api_key_env: TEST_OPENAI_KEY
  timeout: 3s
pipeline:
  pending_timeout: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("unset field lost its default: %q", cfg.Server.MetricsAddr)
	}
	if cfg.Store.Path != filepath.Join(dir, "data", "records.jsonl") {
		t.Errorf("relative store path not resolved: %q", cfg.Store.Path)
	}
	if cfg.Verification.Provider != "openai" || cfg.Verification.Timeout != 3*time.Second {
		t.Errorf("verification = %+v", cfg.Verification)
	}
	if cfg.Pipeline.PendingTimeout != 30*time.Second {
		t.Errorf("pending timeout = %v", cfg.Pipeline.PendingTimeout)
	}

	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	if cfg.Verification.APIKey() != "sk-test" {
		t.Errorf("APIKey did not read env")
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROMPTSHIELD_ADDR", "127.0.0.1:7000")
	t.Setenv("PROMPTSHIELD_STORE", "/tmp/ps.jsonl")

	cfg, err := LoadFrom(filepath.Join(dir, "none.yaml"), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Store.Path != "/tmp/ps.jsonl" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Server, cfg.Store)
	}
}

func TestLoadFrom_InvalidProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("verification:\n  provider: watson\n"), 0644)

	if _, err := LoadFrom(path, dir); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("server: [\n"), 0644)

	if _, err := LoadFrom(path, dir); err == nil {
		t.Error("expected parse error")
	}
}
