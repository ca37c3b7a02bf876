package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("Dimensions = %d, want 256", cfg.Embedding.Dimensions)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Defaults() should validate cleanly: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load("/tmp/nonexistent-engram-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Provider != "hash" {
		t.Errorf("expected defaults, got Provider=%q", cfg.Embedding.Provider)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_addr: ":9000"
embedding:
  provider: "ollama"
  base_url: "http://localhost:11434"
  dimensions: 768
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":9000")
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("Dimensions = %d, want 768", cfg.Embedding.Dimensions)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ENGRAM_LOGGER_LEVEL", "warn")
	t.Setenv("ENGRAM_EMBEDDING_PROVIDER", "ollama")

	cfg := Defaults()
	cfg.Embedding.BaseURL = "http://localhost:11434"
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "warn")
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("Embedding.Provider = %q, want %q", cfg.Embedding.Provider, "ollama")
	}
}

func TestValidateRejectsUnknownEmbeddingProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Embedding.Provider = "bogus"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown embedding provider")
	}
}

func TestValidateRequiresServerSurface(t *testing.T) {
	cfg := Defaults()
	cfg.Server.HTTPEnabled = false
	cfg.Server.StdioEnabled = false
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error when no server surface is enabled")
	}
}
