// Package config loads and validates engram's YAML configuration, following
// the same Defaults/Load/ApplyEnvOverrides shape the rest of the pack uses
// for local-first agent tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engram configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Logger        LoggerConfig        `yaml:"logger"`
	Tracer        TracerConfig        `yaml:"tracer"`
}

// ServerConfig controls the HTTP API and stdio tool surfaces.
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr"`
	HTTPEnabled  bool   `yaml:"http_enabled"`
	StdioEnabled bool   `yaml:"stdio_enabled"`
}

// StoreConfig controls the SQLite-backed persistence layer.
type StoreConfig struct {
	DataDir           string        `yaml:"data_dir"`
	BusyTimeout       time.Duration `yaml:"busy_timeout"`
	MaxFTSCandidates  int           `yaml:"max_fts_candidates"`
	MaxScanCandidates int           `yaml:"max_scan_candidates"`
}

// EmbeddingConfig selects and configures the Embedder capability.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"` // "hash" (test double) or "ollama"
	Model          string        `yaml:"model"`
	Dimensions     int           `yaml:"dimensions"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	CacheSize      int           `yaml:"cache_size"`
	FailureWindow  time.Duration `yaml:"failure_window"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ConsolidationConfig controls the background consolidation scheduler.
type ConsolidationConfig struct {
	Enabled              bool    `yaml:"enabled"`
	Schedule             string  `yaml:"schedule"` // cron expression or duration string
	DuplicateThreshold   float64 `yaml:"duplicate_threshold"`
	ContradictionThresh  float64 `yaml:"contradiction_threshold"`
	StaleConfidenceBelow float64 `yaml:"stale_confidence_below"`
	StaleAgeDays         int     `yaml:"stale_age_days"`
	BatchSize            int     `yaml:"batch_size"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig controls OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "noop" or "stdout"
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".engram")
}

// Defaults returns a Config with sensible defaults, mirroring the shape of a
// freshly-initialized `~/.engram/` data directory.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			HTTPAddr:     ":3838",
			HTTPEnabled:  true,
			StdioEnabled: true,
		},
		Store: StoreConfig{
			DataDir:           dataDir,
			BusyTimeout:       5 * time.Second,
			MaxFTSCandidates:  20,
			MaxScanCandidates: 5000,
		},
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			Model:          "hash-256",
			Dimensions:     256,
			CacheSize:      512,
			FailureWindow:  30 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Consolidation: ConsolidationConfig{
			Enabled:              true,
			Schedule:             "@every 1h",
			DuplicateThreshold:   0.92,
			ContradictionThresh:  0.7,
			StaleConfidenceBelow: 0.3,
			StaleAgeDays:         90,
			BatchSize:            100,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file at path, applies ENGRAM_* environment
// overrides, validates the result, and returns it. A missing file is not an
// error: Load falls back to Defaults() and still applies overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
