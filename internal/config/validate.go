package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors so a caller sees every
// problem at once instead of stopping at the first one.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateStore(cfg, ve)
	validateEmbedding(cfg, ve)
	validateConsolidation(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if !cfg.Server.HTTPEnabled && !cfg.Server.StdioEnabled {
		ve.Add("server: at least one of http_enabled or stdio_enabled must be true")
	}
	if cfg.Server.HTTPEnabled && cfg.Server.HTTPAddr == "" {
		ve.Add("server.http_addr must not be empty when http_enabled")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.DataDir == "" {
		ve.Add("store.data_dir must not be empty")
	}
	if cfg.Store.BusyTimeout <= 0 {
		ve.Add("store.busy_timeout must be > 0")
	}
	if cfg.Store.MaxFTSCandidates <= 0 {
		ve.Add("store.max_fts_candidates must be > 0")
	}
	if cfg.Store.MaxScanCandidates <= 0 {
		ve.Add("store.max_scan_candidates must be > 0")
	}
}

var validEmbeddingProviders = map[string]bool{
	"hash":   true,
	"ollama": true,
}

func validateEmbedding(cfg *Config, ve *ValidationError) {
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		ve.Add("embedding.provider %q is not recognized", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		ve.Add("embedding.dimensions must be > 0")
	}
	if cfg.Embedding.CacheSize < 0 {
		ve.Add("embedding.cache_size must be >= 0")
	}
	if cfg.Embedding.Provider == "ollama" && cfg.Embedding.BaseURL == "" {
		ve.Add("embedding.base_url must be set when provider is ollama")
	}
}

func validateConsolidation(cfg *Config, ve *ValidationError) {
	if !cfg.Consolidation.Enabled {
		return
	}
	if cfg.Consolidation.Schedule == "" {
		ve.Add("consolidation.schedule must not be empty when enabled")
	}
	if cfg.Consolidation.DuplicateThreshold <= 0 || cfg.Consolidation.DuplicateThreshold > 1 {
		ve.Add("consolidation.duplicate_threshold must be in (0, 1]")
	}
	if cfg.Consolidation.ContradictionThresh <= 0 || cfg.Consolidation.ContradictionThresh > 1 {
		ve.Add("consolidation.contradiction_threshold must be in (0, 1]")
	}
	if cfg.Consolidation.BatchSize <= 0 {
		ve.Add("consolidation.batch_size must be > 0")
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validFormats = map[string]bool{"json": true, "text": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[cfg.Logger.Level] {
		ve.Add("logger.level %q is not recognized", cfg.Logger.Level)
	}
	if !validFormats[cfg.Logger.Format] {
		ve.Add("logger.format %q is not recognized", cfg.Logger.Format)
	}
}

var validExporters = map[string]bool{"noop": true, "stdout": true}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is not recognized", cfg.Tracer.Exporter)
	}
}
