package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides maps ENGRAM_* environment variables onto cfg, the same
// override pattern the pack's agent config loader uses for its own prefix.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENGRAM_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("ENGRAM_HTTP_ENABLED"); v != "" {
		cfg.Server.HTTPEnabled = v == "true"
	}
	if v := os.Getenv("ENGRAM_STDIO_ENABLED"); v != "" {
		cfg.Server.StdioEnabled = v == "true"
	}
	if v := os.Getenv("ENGRAM_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("ENGRAM_STORE_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Store.BusyTimeout = d
		}
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("ENGRAM_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("ENGRAM_CONSOLIDATION_ENABLED"); v != "" {
		cfg.Consolidation.Enabled = v == "true"
	}
	if v := os.Getenv("ENGRAM_CONSOLIDATION_SCHEDULE"); v != "" {
		cfg.Consolidation.Schedule = v
	}
	if v := os.Getenv("ENGRAM_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ENGRAM_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("ENGRAM_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("ENGRAM_TRACER_ENABLED"); v != "" {
		cfg.Tracer.Enabled = v == "true"
	}
	if v := os.Getenv("ENGRAM_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}
