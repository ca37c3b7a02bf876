package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"engram/internal/api/httpapi"
	"engram/internal/config"
	"engram/internal/consolidate"
	"engram/internal/domain"
	"engram/internal/embedder"
	"engram/internal/ingest"
	"engram/internal/logger"
	"engram/internal/recall"
	"engram/internal/store"
	"engram/internal/toolproto"
	"engram/internal/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("ENGRAM_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./engram.yaml"
	}
	return filepath.Join(home, ".engram", "config.yaml")
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Store.DataDir, "models"), 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.Store.DataDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	// 2. Logger & tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Single-process exclusive lock on the data directory, so a second
	// daemon pointed at the same ~/.engram/ fails fast instead of
	// corrupting memory.db underneath the first.
	unlock, err := acquireDataDirLock(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("acquire data dir lock: %w", err)
	}
	defer unlock()

	// 4. Embedder
	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}

	// 5. Store
	st, err := store.Open(cfg.Store, emb.Dimensions(), log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	// 6. Core components
	ing := ingest.New(st, emb, log)
	rec := recall.New(st, emb, log)
	con := consolidate.New(st, log, consolidate.WithThresholds(
		cfg.Consolidation.DuplicateThreshold,
		cfg.Consolidation.ContradictionThresh,
		cfg.Consolidation.StaleConfidenceBelow,
		cfg.Consolidation.StaleAgeDays,
		cfg.Consolidation.BatchSize,
	))

	// 7. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 8. Consolidation scheduler
	if cfg.Consolidation.Enabled {
		sched, err := consolidate.NewScheduler(con, consolidateOptionsFromConfig(), cfg.Consolidation.Schedule, log)
		if err != nil {
			return fmt.Errorf("consolidation scheduler: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPEnabled {
		api := httpapi.NewServer(st, emb, ing, rec, con, log, httpapi.WithConfigSnapshot(configSnapshot(cfg)))
		httpServer = &http.Server{
			Addr:    cfg.Server.HTTPAddr,
			Handler: api.Router(),
		}
		go func() {
			log.Info("http server listening", "addr", cfg.Server.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
	}

	if cfg.Server.StdioEnabled {
		tp := toolproto.NewServer(st, ing, rec, log)
		go func() {
			log.Info("stdio tool server starting")
			if err := tp.Serve(ctx); err != nil {
				log.Error("stdio tool server error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
	}

	return nil
}

func newEmbedder(cfg config.EmbeddingConfig) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Provider {
	case "ollama":
		base = embedder.NewOllamaEmbedder(cfg.Model, cfg.Dimensions, cfg.BaseURL, cfg.RequestTimeout, cfg.FailureWindow)
	case "hash", "":
		dim := cfg.Dimensions
		if dim <= 0 {
			dim = 256
		}
		base = embedder.NewHashEmbedder(dim)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return embedder.NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}

// consolidateOptionsFromConfig is the scheduler's default pass selection:
// every scheduled run exercises all four passes.
func consolidateOptionsFromConfig() domain.ConsolidateOptions {
	return domain.ConsolidateOptions{
		DetectDuplicates:     true,
		DetectContradictions: true,
		ApplyDecay:           true,
		CleanupStale:         true,
	}
}

// configSnapshot is the non-secret subset of Config surfaced by GET
// /api/status; it omits Embedding.APIKey.
func configSnapshot(cfg *config.Config) map[string]any {
	return map[string]any{
		"dataDir":               cfg.Store.DataDir,
		"embeddingProvider":     cfg.Embedding.Provider,
		"embeddingModel":        cfg.Embedding.Model,
		"embeddingDimensions":   cfg.Embedding.Dimensions,
		"consolidationEnabled":  cfg.Consolidation.Enabled,
		"consolidationSchedule": cfg.Consolidation.Schedule,
	}
}

func acquireDataDirLock(dataDir string) (func(), error) {
	lockPath := filepath.Join(dataDir, "memory.db.lock")
	fd, err := unix.Open(lockPath, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("another engramd is already running against %s", dataDir)
	}
	return func() {
		unix.Flock(fd, unix.LOCK_UN)
		unix.Close(fd)
	}, nil
}
