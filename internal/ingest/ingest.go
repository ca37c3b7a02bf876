// Package ingest orchestrates a single memory write: redact, extract, embed,
// then persist. It is the only package allowed to call Store.Put.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"engram/internal/domain"
	"engram/internal/extract"
	"engram/internal/idgen"
	"engram/internal/redact"
)

// Request is the caller-supplied input to Ingest. Every field but Content is
// optional; Extract fills in whatever is left zero-valued.
type Request struct {
	Content    string
	Category   domain.Category
	Entity     *string
	Confidence float64
	Namespace  string
	Tags       []string
	Source     domain.Source
}

// Warning names a non-fatal degradation attached to a successful ingest.
type Warning string

const (
	WarnDegradedEmbedding Warning = "DegradedEmbedding"
	WarnSecretMasked      Warning = "SecretMasked"
)

// Result is the outcome of a successful Ingest call.
type Result struct {
	Memory   domain.Memory
	Warnings []Warning
}

// Ingest orchestrates Redactor -> Extractor -> Embedder -> Store for a single
// write, per the spec's fixed step order. It never retries redaction or
// extraction; Store's DuplicateId is the only step retried.
type Ingest struct {
	store    domain.Store
	embedder domain.Embedder
	logger   *slog.Logger
	now      func() int64
}

// Option configures an Ingest.
type Option func(*Ingest)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() int64) Option {
	return func(i *Ingest) { i.now = now }
}

// New creates an Ingest wired to store and embedder.
func New(store domain.Store, embedder domain.Embedder, logger *slog.Logger, opts ...Option) *Ingest {
	ing := &Ingest{
		store:    store,
		embedder: embedder,
		logger:   logger,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Run executes the ingest pipeline for req.
func (ing *Ingest) Run(ctx context.Context, req Request) (Result, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Result{}, domain.NewError("Ingest.Run", domain.ErrEmptyContent, "")
	}
	if len(content) > domain.MaxContentLen {
		return Result{}, domain.NewError("Ingest.Run", domain.ErrInvalidField, "content")
	}
	if req.Category != "" && !domain.ValidCategory(req.Category) {
		return Result{}, domain.NewError("Ingest.Run", domain.ErrInvalidField, "category")
	}
	if req.Confidence != 0 && (req.Confidence < 0 || req.Confidence > 1) {
		return Result{}, domain.NewError("Ingest.Run", domain.ErrInvalidField, "confidence")
	}

	var warnings []Warning

	scan := redact.Scan(content)
	if scan.Blocked {
		return Result{}, domain.NewError("Ingest.Run", domain.ErrSecretDetected, scan.Pattern)
	}
	content = scan.Content
	if len(scan.MaskedBy) > 0 {
		warnings = append(warnings, WarnSecretMasked)
		ing.logger.Warn("secret masked in ingested content", "patterns", scan.MaskedBy)
	}

	filled := extract.Fill(content, extract.Fields{
		Category:   req.Category,
		Entity:     req.Entity,
		Confidence: req.Confidence,
		Tags:       req.Tags,
	})

	namespace := req.Namespace
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	source := req.Source
	if source == "" {
		source = domain.SourceAPI
	}

	var embedding []float32
	if ing.embedder != nil && ing.embedder.Available() {
		vec, err := domain.EmbedOne(ctx, ing.embedder, content)
		if err != nil {
			warnings = append(warnings, WarnDegradedEmbedding)
			ing.logger.Warn("embedding failed, storing without vector", "error", err)
		} else {
			embedding = vec
		}
	} else {
		warnings = append(warnings, WarnDegradedEmbedding)
	}

	now := ing.now()
	mem := domain.Memory{
		Content:     content,
		Entity:      filled.Entity,
		Category:    filled.Category,
		Confidence:  filled.Confidence,
		Embedding:   embedding,
		Source:      source,
		Namespace:   namespace,
		Tags:        filled.Tags,
		AccessCount: 0,
		DecayRate:   defaultDecayRate(filled.Category),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := ing.putWithRetry(ctx, &mem); err != nil {
		return Result{}, err
	}

	return Result{Memory: mem, Warnings: warnings}, nil
}

// putWithRetry allocates a fresh id on DuplicateId and retries exactly once,
// per the spec's "retry once with a fresh id, then fail" rule.
func (ing *Ingest) putWithRetry(ctx context.Context, mem *domain.Memory) error {
	mem.ID = idgen.New()
	err := ing.store.Put(ctx, *mem)
	if err == nil {
		return nil
	}
	if domain.ErrorKindOf(err) != domain.KindDuplicateID {
		return err
	}

	mem.ID = idgen.New()
	if err := ing.store.Put(ctx, *mem); err != nil {
		return err
	}
	return nil
}

// defaultDecayRate assigns a per-category base decay rate: preferences and
// decisions are durable (low decay); outcomes and patterns from observation
// fade faster absent reinforcement.
func defaultDecayRate(c domain.Category) float64 {
	switch c {
	case domain.CategoryPreference, domain.CategoryDecision:
		return 0.01
	case domain.CategoryPattern:
		return 0.03
	default:
		return 0.02
	}
}
