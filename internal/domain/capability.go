package domain

import "context"

// Embedder is a capability, not a service: given text, return a
// fixed-dimension unit-length float vector, or fail. Modeled on the
// teacher's EmbeddingProvider interface (single-text callers use it through
// EmbedOne for the common case of embedding one query or one memory).
type Embedder interface {
	// Embed generates embeddings for a batch of texts in one call.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the dimensionality of the vectors this embedder produces.
	Dimensions() int
	// Name identifies the embedder implementation (e.g. "hash", "ollama").
	Name() string
	// Available reports, without blocking, whether the embedder can currently
	// serve requests. Used to decide degraded-mode behavior in Ingest/Recall.
	Available() bool
	// Warm reports whether the model has already been lazily initialized by
	// a prior successful call, so GET /api/status can distinguish a cold
	// (not-yet-loaded) model from a warm one without forcing a load.
	Warm() bool
}

// EmbedOne embeds a single text, the common case for query/content embedding.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrEmbedderUnavailable
	}
	return vecs[0], nil
}

// Cosine computes the dot product of two already-unit-normalized vectors.
// Callers rely on both inputs being pre-normalized; Cosine does not
// renormalize. Returns 0 for length mismatch or empty vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// EmbeddedRow is one row yielded by Store.IterateEmbedded: the slice of a
// memory's fields Recall and Consolidator need without paying for the full
// row (content, tags, etc).
type EmbeddedRow struct {
	ID           string
	Embedding    []float32
	Confidence   float64
	DecayRate    float64
	AccessCount  int64
	LastAccessed *int64
	CreatedAt    int64
	UpdatedAt    int64
	Entity       *string
	Category     Category
	Namespace    string
}

// ListFilter narrows Store.List / Store.IterateEmbedded.
type ListFilter struct {
	Namespace string // empty = no namespace filter (internal callers only; API always sets one)
	Category  Category
}

// FTSHit is one candidate returned by Store.FTSQuery.
type FTSHit struct {
	ID   string
	Rank float64
}

// MergedFields is the set of winner fields Consolidator.applyMerge writes.
type MergedFields struct {
	AccessCount int64
	Tags        []string
	Confidence  float64
	UpdatedAt   int64
}

// Store is the durable persistence contract: relational rows for Memory and
// Contradiction, a co-indexed full-text index, and a single-writer
// concurrency discipline (§5 of the spec). All namespace filtering happens
// inside these methods — callers can never forget to scope a query.
type Store interface {
	Put(ctx context.Context, m Memory) error
	Get(ctx context.Context, id string) (Memory, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Memory, int, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	BulkDelete(ctx context.Context, ids []string) (int, error)

	FTSQuery(ctx context.Context, namespace string, category Category, terms string, limit int) ([]FTSHit, error)
	IterateEmbedded(ctx context.Context, namespace string, filter ListFilter, cap int) ([]EmbeddedRow, error)
	BumpAccess(ctx context.Context, ids []string, at int64) error

	ApplyMerge(ctx context.Context, winnerID string, loserIDs []string, merged MergedFields) error

	PutContradiction(ctx context.Context, c Contradiction) error
	GetContradictionBetween(ctx context.Context, id1, id2 string) (*Contradiction, error)
	ListContradictions(ctx context.Context, status ContradictionStatus, category Category, sort string) ([]Contradiction, error)
	ResolveContradiction(ctx context.Context, id string, action ResolutionAction, at int64) error

	// DecayBatch applies a confidence update to up to len(updates) rows in one
	// transaction; used by Consolidator's decay pass to batch writes.
	DecayBatch(ctx context.Context, updates map[string]float64, at int64) error
	// DeleteStale deletes memories matching the stale-cleanup predicate and
	// returns the count removed.
	DeleteStale(ctx context.Context, confidenceBelow float64, ageDaysAbove int, at int64) (int, error)

	Status(ctx context.Context) (StoreStatus, error)
	Close() error
}

// StoreStatus feeds GET /api/status.
type StoreStatus struct {
	Total          int
	WithEmbeddings int
	ByCategory     map[Category]int
	ByNamespace    map[string]int
	EmbeddingDim   int
}
