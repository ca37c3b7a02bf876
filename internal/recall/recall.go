// Package recall answers a memory query with a hybrid score blending
// semantic similarity, keyword match, recency, confidence, and access
// frequency.
package recall

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"engram/internal/domain"
)

const (
	weightSimilarity = 0.5
	weightRecency    = 0.15
	weightConfidence = 0.20
	weightAccess     = 0.05
	weightFTSBoost   = 0.1

	ftsCandidateLimit = 20

	defaultLimit     = 5
	maxLimit         = 100
	defaultThreshold = 0.3

	// millisPerDay converts the epoch-millisecond timestamps stored on Memory
	// (spec.md §3) into days for the recency term.
	millisPerDay = 86400000.0
)

// Query is a recall request. Limit/Threshold default when zero.
type Query struct {
	Text      string
	Namespace string
	Category  domain.Category
	Limit     int
	Threshold float64
}

// Recall answers queries against a Store and an Embedder.
type Recall struct {
	store    domain.Store
	embedder domain.Embedder
	logger   *slog.Logger
	now      func() int64

	maxScanCandidates int
}

// Option configures a Recall.
type Option func(*Recall)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() int64) Option {
	return func(r *Recall) { r.now = now }
}

// WithMaxScanCandidates bounds the embedded-universe scan size (spec default 10000).
func WithMaxScanCandidates(n int) Option {
	return func(r *Recall) { r.maxScanCandidates = n }
}

// New creates a Recall wired to store and embedder.
func New(store domain.Store, embedder domain.Embedder, logger *slog.Logger, opts ...Option) *Recall {
	r := &Recall{
		store:             store,
		embedder:          embedder,
		logger:            logger,
		now:               func() int64 { return time.Now().UnixMilli() },
		maxScanCandidates: 10000,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type candidate struct {
	mem   domain.Memory
	inFTS bool
}

// Run executes the recall algorithm and returns ranked, scored results.
func (r *Recall) Run(ctx context.Context, q Query) ([]domain.ScoredMemory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	threshold := q.Threshold
	if q.Threshold == 0 {
		threshold = defaultThreshold
	}

	namespace := q.Namespace
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}

	degraded := r.embedder == nil || !r.embedder.Available()
	var queryVec []float32
	if !degraded {
		vec, err := domain.EmbedOne(ctx, r.embedder, q.Text)
		if err != nil {
			degraded = true
			r.logger.Warn("query embedding failed, recalling in degraded FTS-only mode", "error", err)
		} else {
			queryVec = vec
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewError("Recall.Run", domain.ErrCanceled, "")
	}

	candidates, err := r.gatherCandidates(ctx, namespace, q.Category, q.Text)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewError("Recall.Run", domain.ErrCanceled, "")
	}

	now := r.now()
	scored := make([]domain.ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		breakdown, score := r.score(c, queryVec, now)
		if breakdown.Similarity < threshold && !degraded {
			continue
		}
		scored = append(scored, domain.ScoredMemory{
			Memory:         c.mem,
			Score:          score,
			ScoreBreakdown: breakdown,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aLA, bLA := lastAccessedOrZero(a.Memory), lastAccessedOrZero(b.Memory)
		if aLA != bLA {
			return aLA > bLA
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID < b.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	if err := ctx.Err(); err != nil {
		// A canceled recall must not emit an access-bump.
		return scored, nil
	}
	r.bumpAccessFireAndForget(scored, now)

	return scored, nil
}

func lastAccessedOrZero(m domain.Memory) int64 {
	if m.LastAccessed == nil {
		return 0
	}
	return *m.LastAccessed
}

// gatherCandidates unions the top-20 FTS hits with every embedded memory in
// scope, deduped by id, tagged in_fts.
func (r *Recall) gatherCandidates(ctx context.Context, namespace string, category domain.Category, query string) ([]candidate, error) {
	byID := make(map[string]*candidate)

	if query != "" {
		hits, err := r.store.FTSQuery(ctx, namespace, category, query, ftsCandidateLimit)
		if err != nil {
			return nil, domain.NewError("Recall.gatherCandidates", domain.ErrStoreUnavailable, err.Error())
		}
		for _, h := range hits {
			mem, err := r.store.Get(ctx, h.ID)
			if err != nil {
				continue // deleted between FTS match and fetch; skip
			}
			byID[mem.ID] = &candidate{mem: mem, inFTS: true}
		}
	}

	rows, err := r.store.IterateEmbedded(ctx, namespace, domain.ListFilter{Category: category}, r.maxScanCandidates)
	if err != nil {
		return nil, domain.NewError("Recall.gatherCandidates", domain.ErrStoreUnavailable, err.Error())
	}
	for _, row := range rows {
		if _, ok := byID[row.ID]; ok {
			continue
		}
		mem, err := r.store.Get(ctx, row.ID)
		if err != nil {
			continue
		}
		byID[row.ID] = &candidate{mem: mem, inFTS: false}
	}

	out := make([]candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	return out, nil
}

// score computes the weighted recall score and its breakdown for one candidate.
func (r *Recall) score(c candidate, queryVec []float32, now int64) (domain.ScoreBreakdown, float64) {
	similarity := 0.0
	if len(queryVec) > 0 && len(c.mem.Embedding) > 0 {
		similarity = math.Max(0, domain.Cosine(queryVec, c.mem.Embedding))
	}

	touchedAt := c.mem.CreatedAt
	if c.mem.LastAccessed != nil {
		touchedAt = *c.mem.LastAccessed
	}
	daysSince := math.Max(0, float64(now-touchedAt)/millisPerDay)
	recency := 1.0 / (1.0 + daysSince*c.mem.DecayRate)

	confidence := c.mem.Confidence

	access := math.Min(1.0, math.Log(1+float64(c.mem.AccessCount))/math.Log(1+100))

	ftsBoost := 0.0
	if c.inFTS {
		ftsBoost = weightFTSBoost
	}

	score := weightSimilarity*similarity + weightRecency*recency + weightConfidence*confidence + weightAccess*access + ftsBoost

	return domain.ScoreBreakdown{
		Similarity: similarity,
		Recency:    recency,
		Confidence: confidence,
		Access:     access,
		FTSBoost:   ftsBoost,
	}, score
}

// bumpAccessFireAndForget updates access_count/last_accessed for the
// returned ids. Failure is logged, never surfaced — callers already have
// their (pre-update) rows.
func (r *Recall) bumpAccessFireAndForget(scored []domain.ScoredMemory, now int64) {
	if len(scored) == 0 {
		return
	}
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	go func() {
		if err := r.store.BumpAccess(context.Background(), ids, now); err != nil {
			r.logger.Warn("access bump failed", "error", err)
		}
	}()
}
