// Package consolidate periodically folds near-duplicate memories, detects
// contradictions, decays stale confidence, and deletes memories that have
// aged out without use. All passes read a snapshot and commit through the
// single writer in bounded batches.
package consolidate

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"engram/internal/domain"
	"engram/internal/idgen"
)

// millisPerDay converts the epoch-millisecond timestamps stored on Memory
// (spec.md §3) into days for the decay pass.
const millisPerDay = 86400000.0

// Consolidator runs the four consolidation passes against a Store.
type Consolidator struct {
	store  domain.Store
	logger *slog.Logger
	now    func() int64

	duplicateThreshold   float64
	contradictionThresh  float64
	staleConfidenceBelow float64
	staleAgeDays         int
	batchSize            int
}

// Option configures a Consolidator.
type Option func(*Consolidator)

func WithClock(now func() int64) Option { return func(c *Consolidator) { c.now = now } }

func WithThresholds(duplicate, contradiction, staleConfidence float64, staleAgeDays, batchSize int) Option {
	return func(c *Consolidator) {
		c.duplicateThreshold = duplicate
		c.contradictionThresh = contradiction
		c.staleConfidenceBelow = staleConfidence
		c.staleAgeDays = staleAgeDays
		c.batchSize = batchSize
	}
}

// New creates a Consolidator with the spec's default thresholds.
func New(store domain.Store, logger *slog.Logger, opts ...Option) *Consolidator {
	c := &Consolidator{
		store:                store,
		logger:               logger,
		now:                  func() int64 { return time.Now().UnixMilli() },
		duplicateThreshold:   0.92,
		contradictionThresh:  0.7,
		staleConfidenceBelow: 0.15,
		staleAgeDays:         90,
		batchSize:            100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// negationTokens is the closed list of polarity markers used to tell two
// topically-close statements about the same entity apart.
var negationTokens = []string{"not", "never", "no longer", "don't", "doesn't", "isn't", "won't", "can't", "stopped", "without"}

func hasNegation(content string) bool {
	lower := strings.ToLower(content)
	for _, tok := range negationTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Run executes the passes selected by opts and returns their combined report.
func (c *Consolidator) Run(ctx context.Context, opts domain.ConsolidateOptions) (domain.ConsolidateReport, error) {
	start := c.now()
	var report domain.ConsolidateReport

	if opts.DetectDuplicates {
		n, err := c.detectDuplicates(ctx)
		if err != nil {
			return report, err
		}
		report.DuplicatesRemoved = n
	}
	if err := ctx.Err(); err != nil {
		return report, nil
	}

	if opts.DetectContradictions {
		n, err := c.detectContradictions(ctx)
		if err != nil {
			return report, err
		}
		report.ContradictionsDetected = n
	}
	if err := ctx.Err(); err != nil {
		return report, nil
	}

	if opts.ApplyDecay {
		n, err := c.applyDecay(ctx)
		if err != nil {
			return report, err
		}
		report.MemoriesDecayed = n
	}
	if err := ctx.Err(); err != nil {
		return report, nil
	}

	if opts.CleanupStale {
		n, err := c.store.DeleteStale(ctx, c.staleConfidenceBelow, c.staleAgeDays, c.now())
		if err != nil {
			return report, domain.NewError("Consolidator.Run", domain.ErrStoreUnavailable, err.Error())
		}
		report.StaleDeleted = n
	}

	report.DurationMS = c.now() - start
	return report, nil
}

// detectDuplicates clusters embedded memories within each namespace by
// pairwise cosine >= duplicateThreshold, merges each cluster's losers into
// its winner, and returns the number of memories removed.
func (c *Consolidator) detectDuplicates(ctx context.Context) (int, error) {
	rows, err := c.store.IterateEmbedded(ctx, "", domain.ListFilter{}, 0)
	if err != nil {
		return 0, domain.NewError("Consolidator.detectDuplicates", domain.ErrStoreUnavailable, err.Error())
	}

	byNamespace := make(map[string][]domain.EmbeddedRow)
	for _, r := range rows {
		byNamespace[r.Namespace] = append(byNamespace[r.Namespace], r)
	}

	removed := 0
	processedSinceYield := 0
	for _, nsRows := range byNamespace {
		clusters := clusterByCosine(nsRows, c.duplicateThreshold)
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			n, err := c.mergeCluster(ctx, cluster)
			if err != nil {
				return removed, err
			}
			removed += n
			processedSinceYield += len(cluster)
			if processedSinceYield >= c.batchSize {
				runtime.Gosched()
				processedSinceYield = 0
				if err := ctx.Err(); err != nil {
					return removed, nil
				}
			}
		}
	}
	return removed, nil
}

// clusterByCosine groups rows via union-find: any pair with cosine >=
// threshold joins the same cluster (transitively).
func clusterByCosine(rows []domain.EmbeddedRow, threshold float64) [][]domain.EmbeddedRow {
	n := len(rows)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if domain.Cosine(rows[i].Embedding, rows[j].Embedding) >= threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]domain.EmbeddedRow)
	for i, r := range rows {
		root := find(i)
		groups[root] = append(groups[root], r)
	}
	out := make([][]domain.EmbeddedRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// mergeCluster picks the winner by (higher confidence, higher access_count,
// newer updated_at, smaller id) and merges the rest into it.
func (c *Consolidator) mergeCluster(ctx context.Context, cluster []domain.EmbeddedRow) (int, error) {
	sort.Slice(cluster, func(i, j int) bool {
		a, b := cluster[i], cluster[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.AccessCount != b.AccessCount {
			return a.AccessCount > b.AccessCount
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ID < b.ID
	})

	winner := cluster[0]
	losers := cluster[1:]
	loserIDs := make([]string, len(losers))
	for i, l := range losers {
		loserIDs[i] = l.ID
	}

	winnerMem, err := c.store.Get(ctx, winner.ID)
	if err != nil {
		return 0, domain.NewError("Consolidator.mergeCluster", domain.ErrStoreUnavailable, err.Error())
	}

	tagSet := make(map[string]bool)
	tagUnion := append([]string{}, winnerMem.Tags...)
	for _, t := range tagUnion {
		tagSet[t] = true
	}

	accessSum := winner.AccessCount
	maxConfidence := winner.Confidence
	for _, l := range losers {
		accessSum += l.AccessCount
		if l.Confidence > maxConfidence {
			maxConfidence = l.Confidence
		}
		loserMem, err := c.store.Get(ctx, l.ID)
		if err != nil {
			continue
		}
		for _, t := range loserMem.Tags {
			if !tagSet[t] {
				tagSet[t] = true
				tagUnion = append(tagUnion, t)
			}
		}
	}

	merged := domain.MergedFields{
		AccessCount: accessSum,
		Tags:        tagUnion,
		Confidence:  maxConfidence,
		UpdatedAt:   c.now(),
	}

	if err := c.store.ApplyMerge(ctx, winner.ID, loserIDs, merged); err != nil {
		return 0, domain.NewError("Consolidator.mergeCluster", domain.ErrStoreUnavailable, err.Error())
	}
	return len(losers), nil
}

// detectContradictions groups memories by entity and flags pairs whose
// content differs in negation polarity, or whose category is preference/
// decision with high textual overlap but differing polarity.
func (c *Consolidator) detectContradictions(ctx context.Context) (int, error) {
	rows, err := c.store.IterateEmbedded(ctx, "", domain.ListFilter{}, 0)
	if err != nil {
		return 0, domain.NewError("Consolidator.detectContradictions", domain.ErrStoreUnavailable, err.Error())
	}

	byEntity := make(map[string][]domain.EmbeddedRow)
	for _, r := range rows {
		if r.Entity == nil || *r.Entity == "" {
			continue
		}
		byEntity[*r.Entity] = append(byEntity[*r.Entity], r)
	}

	detected := 0
	for entity, group := range byEntity {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				cos := domain.Cosine(a.Embedding, b.Embedding)
				if cos < c.contradictionThresh {
					continue
				}

				memA, errA := c.store.Get(ctx, a.ID)
				memB, errB := c.store.Get(ctx, b.ID)
				if errA != nil || errB != nil {
					continue
				}

				reason := contradictionReason(memA, memB)
				if reason == "" {
					continue
				}

				if existing, _ := c.store.GetContradictionBetween(ctx, a.ID, b.ID); existing != nil {
					continue
				}

				confidence := math.Min(cos, 1-math.Abs(memA.Confidence-memB.Confidence)/2)
				contradiction := domain.Contradiction{
					ID:         idgen.New(),
					Memory1ID:  a.ID,
					Memory2ID:  b.ID,
					Entity:     entity,
					Confidence: confidence,
					Reason:     reason,
					Status:     domain.ContradictionUnresolved,
					DetectedAt: c.now(),
				}
				if err := c.store.PutContradiction(ctx, contradiction); err != nil {
					return detected, domain.NewError("Consolidator.detectContradictions", domain.ErrStoreUnavailable, err.Error())
				}
				detected++
			}
		}
		if err := ctx.Err(); err != nil {
			return detected, nil
		}
	}
	return detected, nil
}

// contradictionReason names the trigger for a flagged pair, or "" if the
// pair doesn't qualify as a contradiction.
func contradictionReason(a, b domain.Memory) string {
	if hasNegation(a.Content) != hasNegation(b.Content) {
		return "negation_polarity"
	}
	if (a.Category == domain.CategoryPreference || a.Category == domain.CategoryDecision) &&
		a.Category == b.Category && wordOverlap(a.Content, b.Content) >= 0.5 {
		return "category_overlap:" + string(a.Category)
	}
	return ""
}

// wordOverlap is the Jaccard similarity of the two contents' lowercased
// token sets.
func wordOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

// applyDecay reduces confidence := confidence * (1 - decay_rate *
// days_since_last_touch) for every memory with decay_rate > 0, batching
// writes in units of batchSize and yielding the writer between batches.
func (c *Consolidator) applyDecay(ctx context.Context) (int, error) {
	now := c.now()
	decayed := 0
	offset := 0
	const pageSize = 500

	for {
		memories, total, err := c.store.List(ctx, domain.ListFilter{}, pageSize, offset)
		if err != nil {
			return decayed, domain.NewError("Consolidator.applyDecay", domain.ErrStoreUnavailable, err.Error())
		}
		if len(memories) == 0 {
			break
		}

		updates := make(map[string]float64)
		for _, m := range memories {
			if m.DecayRate <= 0 {
				continue
			}
			touchedAt := m.UpdatedAt
			if m.LastAccessed != nil && *m.LastAccessed > touchedAt {
				touchedAt = *m.LastAccessed
			}
			daysSince := math.Max(0, float64(now-touchedAt)/millisPerDay)
			newConfidence := m.Confidence * (1 - m.DecayRate*daysSince)
			newConfidence = math.Max(0, math.Min(1, newConfidence))
			if newConfidence != m.Confidence {
				updates[m.ID] = newConfidence
			}
		}

		for len(updates) > 0 {
			batch := make(map[string]float64, c.batchSize)
			for id, conf := range updates {
				batch[id] = conf
				delete(updates, id)
				if len(batch) >= c.batchSize {
					break
				}
			}
			if err := c.store.DecayBatch(ctx, batch, now); err != nil {
				return decayed, domain.NewError("Consolidator.applyDecay", domain.ErrStoreUnavailable, err.Error())
			}
			decayed += len(batch)
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return decayed, nil
			}
		}

		offset += len(memories)
		if offset >= total {
			break
		}
	}
	return decayed, nil
}
