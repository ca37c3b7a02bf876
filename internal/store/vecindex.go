package store

import (
	"sync"

	"engram/internal/domain"
)

// vecIndex is an in-memory cache of domain.EmbeddedRow keyed by id, avoiding
// a SQLite scan on every recall/consolidation pass. It is loaded lazily on
// first use and updated incrementally by Put/ApplyMerge/DeleteByID.
type vecIndex struct {
	mu     sync.RWMutex
	rows   map[string]domain.EmbeddedRow
	loaded bool
}

func newVecIndex() *vecIndex {
	return &vecIndex{rows: make(map[string]domain.EmbeddedRow)}
}

func (idx *vecIndex) isLoaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

func (idx *vecIndex) size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rows)
}

func (idx *vecIndex) put(m domain.Memory) {
	if len(m.Embedding) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.loaded {
		return
	}
	idx.rows[m.ID] = domain.EmbeddedRow{
		ID: m.ID, Embedding: m.Embedding, Confidence: m.Confidence, DecayRate: m.DecayRate,
		AccessCount: m.AccessCount, LastAccessed: m.LastAccessed, CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt, Entity: m.Entity, Category: m.Category, Namespace: m.Namespace,
	}
}

func (idx *vecIndex) remove(id string) {
	idx.mu.Lock()
	delete(idx.rows, id)
	idx.mu.Unlock()
}

// invalidate forces a full reload on the next load() call, since a merge's
// winner row may have changed fields this cache doesn't refresh in place.
func (idx *vecIndex) invalidate(id string) {
	idx.mu.Lock()
	idx.loaded = false
	idx.rows = make(map[string]domain.EmbeddedRow)
	idx.mu.Unlock()
}

// snapshot returns the cached rows matching namespace/category, loading the
// cache from rows first if it hasn't been populated yet.
func (idx *vecIndex) snapshot(rows []domain.EmbeddedRow, namespace string, category domain.Category) []domain.EmbeddedRow {
	idx.mu.Lock()
	if !idx.loaded {
		idx.rows = make(map[string]domain.EmbeddedRow, len(rows))
		for _, r := range rows {
			idx.rows[r.ID] = r
		}
		idx.loaded = true
	}
	snapshot := make([]domain.EmbeddedRow, 0, len(idx.rows))
	for _, r := range idx.rows {
		if namespace != "" && r.Namespace != namespace {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		snapshot = append(snapshot, r)
	}
	idx.mu.Unlock()
	return snapshot
}
