package embedder

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"

	"engram/internal/domain"
)

// CachedEmbedder wraps a domain.Embedder with an LRU cache keyed by a hash of
// the input text, so repeated recall queries over the same phrase skip the
// inner provider entirely. Misses still go through the inner embedder one
// text at a time so a single cache-cold entry in a batch doesn't force
// re-embedding the whole batch.
type CachedEmbedder struct {
	inner    domain.Embedder
	capacity int

	mu    sync.Mutex
	ll    *list.List
	index map[uint64]*list.Element
}

type cacheEntry struct {
	key uint64
	vec []float32
}

// NewCachedEmbedder wraps inner with an LRU cache holding up to capacity
// entries. capacity <= 0 disables caching (every call passes through).
func NewCachedEmbedder(inner domain.Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{
		inner:    inner,
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[uint64]*list.Element),
	}
}

func hashText(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var misses []int

	if c.capacity > 0 {
		c.mu.Lock()
		for i, t := range texts {
			key := hashText(t)
			if el, ok := c.index[key]; ok {
				c.ll.MoveToFront(el)
				out[i] = el.Value.(*cacheEntry).vec
				continue
			}
			misses = append(misses, i)
		}
		c.mu.Unlock()
	} else {
		for i := range texts {
			misses = append(misses, i)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(misses))
	for j, i := range misses {
		missTexts[j] = texts[i]
	}
	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	if c.capacity > 0 {
		c.mu.Lock()
		for j, i := range misses {
			key := hashText(texts[i])
			c.store(key, vecs[j])
		}
		c.mu.Unlock()
	}
	for j, i := range misses {
		out[i] = vecs[j]
	}
	return out, nil
}

// store must be called with mu held.
func (c *CachedEmbedder) store(key uint64, vec []float32) {
	if el, ok := c.index[key]; ok {
		el.Value.(*cacheEntry).vec = vec
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, vec: vec})
	c.index[key] = el
	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		delete(c.index, back.Value.(*cacheEntry).key)
	}
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *CachedEmbedder) Name() string    { return c.inner.Name() }
func (c *CachedEmbedder) Available() bool { return c.inner.Available() }
func (c *CachedEmbedder) Warm() bool      { return c.inner.Warm() }

var _ domain.Embedder = (*CachedEmbedder)(nil)
