package embedder

import (
	"context"
	"sync/atomic"
	"testing"

	"engram/internal/domain"
)

// countingEmbedder wraps HashEmbedder and counts how many underlying
// Embed calls it receives, so tests can confirm cache hits skip it.
type countingEmbedder struct {
	inner domain.Embedder
	calls int64
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&c.calls, int64(len(texts)))
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Name() string    { return c.inner.Name() }
func (c *countingEmbedder) Available() bool { return c.inner.Available() }
func (c *countingEmbedder) Warm() bool { return c.inner.Warm() }

func TestCachedEmbedderHitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	cached := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, []string{"hello world"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := cached.Embed(ctx, []string{"hello world"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := atomic.LoadInt64(&inner.calls); got != 1 {
		t.Fatalf("expected inner embedder called once, got %d", got)
	}
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	cached := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, []string{"a"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	vecs, err := cached.Embed(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if got := atomic.LoadInt64(&inner.calls); got != 2 {
		t.Fatalf("expected inner embedder called for 'a' once and 'b' once (2 total), got %d", got)
	}
}

func TestCachedEmbedderEvictsLRU(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	cached.Embed(ctx, []string{"x"})
	cached.Embed(ctx, []string{"y"})
	cached.Embed(ctx, []string{"z"}) // evicts "x"

	before := atomic.LoadInt64(&inner.calls)
	cached.Embed(ctx, []string{"x"}) // must miss again
	after := atomic.LoadInt64(&inner.calls)
	if after != before+1 {
		t.Fatalf("expected evicted entry to miss on re-request, calls before=%d after=%d", before, after)
	}
}

func TestCachedEmbedderZeroCapacityDisablesCache(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(32)}
	cached := NewCachedEmbedder(inner, 0)
	ctx := context.Background()

	cached.Embed(ctx, []string{"repeat"})
	cached.Embed(ctx, []string{"repeat"})
	if got := atomic.LoadInt64(&inner.calls); got != 2 {
		t.Fatalf("expected every call to pass through with capacity 0, got %d calls", got)
	}
}

func TestCachedEmbedderDelegatesMetadata(t *testing.T) {
	inner := NewHashEmbedder(64)
	cached := NewCachedEmbedder(inner, 4)
	if cached.Dimensions() != 64 {
		t.Fatalf("expected delegated dimensions 64, got %d", cached.Dimensions())
	}
	if cached.Name() != "hash" {
		t.Fatalf("expected delegated name 'hash', got %q", cached.Name())
	}
	if !cached.Available() {
		t.Fatal("expected delegated availability true")
	}
}
