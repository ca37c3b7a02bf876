package embedder

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	h := NewHashEmbedder(128)
	ctx := context.Background()

	v1, err := h.Embed(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := h.Embed(ctx, []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("same text produced different vectors at index %d: %f vs %f", i, v1[0][i], v2[0][i])
		}
	}
}

func TestHashEmbedderDifferentTextDiffers(t *testing.T) {
	h := NewHashEmbedder(128)
	ctx := context.Background()

	vecs, err := h.Embed(ctx, []string{"alpha beta", "gamma delta epsilon"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if equalVectors(vecs[0], vecs[1]) {
		t.Fatal("distinct inputs produced identical vectors")
	}
}

func TestHashEmbedderUnitLength(t *testing.T) {
	h := NewHashEmbedder(64)
	vecs, err := h.Embed(context.Background(), []string{"one two three four"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sumSq float64
	for _, f := range vecs[0] {
		sumSq += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Fatalf("expected unit-length vector, got norm %f", norm)
	}
}

func TestHashEmbedderEmptyTextIsZeroVector(t *testing.T) {
	h := NewHashEmbedder(32)
	vecs, err := h.Embed(context.Background(), []string{""})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, f := range vecs[0] {
		if f != 0 {
			t.Fatalf("expected zero vector for empty input, got %v", vecs[0])
		}
	}
}

func TestHashEmbedderDefaultDimension(t *testing.T) {
	h := NewHashEmbedder(0)
	if h.Dimensions() != 256 {
		t.Fatalf("expected default dimension 256, got %d", h.Dimensions())
	}
}

func TestHashEmbedderAlwaysAvailable(t *testing.T) {
	h := NewHashEmbedder(16)
	if !h.Available() {
		t.Fatal("hash embedder should always be available")
	}
}

func equalVectors(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
