// Package embedder provides domain.Embedder implementations: a deterministic
// hash-based test double for reproducible scoring, an LRU cache wrapper
// adapted from the pack's embedding cache, and an Ollama-backed provider for
// real deployments.
package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder is a deterministic test double: it one-hot-hashes each
// whitespace token of the input into a fixed-dimension vector and
// unit-normalizes the result. Same text always yields the same vector
// within the life of the process, as the spec's Embedder contract requires,
// without needing a real model runtime.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embedOne(t)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(text string) []float32 {
	v := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		hf := fnv.New32a()
		hf.Write([]byte(tok))
		v[int(hf.Sum32())%h.dim] += 1
	}
	normalize(v)
	return v
}

func tokenize(s string) []string {
	var toks []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if start >= 0 {
				toks = append(toks, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, s[start:])
	}
	return toks
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

func (h *HashEmbedder) Dimensions() int { return h.dim }
func (h *HashEmbedder) Name() string    { return "hash" }
func (h *HashEmbedder) Available() bool { return true }

// Warm is always true: the hash embedder has no model to load.
func (h *HashEmbedder) Warm() bool { return true }
