package embedder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"engram/internal/domain"
)

func TestOllamaEmbedderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[[1,0,0]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, srv.URL, time.Second, 30*time.Second)
	vecs, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 {
		t.Fatalf("unexpected vector shape: %v", vecs)
	}
}

func TestOllamaEmbedderFailureMarksSticky(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, srv.URL, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	if _, err := e.Embed(ctx, []string{"hello"}); err == nil {
		t.Fatal("expected error on 500 response")
	}
	if e.Available() {
		t.Fatal("expected embedder to be unavailable right after a failure")
	}
	if _, err := e.Embed(ctx, []string{"again"}); err != domain.ErrEmbedderUnavailable {
		t.Fatalf("expected sticky ErrEmbedderUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected server hit exactly once during sticky window, got %d", got)
	}

	time.Sleep(60 * time.Millisecond)
	if !e.Available() {
		t.Fatal("expected embedder to recover after the failure window elapses")
	}
}

func TestOllamaEmbedderEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("m", 3, "http://unused.invalid", time.Second, time.Second)
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error for empty input, got %v", err)
	}
	if vecs != nil {
		t.Fatalf("expected nil vecs for empty input, got %v", vecs)
	}
}

func TestOllamaEmbedderDefaults(t *testing.T) {
	e := NewOllamaEmbedder("m", 768, "", 0, 0)
	if e.baseURL != "http://localhost:11434" {
		t.Fatalf("expected default baseURL, got %q", e.baseURL)
	}
	if e.failureWindow != 30*time.Second {
		t.Fatalf("expected default failure window 30s, got %v", e.failureWindow)
	}
}
