package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"engram/internal/domain"
)

// OllamaEmbedder implements domain.Embedder over the Ollama embedding API.
// Available() reports false for a sticky window after a failed call, so
// Ingest/Recall can degrade instead of retrying a model load on every
// request.
type OllamaEmbedder struct {
	model   string
	dims    int
	baseURL string
	client  *http.Client

	failureWindow time.Duration

	mu         sync.Mutex
	failedAt   time.Time
	hasFailure bool
	warmed     bool
}

// NewOllamaEmbedder creates an Ollama embedding provider. baseURL defaults to
// http://localhost:11434 when empty.
func NewOllamaEmbedder(model string, dims int, baseURL string, timeout, failureWindow time.Duration) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if failureWindow <= 0 {
		failureWindow = 30 * time.Second
	}
	return &OllamaEmbedder{
		model:         model,
		dims:          dims,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: timeout},
		failureWindow: failureWindow,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements domain.Embedder. On failure it marks the embedder
// unavailable for failureWindow before allowing another attempt.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if !o.Available() {
		return nil, domain.ErrEmbedderUnavailable
	}

	vecs, err := o.callEmbed(ctx, texts)
	if err != nil {
		o.mu.Lock()
		o.hasFailure = true
		o.failedAt = time.Now()
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedderUnavailable, err)
	}
	o.mu.Lock()
	o.warmed = true
	o.mu.Unlock()
	return vecs, nil
}

func (o *OllamaEmbedder) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	for i := range parsed.Embeddings {
		normalize(parsed.Embeddings[i])
	}
	return parsed.Embeddings, nil
}

func (o *OllamaEmbedder) Dimensions() int { return o.dims }
func (o *OllamaEmbedder) Name() string    { return "ollama:" + o.model }

// Available implements domain.Embedder: fast, non-blocking, sticky within
// the configured failure window.
func (o *OllamaEmbedder) Available() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hasFailure {
		return true
	}
	if time.Since(o.failedAt) > o.failureWindow {
		o.hasFailure = false
		return true
	}
	return false
}

// Warm reports whether the model has served at least one successful Embed
// call since process start.
func (o *OllamaEmbedder) Warm() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.warmed
}

var _ domain.Embedder = (*OllamaEmbedder)(nil)
