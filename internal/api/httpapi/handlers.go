package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"engram/internal/domain"
	"engram/internal/ingest"
	"engram/internal/recall"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memory": map[string]any{
			"total":          status.Total,
			"withEmbeddings": status.WithEmbeddings,
			"byCategory":     status.ByCategory,
			"byNamespace":    status.ByNamespace,
		},
		"model": map[string]any{
			"name":      s.embedder.Name(),
			"available": s.embedder.Available(),
			"cached":    s.embedder.Warm(),
			"size":      s.embedder.Dimensions(),
		},
		"config": s.configSnapshot,
	})
}

type createMemoryRequest struct {
	Content    string          `json:"content"`
	Category   domain.Category `json:"category,omitempty"`
	Entity     *string         `json:"entity,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Namespace  string          `json:"namespace,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Source     domain.Source   `json:"source,omitempty"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleCreateMemory", domain.ErrInvalidField, "malformed JSON body"))
		return
	}

	res, err := s.ingest.Run(r.Context(), ingest.Request{
		Content:    req.Content,
		Category:   req.Category,
		Entity:     req.Entity,
		Confidence: req.Confidence,
		Namespace:  req.Namespace,
		Tags:       req.Tags,
		Source:     req.Source,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"memory":   res.Memory,
		"warnings": res.Warnings,
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	namespace := q.Get("namespace")
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	category := domain.Category(q.Get("category"))
	limit := parseIntDefault(q.Get("limit"), 20)
	offset := parseIntDefault(q.Get("offset"), 0)

	memories, total, err := s.store.List(r.Context(), domain.ListFilter{Namespace: namespace, Category: category}, limit, offset)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"pagination": map[string]any{
			"total": total, "limit": limit, "offset": offset,
		},
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mem, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, err := s.store.DeleteByID(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, domain.NewError("handleDeleteMemory", domain.ErrNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleBulkDelete", domain.ErrInvalidField, "malformed JSON body"))
		return
	}
	n, err := s.store.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

type searchRequest struct {
	Query     string          `json:"query"`
	Limit     int             `json:"limit,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Category  domain.Category `json:"category,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleSearch", domain.ErrInvalidField, "malformed JSON body"))
		return
	}

	results, err := s.recall.Run(r.Context(), recall.Query{
		Text:      req.Query,
		Namespace: req.Namespace,
		Category:  req.Category,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": results})
}

type consolidateRequest struct {
	DetectDuplicates     bool `json:"detectDuplicates"`
	DetectContradictions bool `json:"detectContradictions"`
	ApplyDecay           bool `json:"applyDecay"`
	CleanupStale         bool `json:"cleanupStale"`
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleConsolidate", domain.ErrInvalidField, "malformed JSON body"))
		return
	}

	report, err := s.consolidator.Run(r.Context(), domain.ConsolidateOptions{
		DetectDuplicates:     req.DetectDuplicates,
		DetectContradictions: req.DetectContradictions,
		ApplyDecay:           req.ApplyDecay,
		CleanupStale:         req.CleanupStale,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": report})
}

func (s *Server) handleListContradictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.ContradictionStatus(q.Get("status"))
	category := domain.Category(q.Get("category"))
	sortBy := q.Get("sort")

	contradictions, err := s.store.ListContradictions(r.Context(), status, category, sortBy)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	unresolved := 0
	for _, c := range contradictions {
		if c.Status == domain.ContradictionUnresolved {
			unresolved++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contradictions":  contradictions,
		"unresolvedCount": unresolved,
	})
}

type resolveContradictionRequest struct {
	Action domain.ResolutionAction `json:"action"`
}

func (s *Server) handleResolveContradiction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req resolveContradictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleResolveContradiction", domain.ErrInvalidField, "malformed JSON body"))
		return
	}

	if err := s.store.ResolveContradiction(r.Context(), id, req.Action, time.Now().UnixMilli()); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": true})
}

// handleConflicts is the legacy /api/conflicts alias (§9 Open Question #1):
// a simplified envelope over the unresolved subset of ListContradictions.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	contradictions, err := s.store.ListContradictions(r.Context(), domain.ContradictionUnresolved, "", "")
	if err != nil {
		writeMappedError(w, err)
		return
	}
	conflicts := make([]map[string]any, 0, len(contradictions))
	for _, c := range contradictions {
		conflicts = append(conflicts, map[string]any{
			"id":         c.ID,
			"entity":     c.Entity,
			"reason":     c.Reason,
			"memory1_id": c.Memory1ID,
			"memory2_id": c.Memory2ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

type bulkIngestItem struct {
	Content    string          `json:"content"`
	Category   domain.Category `json:"category,omitempty"`
	Entity     *string         `json:"entity,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Namespace  string          `json:"namespace,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Source     domain.Source   `json:"source,omitempty"`
}

type bulkIngestRequest struct {
	Items []bulkIngestItem `json:"items"`
}

type bulkIngestResult struct {
	Memory   *domain.Memory    `json:"memory,omitempty"`
	Warnings []ingest.Warning  `json:"warnings,omitempty"`
	Error    *domain.ErrorKind `json:"error,omitempty"`
}

// handleBulkIngest processes each item through the same per-item Ingest
// pipeline Run as POST /api/memories, one redaction/extraction/embed/put
// cycle per item: a batch never shares a pass's failure across items.
func (s *Server) handleBulkIngest(w http.ResponseWriter, r *http.Request) {
	var req bulkIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.NewError("handleBulkIngest", domain.ErrInvalidField, "malformed JSON body"))
		return
	}

	results := make([]bulkIngestResult, len(req.Items))
	for i, item := range req.Items {
		res, err := s.ingest.Run(r.Context(), ingest.Request{
			Content:    item.Content,
			Category:   item.Category,
			Entity:     item.Entity,
			Confidence: item.Confidence,
			Namespace:  item.Namespace,
			Tags:       item.Tags,
			Source:     item.Source,
		})
		if err != nil {
			kind := domain.ErrorKindOf(err)
			results[i] = bulkIngestResult{Error: &kind}
			continue
		}
		results[i] = bulkIngestResult{Memory: &res.Memory, Warnings: res.Warnings}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleExport dumps every memory in a namespace as a JSON array, for
// backup/migration; read-only, no pagination.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}

	const exportPageSize = 500
	var all []domain.Memory
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.store.List(r.Context(), domain.ListFilter{Namespace: namespace}, exportPageSize, offset)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		all = append(all, page...)
		if offset+len(page) >= total || len(page) == 0 {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"namespace": namespace, "memories": all})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
