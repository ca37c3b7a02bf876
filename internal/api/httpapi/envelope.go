package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"engram/internal/domain"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to the spec's status table and emits the consistent
// {error:{kind,message,details?}} envelope.
func writeError(w http.ResponseWriter, status int, err error) {
	kind := domain.ErrorKindOf(err)
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Kind:    kind,
		Message: err.Error(),
		Details: domain.DetailOf(err),
	}})
}

// statusForError maps an ErrorKind to its HTTP status per the spec's table.
func statusForError(err error) int {
	switch domain.ErrorKindOf(err) {
	case domain.KindEmptyContent, domain.KindInvalidField:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindSecretDetected:
		return http.StatusUnprocessableEntity
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method, "path", r.URL.Path,
				"status", ww.status, "duration", time.Since(start))
		})
	}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
