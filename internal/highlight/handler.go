package highlight

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
)

type Handler struct {
	service *Service
	maxBody int64
	logger  *slog.Logger
}

// NewHandler creates a Handler. Request bodies above maxBody bytes are
// rejected; maxBody <= 0 means no limit.
func NewHandler(service *Service, maxBody int64) *Handler {
	return &Handler{
		service: service,
		maxBody: maxBody,
		logger:  slog.Default().With("component", "highlight-handler"),
	}
}

// Highlight handles POST /api/v1/highlight.
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Highlight(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Clear handles POST /api/v1/highlight/clear with body {"html": "..."}.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HTML string `json:"html"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Clear(r.Context(), req.HTML)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := io.Reader(r.Body)
	if h.maxBody > 0 {
		// JSON escaping can grow the page, leave headroom over the html cap.
		body = io.LimitReader(r.Body, 2*h.maxBody)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("highlight failed", "error", err)
	}
	h.writeError(w, status, apperrors.Message(err, "highlight failed"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
