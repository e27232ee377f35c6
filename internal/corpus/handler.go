package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
)

// Handler serves the corpus management endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "corpus-handler"),
	}
}

type recordRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type indexedRecord struct {
	Index int `json:"index"`
	QARecord
}

// List handles GET /api/v1/corpus.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "listing corpus failed")
		return
	}
	out := make([]indexedRecord, len(records))
	for i, rec := range records {
		out[i] = indexedRecord{Index: i, QARecord: rec}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"records": out,
		"total":   len(out),
	})
}

// Create handles POST /api/v1/corpus.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	index, err := h.service.Add(r.Context(), req.Question, req.Answer)
	if err != nil {
		h.fail(w, r, err, "adding record failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"index": index})
}

// Update handles PUT /api/v1/corpus/{index}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.service.Update(r.Context(), index, req.Question, req.Answer); err != nil {
		h.fail(w, r, err, "updating record failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"index": index})
}

// Delete handles DELETE /api/v1/corpus/{index}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), index); err != nil {
		h.fail(w, r, err, "deleting record failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/v1/corpus/import. The body is the export format.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Import(r.Context(), r.Body)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidImport) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "Invalid Q&A data format.",
				"detail": apperrors.Message(err, ""),
			})
			return
		}
		h.fail(w, r, err, "importing corpus failed")
		return
	}
	logger.FromContext(r.Context()).Info("corpus imported", "records", n)
	h.writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// Export handles GET /api/v1/corpus/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		h.fail(w, r, err, "exporting corpus failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write export", "error", err)
	}
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		h.writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(fallback, "error", err, "status_code", status)
	}
	h.writeError(w, status, apperrors.Message(err, fallback))
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
