package settings

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store:  store,
		logger: slog.Default().With("component", "settings-handler"),
	}
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Get(r.Context()))
}

// Put handles PUT /api/v1/settings. The body replaces the stored settings;
// absent keys take their defaults.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}
	settings, err := Decode(data)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid settings JSON")
		return
	}
	if err := h.store.Save(r.Context(), settings); err != nil {
		logger.FromContext(r.Context()).Error("saving settings failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "saving settings failed")
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

// Reset handles POST /api/v1/settings/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Reset(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("resetting settings failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "resetting settings failed")
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
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
