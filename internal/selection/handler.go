package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
)

// maxSelectionBytes caps a stored selection.
const maxSelectionBytes = 1 << 16

// Update is the response to storing a selection: what the extension should
// do next under the current settings.
type Update struct {
	Text      string `json:"text"`
	ShowPopup bool   `json:"showPopup"`
	Highlight bool   `json:"highlight"`
}

type Handler struct {
	slot         Slot
	settings     *settings.Store
	search       *searcher.Service
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewHandler(slot Slot, settingsStore *settings.Store, search *searcher.Service, pollInterval time.Duration) *Handler {
	return &Handler{
		slot:         slot,
		settings:     settingsStore,
		search:       search,
		pollInterval: pollInterval,
		logger:       slog.Default().With("component", "selection-handler"),
	}
}

// Put handles PUT /api/v1/selection with body {"text": "..."}. Blank
// selections are rejected and leave the slot unchanged.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSelectionBytes)).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(body.Text)
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "selection text is required")
		return
	}
	if err := h.slot.Set(r.Context(), text); err != nil {
		logger.FromContext(r.Context()).Error("storing selection failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "storing selection failed")
		return
	}
	s := h.settings.Get(r.Context())
	h.writeJSON(w, http.StatusOK, Update{
		Text:      text,
		ShowPopup: s.ShowToolbarPopup(),
		Highlight: s.AutoHighlightEnabled,
	})
}

// Get handles GET /api/v1/selection.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	text, err := h.slot.Get(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("reading selection failed", "error", err)
		text = ""
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// Matches handles GET /api/v1/selection/matches: the toolbar popup's matches
// for the current selection.
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	text, err := h.slot.Get(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("reading selection failed", "error", err)
	}
	result, err := h.matches(r.Context(), text)
	if err != nil {
		logger.FromContext(r.Context()).Error("selection matches failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Stream handles GET /api/v1/selection/stream, sending a "matches" event
// each time the selection changes.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}
	ctx := r.Context()
	log := logger.FromContext(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	poller := NewPoller(h.slot, h.pollInterval, func(ctx context.Context, text string) {
		result, err := h.matches(ctx, text)
		if err != nil {
			log.Warn("stream matches failed", "error", err)
			return
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: matches\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}, nil)

	log.Debug("selection stream opened")
	poller.Run(ctx)
	log.Debug("selection stream closed")
}

func (h *Handler) matches(ctx context.Context, text string) (*executor.SearchResult, error) {
	policy, err := h.search.Executor().Lookup(executor.PolicyToolbar, 0)
	if err != nil {
		return nil, err
	}
	outcome, err := h.search.Search(ctx, text, policy)
	if err != nil {
		return nil, err
	}
	return outcome.Result, nil
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
