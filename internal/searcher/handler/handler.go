package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/middleware"
)

type Handler struct {
	search    *searcher.Service
	collector *analytics.Collector
	logger    *slog.Logger
}

// New creates a Handler. collector may be nil.
func New(search *searcher.Service, collector *analytics.Collector) *Handler {
	return &Handler{
		search:    search,
		collector: collector,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&policy=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	policyName := r.URL.Query().Get("policy")
	if policyName == "" {
		policyName = executor.PolicyPopup
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	policy, err := h.search.Executor().Lookup(policyName, limit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.search.Search(ctx, query, policy)
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	result := outcome.Result
	var topScore float64
	if len(result.Results) > 0 {
		topScore = result.Results[0].Score
	}
	log.Info("search completed",
		"policy", policy.Name,
		"returned", len(result.Results),
		"cache_hit", outcome.CacheHit,
		"latency_ms", outcome.Latency.Milliseconds(),
	)
	h.collector.Track(analytics.MatchEvent{
		Type:      analytics.EventMatch,
		Query:     query,
		Policy:    policy.Name,
		Returned:  len(result.Results),
		TopScore:  topScore,
		CacheHit:  outcome.CacheHit,
		LatencyMs: outcome.Latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})

	h.writeJSON(w, http.StatusOK, result)
}

// Best handles GET /api/v1/search/best?q=. It reports the single best record
// and, when it clears the acceptance threshold, its parsed answer tokens.
func (h *Handler) Best(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	best, err := h.search.Executor().Best(r.Context(), query)
	if err != nil {
		logger.FromContext(r.Context()).Error("best match failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	h.writeJSON(w, http.StatusOK, best)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	queryCache := h.search.Cache()
	if queryCache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := queryCache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.search.Cache() == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.search.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
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
