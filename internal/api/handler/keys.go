// Package handler serves the matcher's API-key administration endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/apikey"
	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
)

// KeyStore manages API keys. *apikey.Validator implements it.
type KeyStore interface {
	CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, *apikey.KeyInfo, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeID(ctx context.Context, id int64) error
}

type Keys struct {
	store            KeyStore
	defaultRateLimit int
	logger           *slog.Logger
}

func NewKeys(store KeyStore, defaultRateLimit int) *Keys {
	if defaultRateLimit <= 0 {
		defaultRateLimit = 120
	}
	return &Keys{
		store:            store,
		defaultRateLimit: defaultRateLimit,
		logger:           slog.Default().With("component", "keys-handler"),
	}
}

// Create handles POST /api/v1/admin/keys. The raw key is returned once.
func (h *Keys) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
		ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = h.defaultRateLimit
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	raw, info, err := h.store.CreateKey(r.Context(), req.Name, req.RateLimit, expiresAt)
	if err != nil {
		h.logger.Error("failed to create api key", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Message(err, "failed to create api key"))
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": raw,
		"key":     info,
	})
}

// List handles GET /api/v1/admin/keys.
func (h *Keys) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// Revoke handles DELETE /api/v1/admin/keys/{id}.
func (h *Keys) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "key id must be an integer")
		return
	}
	err = h.store.RevokeID(r.Context(), id)
	if errors.Is(err, apikey.ErrInvalidKey) {
		h.writeError(w, http.StatusNotFound, "api key not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to revoke api key", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to revoke api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Keys) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Keys) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
