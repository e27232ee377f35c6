// Package settings holds the user's feature toggles and persists them in the
// key-value store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/kvstore"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
)

const key = "settings"

// Settings are the user's feature toggles. A key missing from stored or
// submitted JSON takes its default.
type Settings struct {
	AutoHighlightEnabled     bool `json:"autoHighlightEnabled"`
	PopupEnabled             bool `json:"popupEnabled"`
	HTMLPopupEnabled         bool `json:"htmlPopupEnabled"`
	InPagePopupOnly          bool `json:"inPagePopupOnly"`
	AutoClearSelection       bool `json:"autoClearSelection"`
	KeyboardShortcutsEnabled bool `json:"keyboardShortcutsEnabled"`
}

// Defaults returns the settings used before the user changes anything.
func Defaults() Settings {
	return Settings{
		AutoHighlightEnabled:     true,
		PopupEnabled:             true,
		HTMLPopupEnabled:         false,
		InPagePopupOnly:          false,
		AutoClearSelection:       true,
		KeyboardShortcutsEnabled: true,
	}
}

// Decode parses settings JSON, filling absent keys with defaults.
func Decode(data []byte) (Settings, error) {
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// ShowToolbarPopup reports whether a new selection should open the toolbar
// popup.
func (s Settings) ShowToolbarPopup() bool {
	return s.PopupEnabled && !s.InPagePopupOnly
}

// Store loads and saves Settings.
type Store struct {
	kv     kvstore.KV
	logger *slog.Logger
}

func NewStore(kv kvstore.KV) *Store {
	return &Store{
		kv:     kv,
		logger: slog.Default().With("component", "settings"),
	}
}

// Get returns the stored settings. Missing or unreadable settings yield the
// defaults; failures are logged, never returned.
func (s *Store) Get(ctx context.Context) Settings {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("reading settings failed, using defaults", "error", err)
		return Defaults()
	}
	if !ok {
		return Defaults()
	}
	settings, err := Decode(data)
	if err != nil {
		logger.FromContext(ctx).Warn("stored settings unreadable, using defaults", "error", err)
		return Defaults()
	}
	return settings
}

// Save persists settings.
func (s *Store) Save(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	s.logger.Debug("settings saved", "settings", settings)
	return nil
}

// Reset restores and returns the defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	d := Defaults()
	return d, s.Save(ctx, d)
}
