package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/kvstore"
)

func TestDecodeMissingKeysDefault(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Settings
	}{
		{"empty object", `{}`, Defaults()},
		{"one key", `{"popupEnabled":false}`, func() Settings { s := Defaults(); s.PopupEnabled = false; return s }()},
		{"null value keeps default", `{"autoHighlightEnabled":null}`, Defaults()},
		{"html popup", `{"htmlPopupEnabled":true,"inPagePopupOnly":true}`, func() Settings {
			s := Defaults()
			s.HTMLPopupEnabled = true
			s.InPagePopupOnly = true
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Decode(%s) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestShowToolbarPopup(t *testing.T) {
	s := Defaults()
	if !s.ShowToolbarPopup() {
		t.Error("defaults should show the toolbar popup")
	}
	s.InPagePopupOnly = true
	if s.ShowToolbarPopup() {
		t.Error("in-page only should suppress the toolbar popup")
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingKV) Set(context.Context, string, []byte) error { return errors.New("connection refused") }

func TestStoreDegradesToDefaults(t *testing.T) {
	ctx := context.Background()
	if got := NewStore(failingKV{}).Get(ctx); got != Defaults() {
		t.Errorf("Get() = %+v, want defaults", got)
	}

	kv := kvstore.NewMemory()
	kv.Set(ctx, key, []byte("not json"))
	if got := NewStore(kv).Get(ctx); got != Defaults() {
		t.Errorf("corrupt settings Get() = %+v", got)
	}
}

func TestStoreSaveReset(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewMemory())
	s := Defaults()
	s.KeyboardShortcutsEnabled = false
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if got := store.Get(ctx); got.KeyboardShortcutsEnabled {
		t.Error("saved value not returned")
	}
	if _, err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if got := store.Get(ctx); got != Defaults() {
		t.Errorf("after reset = %+v", got)
	}
}

func TestHandler(t *testing.T) {
	h := NewHandler(NewStore(kvstore.NewMemory()))

	rec := httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"popupEnabled":false}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	var got Settings
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.PopupEnabled || !got.AutoHighlightEnabled {
		t.Errorf("settings = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"popupEnabled":"no"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid put status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Reset(rec, httptest.NewRequest(http.MethodPost, "/api/v1/settings/reset", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"popupEnabled":true`) {
		t.Errorf("reset = %d %s", rec.Code, rec.Body)
	}
}
