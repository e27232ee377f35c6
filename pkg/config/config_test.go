package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Matcher.PopupLimit != 3 || cfg.Matcher.ToolbarLimit != 5 {
		t.Errorf("limits = %d/%d, want 3/5", cfg.Matcher.PopupLimit, cfg.Matcher.ToolbarLimit)
	}
	if cfg.Matcher.MinScore != 0.1 || cfg.Matcher.AcceptScore != 0.2 {
		t.Errorf("scores = %v/%v, want 0.1/0.2", cfg.Matcher.MinScore, cfg.Matcher.AcceptScore)
	}
	if cfg.Selection.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Selection.PollInterval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := []byte("server:\n  port: 9999\nmatcher:\n  popupLimit: 4\n  toolbarLimit: 6\n  maxLimit: 10\n  minScore: 0.1\n  acceptScore: 0.2\n  containerPrefix: 50\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QM_SERVER_PORT", "7070")
	t.Setenv("QM_MATCHER_MIN_SCORE", "0.05")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Matcher.PopupLimit != 4 {
		t.Errorf("popup limit = %d, want 4", cfg.Matcher.PopupLimit)
	}
	if cfg.Matcher.MinScore != 0.05 {
		t.Errorf("min score = %v, want 0.05", cfg.Matcher.MinScore)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown corpus backend", func(c *Config) { c.Storage.Corpus = "sqlite" }},
		{"unknown kv backend", func(c *Config) { c.Storage.KV = "etcd" }},
		{"zero popup limit", func(c *Config) { c.Matcher.PopupLimit = 0 }},
		{"max below toolbar", func(c *Config) { c.Matcher.MaxLimit = 2 }},
		{"negative score", func(c *Config) { c.Matcher.MinScore = -1 }},
		{"auth without postgres", func(c *Config) { c.Auth.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
