package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/redis/go-redis/v9"
)

type fakeBackend struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string)}
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

var popup = ranker.Policy{Name: "popup", Limit: 3, MinScore: 0.1}

func TestKeyIgnoresWordOrderAndShortWords(t *testing.T) {
	c := New(newFakeBackend(), time.Minute, nil, nil)
	a := c.buildKey("What is a conceptual model?", popup)
	b := c.buildKey("model conceptual, what", popup)
	if a != b {
		t.Errorf("keys differ: %s vs %s", a, b)
	}
	if a == c.buildKey("conceptual model", popup) {
		t.Error("different token sets share a key")
	}
	toolbar := ranker.Policy{Name: "toolbar", Limit: 5, MinScore: 0.1}
	if a == c.buildKey("What is a conceptual model?", toolbar) {
		t.Error("different policies share a key")
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newFakeBackend(), time.Minute, nil, nil)
	ctx := context.Background()
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{Policy: "popup", Limit: 3, Results: []ranker.ScoredRecord{}}, nil
	}

	first, hit, err := c.GetOrCompute(ctx, "conceptual model", popup, compute)
	if err != nil || hit {
		t.Fatalf("first call hit=%v err=%v", hit, err)
	}
	if first.Query != "conceptual model" {
		t.Errorf("query = %q", first.Query)
	}

	second, hit, err := c.GetOrCompute(ctx, "Model, conceptual", popup, compute)
	if err != nil || !hit {
		t.Fatalf("second call hit=%v err=%v", hit, err)
	}
	if second.Query != "Model, conceptual" {
		t.Errorf("cached result should carry the caller's query, got %q", second.Query)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times", calls.Load())
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrComputePropagatesError(t *testing.T) {
	c := New(newFakeBackend(), time.Minute, nil, nil)
	_, _, err := c.GetOrCompute(context.Background(), "conceptual", popup, func() (*executor.SearchResult, error) {
		return nil, errors.New("store down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBackendFailureIsAMiss(t *testing.T) {
	backend := newFakeBackend()
	backend.failGet = true
	c := New(backend, time.Minute, nil, nil)
	if _, ok := c.Get(context.Background(), "conceptual", popup); ok {
		t.Fatal("expected miss")
	}
}

func TestInvalidate(t *testing.T) {
	backend := newFakeBackend()
	backend.data["settings"] = "{}"
	c := New(backend, time.Minute, nil, nil)
	ctx := context.Background()
	c.Set(ctx, "conceptual model", popup, &executor.SearchResult{})

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "conceptual model", popup); ok {
		t.Error("entry survived invalidation")
	}
	if _, ok := backend.data["settings"]; !ok {
		t.Error("invalidation removed a foreign key")
	}
}
