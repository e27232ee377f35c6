package kvstore

import (
	"context"
	"os"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
)

func exercise(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	if err := kv.Set(ctx, "settings", []byte(`{"popupEnabled":false}`)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := kv.Get(ctx, "settings")
	if err != nil || !ok || string(v) != `{"popupEnabled":false}` {
		t.Fatalf("Get(settings) = %q, %v, %v", v, ok, err)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	kv := NewMemory()
	val := []byte("abc")
	kv.Set(context.Background(), "k", val)
	val[0] = 'x'
	got, _, _ := kv.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
}

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis(t *testing.T) {
	client := skipIfNoRedis(t)
	prefix := "qm-test:" + t.Name() + ":"
	t.Cleanup(func() { client.FlushByPattern(context.Background(), prefix+"*") })

	exercise(t, NewRedis(client, prefix, resilience.NewBreaker("kv-test", resilience.BreakerConfig{}, nil)))
}
