// Command matcher starts the quiz answer matcher service.
//
// It serves the corpus, settings, selection, search and highlight APIs from
// one process. Storage backends are chosen by config: the corpus lives in
// memory or PostgreSQL, settings and the current selection in memory or
// Redis. Corpus changes invalidate the query cache locally and, when Kafka
// is configured, on every other instance through the corpus-changes topic.
//
// Usage:
//
//	go run ./cmd/matcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics/snapshot"
	apihandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/highlight"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/kvstore"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/selection"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/tracing"
)

const selectionKey = "selection"

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting matcher service",
		"port", cfg.Server.Port,
		"corpus_storage", cfg.Storage.Corpus,
		"kv_storage", cfg.Storage.KV,
		"auth", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}
	onBreaker := func(name string, state resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}

	checker := health.NewChecker()

	// Corpus storage.
	var (
		db          *postgres.Client
		corpusStore corpus.Store
	)
	switch cfg.Storage.Corpus {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		corpusStore = corpus.NewPostgresStore(db)
		checker.Register("postgres", health.PingCheck(db.Ping, true))
		slog.Info("connected to postgres", "host", cfg.Postgres.Host)
	default:
		corpusStore = corpus.NewMemoryStore()
	}

	// Redis backs settings, the selection slot and the query cache.
	var redisClient *pkgredis.Client
	if cfg.Storage.KV == "redis" || cfg.Redis.CacheTTL > 0 {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		switch {
		case err != nil && cfg.Storage.KV == "redis":
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		case err != nil:
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		checker.Register("redis", health.PingCheck(redisClient.Ping, cfg.Storage.KV == "redis"))
	}

	var (
		kv   kvstore.KV
		slot selection.Slot
	)
	if cfg.Storage.KV == "redis" {
		kvBreaker := resilience.NewBreaker("redis-kv", resilience.BreakerConfig{}, onBreaker)
		checker.Register("redis-kv-breaker", health.BreakerCheck(kvBreaker, true))
		kv = kvstore.NewRedis(redisClient, "qm:", kvBreaker)
		slot = selection.NewRedisSlot(redisClient, "qm:"+selectionKey, kvBreaker)
	} else {
		kv = kvstore.NewMemory()
		slot = selection.NewMemorySlot()
	}
	settingsStore := settings.NewStore(kv)

	// Analytics.
	var (
		aggregator *analytics.Aggregator
		collector  *analytics.Collector
		snapshots  *snapshot.Store
	)
	matchPublisher := kafka.NewPublisher(cfg.Kafka, cfg.Kafka.Topics.MatchEvents)
	defer matchPublisher.Close()
	if cfg.Analytics.Enabled {
		aggregator = analytics.NewAggregator()
		collector = analytics.NewCollector(matchPublisher, cfg.Analytics.BufferSize, 100, time.Second, aggregator)
		collector.Start(ctx)
		defer collector.Close()
		if db != nil {
			snapshots = snapshot.NewStore(db)
		}
	}

	// Corpus service and search.
	changePublisher := kafka.NewPublisher(cfg.Kafka, cfg.Kafka.Topics.CorpusChanges)
	defer changePublisher.Close()
	corpusSvc := corpus.NewService(corpusStore, changePublisher, m)

	var queryCache *cache.QueryCache
	if redisClient != nil && cfg.Redis.CacheTTL > 0 {
		cacheBreaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{}, onBreaker)
		checker.Register("redis-cache-breaker", health.BreakerCheck(cacheBreaker, false))
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cacheBreaker, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}
	exec := executor.New(corpusStore, cfg.Matcher)
	search := searcher.New(exec, queryCache, m)

	corpusSvc.OnChange(func(event corpus.ChangeEvent) {
		if err := search.Invalidate(context.Background()); err != nil {
			slog.Warn("cache invalidation after corpus change failed", "op", event.Op, "error", err)
		}
		if aggregator != nil {
			aggregator.Record(analytics.CorpusChangeEvent{
				Op:        string(event.Op),
				Index:     event.Index,
				Count:     event.Count,
				ChangedAt: event.ChangedAt,
			})
		}
	})
	if cfg.Storage.SeedCorpus {
		if _, err := corpusSvc.Seed(ctx); err != nil {
			slog.Warn("seeding corpus failed", "error", err)
		}
	}
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		n, err := corpusSvc.Count(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d records", n)}
	})

	tracer := tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)
	highlighter := highlight.New(corpusStore, settingsStore, nil, cfg.Matcher, cfg.Page, tracer, m, collector)

	handlers := router.Handlers{
		Corpus:    corpus.NewHandler(corpusSvc),
		Settings:  settings.NewHandler(settingsStore),
		Search:    searchhandler.New(search, collector),
		Selection: selection.NewHandler(slot, settingsStore, search, cfg.Selection.PollInterval),
		Highlight: highlight.NewHandler(highlighter, cfg.Page.MaxHTMLBytes),
		Health:    checker,
	}
	if aggregator != nil {
		var lister analytics.SnapshotLister
		if snapshots != nil {
			lister = snapshots
		}
		handlers.Analytics = analytics.NewHandler(aggregator, lister)
	}

	opts := router.Options{
		Metrics:        m,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
		Timeout:        cfg.Server.WriteTimeout,
	}
	if cfg.Auth.Enabled {
		validator := apikey.NewValidator(db)
		limiter := ratelimit.New(cfg.Auth.RateWindow)
		defer limiter.Close()
		opts.Validator = validator
		opts.Limiter = limiter
		handlers.Keys = apihandler.NewKeys(validator, cfg.Auth.DefaultRateLimit)
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router.New(handlers, opts),
		ReadTimeout: cfg.Server.ReadTimeout,
		// The selection stream holds its response open, so no WriteTimeout
		// here; the Timeout middleware bounds every other route.
	}

	g, gctx := errgroup.WithContext(ctx)

	// Warms toolbar matches for each new selection so the popup reads them
	// from the cache.
	toolbar, err := exec.Lookup(executor.PolicyToolbar, 0)
	if err != nil {
		slog.Error("toolbar policy missing", "error", err)
		os.Exit(1)
	}
	poller := selection.NewPoller(slot, cfg.Selection.PollInterval, func(ctx context.Context, text string) {
		if _, err := search.Search(ctx, text, toolbar); err != nil {
			slog.Warn("warming selection matches failed", "error", err)
		}
	}, m)
	g.Go(func() error { return poller.Run(gctx) })

	if len(cfg.Kafka.Brokers) > 0 {
		// Every instance needs every change, so each gets its own group.
		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusChanges, "cache-"+host, func(ctx context.Context, msg kafka.Message) error {
			if msg.Type != corpus.ChangeEventType {
				return nil
			}
			return search.Invalidate(ctx)
		})
		g.Go(func() error { return consumer.Start(gctx) })
	}

	if snapshots != nil && cfg.Analytics.SnapshotInterval > 0 {
		g.Go(func() error { return snapshots.Run(gctx, aggregator, cfg.Analytics.SnapshotInterval) })
	}

	g.Go(func() error {
		slog.Info("matcher service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("matcher service error", "error", err)
		os.Exit(1)
	}
	slog.Info("matcher service stopped")
}
