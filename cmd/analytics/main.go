// Command analytics starts the standalone analytics aggregation service.
//
// It consumes match, highlight and corpus-change events from Kafka,
// aggregates them in memory (match totals, no-match count, score histogram,
// latency percentiles, top queries, highlight outcomes) and serves them at
// GET /api/v1/analytics. With PostgreSQL reachable it also persists periodic
// snapshots, listed at GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port, "brokers", cfg.Kafka.Brokers)

	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("analytics service requires kafka.brokers")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	aggregator := analytics.NewAggregator()
	checker := health.NewChecker()

	var snapshots *snapshot.Store
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		snapshots = snapshot.NewStore(db)
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{cfg.Kafka.Topics.MatchEvents, cfg.Kafka.Topics.CorpusChanges} {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, "analytics", aggregator.HandleMessage)
		g.Go(func() error { return consumer.Start(gctx) })
	}
	if snapshots != nil && cfg.Analytics.SnapshotInterval > 0 {
		g.Go(func() error { return snapshots.Run(gctx, aggregator, cfg.Analytics.SnapshotInterval) })
	}

	var lister analytics.SnapshotLister
	if snapshots != nil {
		lister = snapshots
	}
	analyticsHandler := analytics.NewHandler(aggregator, lister)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
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
		slog.Error("analytics service error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
