package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Priya8975/event-recorder/internal/api"
	"github.com/Priya8975/event-recorder/internal/config"
	"github.com/Priya8975/event-recorder/internal/engine"
	"github.com/Priya8975/event-recorder/internal/store"
	"github.com/Priya8975/event-recorder/internal/telemetry"
	"github.com/Priya8975/event-recorder/internal/timesource"
	"github.com/Priya8975/event-recorder/internal/websocket"
	"github.com/Priya8975/event-recorder/internal/worker"
	"github.com/Priya8975/event-recorder/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    "event-recorder",
		ServiceVersion: api.Version,
		Insecure:       true,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	opts := timesource.Options{
		Instances:         cfg.TimeSourceURLs,
		Path:              cfg.TimeSourcePath,
		Timeout:           cfg.TimeSourceTimeout,
		RetriesNextServer: cfg.TimeSourceRetriesNextServer,
		RateLimit:         cfg.TimeSourceRateLimit,
	}

	// Redis is optional; without it every instance is always eligible.
	var breakerStates api.BreakerStates
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		breaker := engine.NewCircuitBreaker(redisStore.Client(), logger).
			WithThreshold(cfg.BreakerThreshold).
			WithCooldown(cfg.BreakerCooldown)
		opts.Breaker = breaker
		opts.Limiter = engine.NewRateLimiter(redisStore.Client(), logger)
		breakerStates = breaker
	}

	client, err := timesource.NewClient(opts, logger)
	if err != nil {
		logger.Error("failed to create time source client", "error", err)
		os.Exit(1)
	}

	pool := worker.NewPool(cfg.NumWorkers, client, logger)
	pool.Start()

	var events engine.EventStore
	switch cfg.EventStore {
	case config.StorePostgres:
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, migrations.FS); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
		events = pgStore
	default:
		events = store.NewMemory()
	}

	hub := websocket.NewHub(logger)
	go hub.Run()

	recorder := engine.NewRecorder(pool, events, logger).
		WithNotifier(hub).
		WithTimeout(cfg.RecordTimeout)

	router := api.NewRouter(api.Deps{
		Recorder:    recorder,
		TimeSources: client.Instances(),
		Breaker:     breakerStates,
		Pool:        pool,
		Hub:         hub,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"port", cfg.Port,
			"time_sources", len(cfg.TimeSourceURLs),
			"workers", cfg.NumWorkers,
			"event_store", cfg.EventStore,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// In-flight requests finish before the pool goes away.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	pool.Stop()
	hub.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
