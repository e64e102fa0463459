package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/app/migrate"
	httpx "github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/http"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository/memory"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository/mongo"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/repository/postgres"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/service/logs"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/internal/ws"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/config"
	"github.com/MANOJPATIL143/Log-Ingestion-and-Querying-System/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.NewWithOptions("api", logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Format:     cfg.LogFormat,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open log store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.close()

	hub := ws.NewHub(ws.WithQueueSize(cfg.LogBuffer), ws.WithLogger(log))
	logSvc := logs.New(store.repo, hub, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, logSvc, httpx.Options{
		Limiter: limiter,
		Limits: httpx.RateLimits{
			Ingest:       cfg.RateLimitIngest,
			Query:        cfg.RateLimitQuery,
			Seed:         cfg.RateLimitSeed,
			Stream:       cfg.RateLimitStream,
			Window:       cfg.RateLimitWindow,
			StreamWindow: cfg.RateLimitWindow,
		},
		AllowedOrigins:    cfg.CORSOrigins,
		Health:            store.ping,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		WriteTimeout:      cfg.WSWriteTimeout,
		HeartbeatInterval: cfg.SSEHeartbeat,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// live connections are hijacked or long-lived, so Shutdown does not wait on them
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		hub.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

type logStore struct {
	repo  repository.LogRepository
	ping  func(context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (logStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if cfg.AutoMigrate {
			runner, err := migrate.New(cfg.DatabaseURL, cfg.MigrationsDir, log)
			if err != nil {
				return logStore{}, fmt.Errorf("configure migrations: %w", err)
			}
			if err := runner.Ensure(ctx); err != nil {
				return logStore{}, fmt.Errorf("apply migrations: %w", err)
			}
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return logStore{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return logStore{}, fmt.Errorf("ping postgres: %w", err)
		}
		repo := postgres.New(pool)
		return logStore{repo: repo, ping: repo.Ping, close: pool.Close}, nil

	case config.StoreDriverMongo:
		repo, err := mongo.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return logStore{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("mongo index creation failed", "error", err)
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Close(ctx); err != nil {
				log.Warn("mongo disconnect failed", "error", err)
			}
		}
		return logStore{repo: repo, ping: repo.Ping, close: closeFn}, nil

	case config.StoreDriverMemory:
		log.Warn("using in-memory log store; records are lost on restart")
		repo := memory.New()
		return logStore{repo: repo, ping: repo.Ping, close: func() {}}, nil

	default:
		return logStore{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
