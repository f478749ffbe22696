package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/rs/zerolog"

	"chat-gate/api/internal/config"
	"chat-gate/api/internal/gate"
	"chat-gate/api/internal/handle"
	"chat-gate/api/internal/httpserver"
	"chat-gate/api/internal/llm"
	"chat-gate/api/internal/llm/gemini"
	"chat-gate/api/internal/llm/openai"
	"chat-gate/api/internal/ratelimit"
	"chat-gate/api/internal/store"
	"chat-gate/api/internal/store/memory"
	"chat-gate/api/internal/store/postgres"
	redisstore "chat-gate/api/internal/store/redis"
	"chat-gate/api/internal/turnstile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg.LogLevel)

	counters, ping, closeFn, err := initStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init counter store")
	}
	defer closeFn()

	engines := &llm.Engines{
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
	}
	engine, err := engines.GetEngine(cfg.LLMEngine)
	if err != nil {
		logger.Fatal().Err(err).Str("engine", cfg.LLMEngine).Msg("failed to select engine")
	}

	h := handle.New(
		cfg,
		gate.NewCORS(cfg.AllowedOrigins),
		ratelimit.New(counters, cfg.PerMinuteLimit, cfg.PerDayLimit, nil, logger),
		turnstile.New(cfg.TurnstileSecret),
		engine,
		logger,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.New(h, ping, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("engine", engine.Name()).
			Str("model", engine.GetModel()).Str("store", cfg.StoreType).Msg("chat-gate listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func initStore(cfg *config.Config, logger zerolog.Logger) (store.Counter, func(context.Context) error, func(), error) {
	switch cfg.StoreType {
	case "redis":
		rs, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := rs.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close redis store")
			}
		}
		return rs, rs.Ping, closeFn, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("db ping failed: %w", err)
		}

		ps := postgres.New(db)
		if err := ps.Migrate(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate failed: %w", err)
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close db")
			}
		}
		return ps, ps.Ping, closeFn, nil

	case "memory":
		return memory.New(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}
