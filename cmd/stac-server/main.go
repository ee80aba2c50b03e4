package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/stac-search-api/internal/api"
	"github.com/mohammed-shakir/stac-search-api/internal/backend"
	"github.com/mohammed-shakir/stac-search-api/internal/backend/memstore"
	"github.com/mohammed-shakir/stac-search-api/internal/backend/redisstore"
	"github.com/mohammed-shakir/stac-search-api/internal/config"
	"github.com/mohammed-shakir/stac-search-api/internal/events"
	"github.com/mohammed-shakir/stac-search-api/internal/logger"
	"github.com/mohammed-shakir/stac-search-api/internal/observability"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "stac-server",
	}, os.Stdout)

	observability.ExposeBuildInfo(version)

	store, err := buildStore(cfg, log)
	if err != nil {
		return err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		kafka, err := events.NewKafka(strings.Split(cfg.Events.Brokers, ","), cfg.Events.Topic, log)
		if err != nil {
			return fmt.Errorf("events publisher: %w", err)
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("closing events publisher")
			}
		}()
		pub = kafka
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.New(cfg, store, pub, log).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.BackendDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildStore(cfg config.Config, log zerolog.Logger) (backend.Backend, error) {
	switch cfg.BackendDriver {
	case "memory":
		return memstore.New(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		return redisstore.New(rdb), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.BackendDriver)
	}
}
