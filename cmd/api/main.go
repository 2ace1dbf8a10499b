package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "bank_reviews/internal/adapters/http_server"
	"bank_reviews/internal/adapters/observability"
	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
	"bank_reviews/internal/shared"
	"bank_reviews/internal/storage/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	// db: the backend is explicit; there is no fallback store
	backend, err := sqlstore.ParseBackend(cfg.StoreBackend)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid STORE_BACKEND")
	}
	repo, err := sqlstore.Open(ctx, backend, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store unavailable")
	}
	defer repo.Close()
	log.Info().Str("backend", string(backend)).Msg("database connection ok")

	// cache is optional; reports fall back to the store
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, serving without cache")
			_ = rc.Close()
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New(10 * time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
