// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidforge/internal/config"
	"bidforge/internal/domain/ports/adapter"
	"bidforge/internal/infra/adapters/vision"
	pg "bidforge/internal/infra/db/postgres"
	"bidforge/internal/infra/logging"
	"bidforge/internal/infra/metrics"
	red "bidforge/internal/infra/redis"
	"bidforge/internal/infra/registry"
	"bidforge/internal/infra/web"
	"bidforge/internal/infra/worker"
	"bidforge/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Redis (optional) ----
	var (
		cache   *red.AnalysisCache
		limiter *red.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		cache = red.NewAnalysisCache(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; analysis cache and rate limiting disabled")
	}

	// ---- Vision provider ----
	visionAdapter, err := vision.NewAdapter(ctx, cfg.Vision)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.Vision.Provider).Msg("vision adapter")
	}
	visionAdapter = vision.NewLimitedVision(visionAdapter, cfg.Worker.Workers)
	logger.Info().
		Str("provider", visionAdapter.Provider()).
		Str("model", visionAdapter.Model()).
		Msg("vision adapter ready")

	// ---- Vector store (optional, needs Postgres + OpenAI key) ----
	var vectors adapter.VectorStore
	if cfg.Database.URL != "" && cfg.Vision.OpenAIKey != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()

		embedder, err := vision.NewOpenAIEmbedder(cfg.Vision.OpenAIKey, cfg.Vector.EmbeddingModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("embedder")
		}
		store := pg.NewVectorStore(pool, embedder, cfg.Vector.Collection, cfg.Vector.Dimensions, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("vector schema")
		}
		vectors = store
	} else {
		logger.Warn().Msg("vector store disabled; set database.url and an OpenAI key to enable")
	}

	// ---- Use cases ----
	sketchUC, err := usecase.NewSketchUseCase(visionAdapter, cache, limiter, cfg.Vision, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("sketch usecase")
	}
	orchUC, err := usecase.NewOrchestratorUseCase(sketchUC, vectors, cfg.Workflow.MaxHops, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("workflow graph")
	}

	jobRegistry := registry.NewInMemory(logger)
	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()

	jobUC := usecase.NewJobUseCase(jobRegistry, orchUC, pool, logger)

	// ---- HTTP API ----
	srv := web.NewServer(orchUC, jobUC, cfg.Server.AdminAPIKey, cfg.Server.SessionSecret, cfg.Server.MaxUploadMB, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
