package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/cache"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/database"
	"github.com/stemsi/exstem-assembly/internal/handler"
	"github.com/stemsi/exstem-assembly/internal/llm"
	"github.com/stemsi/exstem-assembly/internal/logger"
	"github.com/stemsi/exstem-assembly/internal/middleware"
	"github.com/stemsi/exstem-assembly/internal/repository"
	"github.com/stemsi/exstem-assembly/internal/router"
	"github.com/stemsi/exstem-assembly/internal/service"
	"github.com/stemsi/exstem-assembly/internal/validator"
	"github.com/stemsi/exstem-assembly/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Assembly")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid assembly configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	testRepo := repository.NewTestRepository(pool)

	// ─── Generative Model ──────────────────────────────────────────────
	// Without an API key the pipeline runs bank-only: stored quality scores
	// are trusted and shortfalls cannot be repaired.
	var classifier assembly.Classifier
	var generator assembly.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		defer gemini.Close()

		classifier = cache.NewScoreCache(llm.NewClassifier(gemini), rdb, cfg.ScoreCacheTTL, log)
		generator = llm.NewGenerator(gemini)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, running without classifier and generator")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	usageQueue := worker.NewUsageQueue(rdb)
	assemblyService := service.NewAssemblyService(service.AssemblyDeps{
		Questions:  questionRepo,
		Tests:      testRepo,
		Classifier: classifier,
		Generator:  generator,
		Usage:      usageQueue,
		AnswerKeys: cache.NewAnswerKeyCache(rdb),
	}, opts, log)
	questionService := service.NewQuestionService(questionRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Assembly: handler.NewAssemblyHandler(assemblyService, cfg.AssemblyTimeout, log),
		Question: handler.NewQuestionHandler(questionService),
		System:   handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	usageWorker := worker.NewUsageWorker(questionRepo, rdb, cfg.UsageBatchSize, log)
	workerDone := make(chan struct{})
	go func() {
		usageWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	assemblyLimiter := middleware.NewRateLimiter(rdb, cfg.AssemblyRateLimit, time.Minute, log)
	r := router.SetupRouter(handlers, assemblyLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	// Assembly requests are cancelled at AssemblyTimeout; the write timeout
	// must outlast that so the 503 still reaches the caller.
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AssemblyTimeout + 30*time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests; in-flight assemblies get 30s.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the usage worker and wait for its queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Usage worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
