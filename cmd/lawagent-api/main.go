// Package main provides the LAWAgent API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sandjman56/LAWAgent-test/internal/analyze"
	"github.com/sandjman56/LAWAgent-test/internal/chunk"
	"github.com/sandjman56/LAWAgent-test/internal/config"
	"github.com/sandjman56/LAWAgent-test/internal/extract"
	"github.com/sandjman56/LAWAgent-test/internal/jobs"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/pipeline"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "lawagent",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("queue", cfg.Jobs.Queue).
		Str("analyzer", cfg.Analyzer.Provider).
		Msg("Starting LAWAgent API")

	db, err := storage.Open(storage.OpenOptions{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := storage.Migrate(context.Background(), db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	store := storage.NewStore(db)

	files, err := storage.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize file storage")
	}

	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize analyzer")
	}

	queue, err := buildQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize job queue")
	}

	extractor := extract.New(cfg.Storage.MaxPages)
	chunkOpts := chunk.Options{Size: cfg.Pipeline.ChunkSize, Overlap: cfg.Pipeline.ChunkOverlap}

	processor := pipeline.NewProcessor(store, files, extractor, chunkOpts, logger)
	spotter := pipeline.NewSpotter(store, analyzer, logger)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	runner := jobs.NewRunner(queue, processor, spotter, cfg.Jobs.Workers, logger)
	runner.Start(jobCtx)

	router := NewRouter(logger, cfg, store, files, queue)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	// Let in-flight jobs finish before tearing down the process.
	runner.Stop()
	cancelJobs()

	logger.Info().Msg("Server stopped")
}

func buildAnalyzer(cfg *config.Config) (analyze.Analyzer, error) {
	if cfg.Analyzer.Provider == "openai" {
		return analyze.NewOpenAIAnalyzer(analyze.OpenAIConfig{
			APIKey:         cfg.Analyzer.APIKey,
			Model:          cfg.Analyzer.Model,
			MaxTokens:      cfg.Analyzer.MaxTokens,
			RequestTimeout: cfg.Analyzer.RequestTimeout,
		})
	}
	return analyze.NewStubAnalyzer(), nil
}

func buildQueue(cfg *config.Config) (jobs.Queue, error) {
	if cfg.Jobs.Queue == "redis" {
		return jobs.NewRedisQueue(context.Background(), jobs.RedisOptions{
			Addr:     cfg.Jobs.Redis.Addr,
			Password: cfg.Jobs.Redis.Password,
			DB:       cfg.Jobs.Redis.DB,
			Key:      cfg.Jobs.Redis.Key,
		})
	}
	return jobs.NewMemoryQueue(cfg.Jobs.QueueSize), nil
}
