package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/internal/cache"
	"github.com/tankwatch/tankwatch/internal/db"
	"github.com/tankwatch/tankwatch/internal/etl"
	"github.com/tankwatch/tankwatch/internal/openai"
	"github.com/tankwatch/tankwatch/internal/reddit"
	"github.com/tankwatch/tankwatch/pkg/config"
	"github.com/tankwatch/tankwatch/pkg/logging"
	"github.com/tankwatch/tankwatch/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Tankwatch ETL run")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize Redis cache (optional, nil-safe when disabled)
	classificationCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Warn("Failed to connect to Redis, continuing without cache", zap.Error(err))
		classificationCache = nil
	}
	if err := classificationCache.Health(context.Background()); err != nil && err != cache.ErrCacheDisabled {
		logger.Warn("Redis health check failed, continuing without cache", zap.Error(err))
		classificationCache = nil
	}
	defer classificationCache.Close()

	// Initialize external clients
	forum, err := reddit.New(&cfg.Reddit)
	if err != nil {
		logger.Fatal("Failed to initialize Reddit client", zap.Error(err))
	}
	ai, err := openai.New(&cfg.OpenAI)
	if err != nil {
		logger.Fatal("Failed to initialize OpenAI client", zap.Error(err))
	}

	// Wire the pipeline
	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	analyses := db.NewAnalysisRepository(repo)
	writer := db.NewWriter(database)

	runner := etl.NewRunner(
		etl.NewPostExtractor(forum, cfg.ETL.PostLimit),
		etl.NewCommentExtractor(forum, posts, cfg.ETL.PostLimit),
		etl.NewAnalyzer(analyses, ai, classificationCache, cfg.Reddit.Subreddit, cfg.OpenAI.Embeddings, cfg.ETL.PostLimit),
		writer,
	)

	// Cancel the run on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		logger.Error("Run finished with errors", zap.Error(err))
		telemetryShutdown()
		logging.GetLogger().Sync()
		os.Exit(1)
	}

	logger.Info("Run finished")
}
