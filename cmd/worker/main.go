package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/buntercodes/vid-gen/internal/config"
	"github.com/buntercodes/vid-gen/internal/database"
	"github.com/buntercodes/vid-gen/internal/generation"
	"github.com/buntercodes/vid-gen/internal/logging"
	"github.com/buntercodes/vid-gen/internal/queue"
	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/internal/storage"
	"github.com/buntercodes/vid-gen/internal/tracing"
	"github.com/buntercodes/vid-gen/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Initialize quota store and service
	store, err := quota.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	quotaSvc := quota.NewService(store, cfg.Quota.DefaultWeeklyCredits, logger)

	// Initialize generation orchestrator
	client := generation.NewClient(cfg.Generation)
	genSvc := generation.NewService(quotaSvc, client, stor, repo, q, cfg.Quota.StrictReserve, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Job handler. A returned error requeues the job; terminal outcomes
	// (completed or failed) are recorded in the ledger and acknowledged.
	jobHandler := func(job *models.GenerationJob) error {
		jobLog := logger.WithGenerationID(job.Generation.ID).WithUserID(job.Generation.UserID)
		jobLog.Info("Processing generation")

		if err := genSvc.Process(ctx, job.Generation, job.Request); err != nil {
			jobLog.ErrorWithErr("Failed to process generation", err)
			return err
		}

		jobLog.Infof("Generation finished with status %s", job.Generation.Status)
		return nil
	}

	// Start consuming jobs
	logger.Info("Worker started, waiting for generation jobs...")
	if err := q.ConsumeGenerations(ctx, jobHandler); err != nil {
		logger.Fatalf("Failed to consume jobs: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("Worker stopped")
}
