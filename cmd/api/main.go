package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buntercodes/vid-gen/internal/config"
	"github.com/buntercodes/vid-gen/internal/database"
	"github.com/buntercodes/vid-gen/internal/generation"
	"github.com/buntercodes/vid-gen/internal/logging"
	"github.com/buntercodes/vid-gen/internal/metrics"
	"github.com/buntercodes/vid-gen/internal/middleware"
	"github.com/buntercodes/vid-gen/internal/queue"
	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/internal/storage"
	"github.com/buntercodes/vid-gen/internal/tracing"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// Repository is the persistence surface the API handlers need
type Repository interface {
	Health(ctx context.Context) error
	CreateUser(ctx context.Context, user *models.User, password string) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	ValidateAPIKey(ctx context.Context, apiKey string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SetUserAdmin(ctx context.Context, userID string, isAdmin bool) error
	GetGeneration(ctx context.Context, id string) (*models.Generation, error)
	ListGenerations(ctx context.Context, limit, offset int) ([]*models.Generation, error)
	ListUserGenerations(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error)
}

// QuotaManager exposes the quota operations the handlers need
type QuotaManager interface {
	GetQuota(ctx context.Context, userID string) (*models.QuotaSnapshot, error)
	SetAllowance(ctx context.Context, userID string, credits int64) error
}

// Submitter accepts generation requests for asynchronous processing
type Submitter interface {
	Submit(ctx context.Context, userID string, req *models.GenerationRequest) (*models.Generation, error)
}

type API struct {
	repo        Repository
	quota       QuotaManager
	generations Submitter
	logger      *logging.Logger
	tokenTTL    time.Duration
}

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

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
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

	// Initialize quota store and service
	store, err := quota.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	quotaSvc := quota.NewService(store, cfg.Quota.DefaultWeeklyCredits, logger)

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

	// Initialize generation orchestrator
	client := generation.NewClient(cfg.Generation)
	genSvc := generation.NewService(quotaSvc, client, stor, repo, q, cfg.Quota.StrictReserve, logger)

	// Create API instance
	api := &API{
		repo:        repo,
		quota:       quotaSvc,
		generations: genSvc,
		logger:      logger,
		tokenTTL:    cfg.Auth.TokenTTL,
	}

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go rateLimiter.Cleanup()

	// Metrics server
	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsSrv.Start(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(ctx)
		}()
	}

	// Observe queue depth
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go observeQueueDepth(ctx, q)

	// Setup router
	router := setupRouter(api, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, rateLimiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.logger))

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(rateLimiter))
	{
		// Auth
		v1.POST("/auth/register", api.register)
		v1.POST("/auth/login", api.login)

		// Model catalog is public
		v1.GET("/models", api.listModels)

		// Authenticated routes accept JWT or API key
		authed := v1.Group("")
		authed.Use(middleware.OptionalAuth(api.repo))
		{
			authed.GET("/quota", api.getQuota)
			authed.POST("/generations", api.submitGeneration)
			authed.GET("/generations", api.listGenerations)
			authed.GET("/generations/:id", api.getGeneration)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.OptionalAuth(api.repo), middleware.AdminOnly(api.repo))
		{
			admin.GET("/users", api.adminListUsers)
			admin.GET("/users/:id/quota", api.adminGetUserQuota)
			admin.PUT("/users/:id/credits", api.adminSetUserCredits)
			admin.PUT("/users/:id/role", api.adminSetUserRole)
			admin.GET("/generations", api.adminListGenerations)
		}
	}

	return router
}

// observeQueueDepth refreshes the queue depth gauge
func observeQueueDepth(ctx context.Context, q *queue.Queue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := q.GetQueueDepth(); err == nil {
				metrics.JobsQueueDepth.Set(float64(depth))
			}
		}
	}
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
