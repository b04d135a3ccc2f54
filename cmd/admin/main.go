package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftora/backoffice/internal/duplicates"
	"github.com/craftora/backoffice/internal/jobs"
	"github.com/craftora/backoffice/internal/risk"
	"github.com/craftora/backoffice/pkg/config"
	"github.com/craftora/backoffice/pkg/database"
	"github.com/craftora/backoffice/pkg/logger"
	"github.com/craftora/backoffice/pkg/middleware"
	"github.com/craftora/backoffice/pkg/ratelimit"
	"github.com/craftora/backoffice/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load("admin")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Apply schema migrations
	if err := database.RunMigrations(cfg.Database.MigrateURL(), cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations: " + err.Error())
	}

	// Connect to PostgreSQL
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database: " + err.Error())
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: " + err.Error())
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Wire services
	riskRepo := risk.NewRepository(pool)
	riskService := risk.NewService(riskRepo, logger.Get())
	riskHandler := risk.NewHandler(riskService)

	dupRepo := duplicates.NewRepository(pool)
	dupService := duplicates.NewService(dupRepo, redisClient, logger.Get())
	dupHandler := duplicates.NewHandler(dupService)

	// Scheduled jobs
	worker := jobs.NewWorker(redisClient, cfg.Jobs.LockTTL, logger.Get())
	if cfg.Jobs.Enabled {
		worker.Register(
			jobs.NewRiskUpdateJob(riskRepo, riskService, logger.Get()),
			cfg.Jobs.RiskUpdateInterval,
		)
		worker.Register(
			jobs.NewDuplicateDetectionJob(dupService, dupRepo, riskRepo, logger.Get()),
			cfg.Jobs.DuplicateDetectInterval,
		)
		worker.Start(context.Background())
		defer worker.Stop()
	}

	// Set up Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin API routes
	limiter := ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
	admin := router.Group("/api/v1/admin")
	admin.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret),
		middleware.RequireAdmin(),
		ratelimit.Middleware(limiter, logger.Get()),
	)
	riskHandler.RegisterRoutes(admin)
	dupHandler.RegisterRoutes(admin)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Admin service starting on port " + cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: " + err.Error())
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down admin service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown: " + err.Error())
	}
}
