package main

import (
	"log/slog"
	"os"

	"tripsplit-backend/config"
	"tripsplit-backend/database"
	"tripsplit-backend/handlers"
	"tripsplit-backend/logging"
	"tripsplit-backend/metrics"
	"tripsplit-backend/middleware"
	"tripsplit-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		logger.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	// Connect to Redis (optional, won't crash if unavailable)
	database.ConnectRedis(cfg)

	directory := services.NewDirectory(database.DB)
	settlements := services.NewSettlementService(database.DB, directory, logger,
		services.WithEvents(services.NewEventPublisher(database.Redis)),
		services.WithNotifier(services.NewNotificationService(cfg, logger)),
		services.WithStreamBatch(cfg.LedgerStreamBatch),
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": cfg.AppName,
		})
	})
	r.GET("/metrics", metrics.Handler())

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))
	handlers.New(settlements, directory, logger).Register(api)

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("server starting", "service", cfg.AppName, "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
