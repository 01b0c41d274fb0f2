package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmills/storefront-backend/config"
	"github.com/dmills/storefront-backend/internal/app/controller"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/internal/app/service"
	"github.com/dmills/storefront-backend/internal/db"
	"github.com/dmills/storefront-backend/internal/middleware"
	"github.com/dmills/storefront-backend/internal/notify"
	"github.com/dmills/storefront-backend/internal/router"
	"github.com/dmills/storefront-backend/internal/scheduler"
	"github.com/dmills/storefront-backend/internal/websocket"
	"github.com/dmills/storefront-backend/pkg/logger"
	"github.com/dmills/storefront-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting Storefront Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Initialize Redis. Cross-instance invalidation fanout degrades to
	// local-only when Redis is unreachable.
	redisAvailable := true
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, invalidations stay local to this instance", map[string]interface{}{
			"error": err.Error(),
		})
		redisAvailable = false
	} else {
		defer redis.Close()
	}

	// Start the invalidation hub
	hub := websocket.NewHub()
	go hub.Run()

	notifier := notify.NewInvalidationNotifier(hub, redisAvailable)

	// Re-broadcast invalidations published by other instances
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	if redisAvailable {
		go func() {
			if err := redis.SubscribeInvalidations(subCtx, hub.BroadcastInvalidation); err != nil && subCtx.Err() == nil {
				logger.Error("Invalidation subscription terminated", err)
			}
		}()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo, notifier)

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	invalidationController := controller.NewInvalidationController(hub)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	sessionMiddleware := middleware.NewSessionMiddleware(cfg.Session)

	// Start the nightly cart totals audit
	auditScheduler := scheduler.NewCartAuditScheduler(cartService)
	if err := auditScheduler.Start(); err != nil {
		logger.Fatal("Failed to start cart audit scheduler", err)
	}
	defer auditScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		authController,
		productController,
		cartController,
		invalidationController,
		authMiddleware,
		sessionMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
