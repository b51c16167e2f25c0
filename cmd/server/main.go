package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kicksideshop/orderapi/internal/api"
	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/metrics"
	"github.com/kicksideshop/orderapi/internal/notify"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/repository/memory"
	"github.com/kicksideshop/orderapi/internal/repository/postgres"
	"github.com/kicksideshop/orderapi/internal/service"
	"github.com/kicksideshop/orderapi/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting order API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.StorageDriver),
	)

	metrics.Register()

	// Initialize repositories
	var repos *repository.Repositories
	switch cfg.StorageDriver {
	case config.StorageMemory:
		repos, _ = memory.NewRepositories(logger)
		logger.Warn("Using in-memory storage; orders are lost on restart")
	default:
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		// Run migrations
		if err := postgres.RunMigrations(context.Background(), db, cfg.Database.MigrationsDir, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		repos = postgres.NewRepositories(db, logger)
	}

	lifecycle, err := workflow.NewLifecycle()
	if err != nil {
		logger.Fatal("Failed to build order lifecycle", zap.Error(err))
	}

	notifier, closeNotifiers := newNotifier(cfg, logger)
	defer closeNotifiers()

	svc := service.NewOrderService(repos, lifecycle, notifier, logger)

	// Initialize router
	router := api.NewRouter(cfg, repos, svc, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let pending status notifications finish before the sinks close
	svc.Wait()

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// newNotifier wires the configured status-change sinks.
func newNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func()) {
	var sinks notify.Multi
	closers := []func(){}

	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(notify.DefaultWebhookConfig(cfg.Webhook.URL, cfg.Webhook.Secret), logger))
		logger.Info("Order status webhook enabled", zap.String("url", cfg.Webhook.URL))
	}

	if cfg.RabbitMQ.URL != "" {
		n, err := notify.DialAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			// Notifications are best effort; the API still serves without them
			logger.Error("Failed to connect to RabbitMQ, status events will not be published", zap.Error(err))
		} else {
			sinks = append(sinks, n)
			closers = append(closers, n.Close)
			logger.Info("Order status events publishing to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 0 {
		return notify.Nop{}, closeAll
	}
	return sinks, closeAll
}
