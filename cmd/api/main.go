package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/api"
	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/metrics"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Database
	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(database); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	// Redis
	cache := redis.NewClient(cfg.Redis.URL)
	defer cache.Close()
	if cache == nil {
		logger.Info("Redis not configured, caching disabled")
	} else if err := cache.Ping(context.Background()); err != nil {
		logger.Warn("Redis unreachable, continuing without a healthy cache", zap.Error(err))
	}

	// Metrics
	collector := metrics.NewCollector(nil)
	writer := metrics.NewRemoteWriter(cfg.Mimir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if writer != nil {
		go collector.StartRemoteWrite(ctx, writer, logger)
	}

	// API Server
	server, err := api.NewServer(cfg, db.NewRepository(database), cache, collector, writer, logger)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port), zap.String("mode", cfg.Server.Mode))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
