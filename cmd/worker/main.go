package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/db"
	"github.com/leozw/mantenapp/internal/metrics"
	"github.com/leozw/mantenapp/internal/probe"
	"github.com/leozw/mantenapp/internal/queue"
	"github.com/leozw/mantenapp/internal/scheduler"
	"github.com/leozw/mantenapp/internal/storage/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Database connection
	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database)

	// The worker has no HTTP surface; its gauges reach Mimir by remote write.
	collector := metrics.NewCollector(nil)
	writer := metrics.NewRemoteWriter(cfg.Mimir)

	sweeper := scheduler.NewSweeper(repo, collector, logger, cfg.Worker)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	// Probe workers drain the queue fed by async probe requests.
	cache := redis.NewClient(cfg.Redis.URL)
	defer cache.Close()
	if cache == nil {
		logger.Info("Redis not configured, probe workers disabled")
	} else {
		jobs := queue.NewRedisQueue(cache.Client)
		sink := probe.NewSink(cache, collector, writer, logger)
		prober := probe.NewProber()

		for i := 1; i <= cfg.Worker.ProbeConcurrency; i++ {
			w := scheduler.NewProbeWorker(i, jobs, prober, sink, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Start(ctx)
			}()
		}
		logger.Info("Probe workers started", zap.Int("count", cfg.Worker.ProbeConcurrency))
	}

	if writer != nil {
		go collector.StartRemoteWrite(ctx, writer, logger)
	}

	logger.Info("Worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	wg.Wait()
	logger.Info("Worker exited")
}
