package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinpay/backend/internal/app"
	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/db"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/reconciler"
	"github.com/coinpay/backend/migrations"
	"go.uber.org/zap"
)

// The worker drives ticks itself for deployments without an external
// scheduler calling the trigger endpoint.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Worker-only deployments have no API to migrate for them.
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb, log)
	engine := app.NewEngine(ctx, cfg, pool, publisher, log)

	log.Info("worker started", zap.Duration("interval", cfg.WorkerInterval))

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runTick(ctx, engine.Orchestrator, cfg.WorkerInterval, log)
	for {
		select {
		case <-ticker.C:
			runTick(ctx, engine.Orchestrator, cfg.WorkerInterval, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		}
	}
}

// runTick bounds one tick by the worker interval so a slow chain cannot
// stack ticks behind it.
func runTick(ctx context.Context, o *reconciler.Orchestrator, interval time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	if _, err := o.Run(ctx); err != nil {
		log.Error("tick failed", zap.Error(err))
	}
}
