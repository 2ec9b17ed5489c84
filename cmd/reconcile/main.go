// Command reconcile replays orders_today increments that failed after an
// order was accepted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/logger"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("dispatch-reconcile", cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := app.NewDatabase(connectCtx, cfg.Database, nil)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(connectCtx, cfg.Redis, nil)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	backlog := internalRedis.NewCounterBacklog(redisClient, log.Named("backlog"))
	profiles := postgres.NewProfileRepository(db)

	outstanding, err := backlog.Len(ctx)
	if err != nil {
		log.Fatal("failed to read backlog", zap.Error(err))
	}
	log.Info("reconciling counters", zap.Int64("outstanding", outstanding))

	applied, err := backlog.Drain(ctx, func(ctx context.Context, debt domain.CounterDebt) error {
		if err := profiles.IncrementOrdersToday(ctx, debt.DriverID, 1, time.Now()); err != nil {
			log.Warn("increment failed",
				zap.Int64("order_id", debt.OrderID),
				zap.String("driver_id", debt.DriverID),
				zap.Error(err),
			)
			return err
		}
		log.Debug("increment applied",
			zap.Int64("order_id", debt.OrderID),
			zap.String("driver_id", debt.DriverID),
		)
		return nil
	})

	log.Info("reconcile finished", zap.Int("applied", applied))
	if err != nil {
		log.Error("reconcile stopped early", zap.Error(err))
		os.Exit(1)
	}
}
