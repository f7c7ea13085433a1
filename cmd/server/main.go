package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/config"
	"github.com/baristaq/baristaq/internal/domain/order"
	"github.com/baristaq/baristaq/internal/handlers"
	"github.com/baristaq/baristaq/internal/logging"
	"github.com/baristaq/baristaq/internal/repositories"
	"github.com/baristaq/baristaq/internal/server"
	"github.com/baristaq/baristaq/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var store order.Store
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := repositories.Migrate(ctx, pool); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		store = repositories.NewOrderRepository(pool)
		logger.Info("persistence enabled",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
	} else {
		logger.Warn("no database configured, queue will not survive restarts")
	}

	manager := services.NewConnectionManager(logger)
	queue := services.NewQueueService(cfg.Milks, cfg.Textures, cfg.SearchDepth, store, manager, logger)

	if store != nil {
		persisted, err := store.GetQueue(ctx)
		if err != nil {
			logger.Fatal("Failed to load today's orders", zap.Error(err))
		}
		queue.Replay(ctx, persisted)
	}

	var fetcher *services.FetchService
	if cfg.Generator.Enabled {
		fetcher = services.NewFetchService(cfg.Generator.URL, logger)
	}
	maintenance, err := services.NewMaintenanceService(store, queue, fetcher, logger)
	if err != nil {
		logger.Fatal("Failed to create maintenance scheduler", zap.Error(err))
	}
	if err := maintenance.Start(cfg.Generator.PollInterval); err != nil {
		logger.Fatal("Failed to start maintenance scheduler", zap.Error(err))
	}

	srv := server.New(cfg, &server.Handlers{
		Queue: handlers.NewQueueHandler(queue, store != nil, logger),
		WS:    handlers.NewWSHandler(manager, logger),
	}, logger)
	srv.Setup()

	if err := srv.Start(func() {
		queue.Shutdown()
		manager.Close()
		if err := maintenance.Stop(); err != nil {
			logger.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
