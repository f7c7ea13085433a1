package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/domain/order"
)

// MaintenanceService owns the background schedule: a nightly purge of
// previous days' records and, when demo mode is on, a periodic pump
// that fetches a generated order and feeds it to the engine.
type MaintenanceService struct {
	scheduler gocron.Scheduler
	store     order.Store
	queue     *QueueService
	fetcher   *FetchService
	logger    *zap.Logger
}

// NewMaintenanceService builds the scheduler. fetcher may be nil when
// demo mode is off.
func NewMaintenanceService(store order.Store, queue *QueueService, fetcher *FetchService, logger *zap.Logger) (*MaintenanceService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &MaintenanceService{
		scheduler: scheduler,
		store:     store,
		queue:     queue,
		fetcher:   fetcher,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the scheduler. pumpInterval only
// applies when a fetcher is configured.
func (m *MaintenanceService) Start(pumpInterval time.Duration) error {
	if m.store != nil {
		_, err := m.scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
			gocron.NewTask(m.purgeOldRecords),
		)
		if err != nil {
			return fmt.Errorf("schedule purge job: %w", err)
		}
	}

	if m.fetcher != nil && pumpInterval > 0 {
		_, err := m.scheduler.NewJob(
			gocron.DurationJob(pumpInterval),
			gocron.NewTask(m.pumpOrder),
		)
		if err != nil {
			return fmt.Errorf("schedule order pump: %w", err)
		}
	}

	m.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (m *MaintenanceService) Stop() error {
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (m *MaintenanceService) purgeOldRecords() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.store.ClearOldRecords(ctx); err != nil {
		m.logger.Error("purge of old records failed", zap.Error(err))
		return
	}
	m.logger.Info("purged records from previous days")
}

func (m *MaintenanceService) pumpOrder() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	o, err := m.fetcher.FetchOrder(ctx)
	if err != nil {
		return
	}
	if err := m.queue.AddOrder(ctx, o, m.store != nil); err != nil {
		m.logger.Warn("generated order rejected", zap.Int64("orderID", o.OrderID), zap.Error(err))
	}
}
