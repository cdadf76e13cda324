package usecase

import (
	"context"
	"log/slog"
	"time"

	"ContractsOrchestrator/internal/ports"
)

// Scheduler wires the recurring driver with the catalog sync use case.
type Scheduler struct {
	driver  ports.Scheduler
	sync    *CatalogSync
	request SyncRequest
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop the periodic sync. Every run
// uses request, so the window always trails the trigger time.
func NewScheduler(driver ports.Scheduler, sync *CatalogSync, request SyncRequest, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, sync: sync, request: request, logger: logger}
}

// Start registers the sync job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.sync == nil {
		return nil
	}

	job := func(trigger time.Time) {
		res, err := s.sync.Run(ctx, s.request)
		if err != nil {
			s.logger.Error("scheduled catalog sync failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled catalog sync done", "trigger", trigger, "items", len(res.Items))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
