// Package service orchestrates the capture subsystem's runtime: the live
// event listener, the one-shot startup backfill and the maintenance
// scheduler, all under one lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/purrlab/catscan/internal/capture"
	"github.com/purrlab/catscan/internal/platform"
	"github.com/purrlab/catscan/internal/store"
)

// Service ties the capture components together and manages their lifecycle.
type Service struct {
	logger    *slog.Logger
	gateway   platform.Gateway
	live      *capture.LiveHandler
	backfill  *capture.BackfillJob
	store     *store.Store
	scheduler *Scheduler
}

// New creates the service. The scheduler may be nil when maintenance is
// disabled.
func New(
	logger *slog.Logger,
	gateway platform.Gateway,
	live *capture.LiveHandler,
	backfill *capture.BackfillJob,
	st *store.Store,
	scheduler *Scheduler,
) *Service {
	return &Service{
		logger:    logger.With("component", "service"),
		gateway:   gateway,
		live:      live,
		backfill:  backfill,
		store:     st,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until the context is cancelled or a
// component fails. The backfill job waits for gateway readiness and runs in
// the background so it never blocks live event delivery.
func (s *Service) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting live event listener")
		if err := s.gateway.Listen(gCtx, s.live); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("live listener stopped: %w", err)
		}
		s.logger.Info("live event listener stopped")
		return nil
	})

	g.Go(func() error {
		if err := s.gateway.Ready(gCtx); err != nil {
			if gCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting for gateway readiness: %w", err)
		}
		// Backfill failures for individual channels are handled inside the
		// job; an error here means the whole pass could not run.
		if err := s.backfill.Run(gCtx); err != nil && gCtx.Err() == nil {
			s.logger.Error("backfill pass failed", "error", err)
		}
		return nil
	})

	if s.scheduler != nil {
		g.Go(func() error {
			if err := s.scheduler.Start(); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			<-gCtx.Done()
			if err := s.scheduler.Stop(); err != nil {
				s.logger.Error("error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	if closeErr := s.store.Close(); closeErr != nil {
		s.logger.Error("error closing store", "error", closeErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Info("service stopped")
	return nil
}

// NewMaintenanceTask returns the scheduled task that flushes and vacuums
// every open partition.
func NewMaintenanceTask(st *store.Store, logger *slog.Logger) TaskFunc {
	log := logger.With("task", "partition_maintenance")
	return func(ctx context.Context) error {
		if err := st.Maintenance(ctx); err != nil {
			log.ErrorContext(ctx, "partition maintenance failed", "error", err)
			return err
		}
		return nil
	}
}
