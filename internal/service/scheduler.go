package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// TaskFunc is the signature for scheduled background tasks.
type TaskFunc func(ctx context.Context) error

// Scheduler runs background tasks on cron schedules using gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
	}, nil
}

// Register schedules a named task on a cron expression. Task failures are
// logged, never fatal.
func (s *Scheduler) Register(name, cronExpr string, task TaskFunc) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) {
			s.logger.Info("running scheduled task", "task_name", name)
			start := time.Now()
			if taskErr := task(ctx); taskErr != nil {
				s.logger.Error("scheduled task failed", "task_name", name, "error", taskErr)
			}
			s.logger.Info("finished scheduled task",
				"task_name", name, "duration", time.Since(start))
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("schedule task %s: %w", name, err)
	}
	s.logger.Info("scheduled task", "task_name", name, "schedule", cronExpr)
	return nil
}

// Start begins the scheduler's internal ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.scheduler.Start()
	s.running = true
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.running = false
	if err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
