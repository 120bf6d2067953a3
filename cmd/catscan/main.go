// Package main is the entry point for the Cat Scan capture service. It
// records per-message statistics from the platform event stream into yearly
// partition databases, catching up on missed history at startup.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purrlab/catscan/internal/capture"
	"github.com/purrlab/catscan/internal/config"
	"github.com/purrlab/catscan/internal/logger"
	"github.com/purrlab/catscan/internal/metrics"
	"github.com/purrlab/catscan/internal/platform"
	"github.com/purrlab/catscan/internal/service"
	"github.com/purrlab/catscan/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires configuration, storage and the capture service together and
// returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	// The subsystem cannot run without a writable partition root.
	if err := os.MkdirAll(cfg.Capture.DataDir, 0o755); err != nil {
		log.Error("Partition root is not writable", "path", cfg.Capture.DataDir, "error", err)
		return 1
	}

	cutoff := metrics.Cutoff{
		Month: time.Month(cfg.Capture.CutoffMonth),
		Day:   cfg.Capture.CutoffDay,
	}
	ignored := metrics.NewIgnoreSet(cfg.Capture.IgnoredChannels, cfg.Capture.IgnoredCategories)
	filter := metrics.NewFilter(cfg.Capture.GuildID, cfg.Capture.FirstYear, cutoff, ignored)

	st := store.New(store.Config{RootDir: cfg.Capture.DataDir, Cutoff: cutoff}, log)

	gateway, err := platform.NewReplayGateway(cfg.Replay.Dir, log)
	if err != nil {
		log.Error("Failed to open platform gateway", "error", err)
		return 1
	}

	live := capture.NewLiveHandler(filter, st, log)
	backfill := capture.NewBackfillJob(capture.BackfillConfig{
		FirstYear:   cfg.Capture.FirstYear,
		Cutoff:      cutoff,
		CommitEvery: cfg.Capture.CommitEvery,
	}, gateway, filter, st, log)

	var scheduler *service.Scheduler
	if cfg.Maintenance.Schedule != "" {
		scheduler, err = service.NewScheduler(log)
		if err != nil {
			log.Error("Failed to create scheduler", "error", err)
			return 1
		}
		task := service.NewMaintenanceTask(st, log)
		if err := scheduler.Register("partition_maintenance", cfg.Maintenance.Schedule, task); err != nil {
			log.Error("Failed to schedule maintenance task", "error", err)
			return 1
		}
	}

	svc := service.New(log, gateway, live, backfill, st, scheduler)
	if err := svc.Run(ctx); err != nil {
		log.Error("Service exited with error", "error", err)
		return 1
	}
	return 0
}
