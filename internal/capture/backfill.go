package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/purrlab/catscan/internal/metrics"
	"github.com/purrlab/catscan/internal/platform"
	"github.com/purrlab/catscan/internal/store"
)

// DefaultCommitEvery is how many stored history items share one durability
// flush during backfill.
const DefaultCommitEvery = 512

// BackfillConfig tunes the startup catch-up job.
type BackfillConfig struct {
	// FirstYear is the first calendar year capture supports.
	FirstYear int
	// Cutoff bounds the catch-up window within the current year.
	Cutoff metrics.Cutoff
	// CommitEvery is the batch size between durability flushes.
	CommitEvery int
}

// BackfillJob streams missed channel history into the store, once, at
// process startup. Channels are processed sequentially; every batch commit
// is a durability point, and because inserts are idempotent upserts the job
// can be interrupted anywhere and simply resumed from the stored checkpoint
// on the next run.
type BackfillJob struct {
	cfg     BackfillConfig
	gateway platform.Gateway
	filter  *metrics.Filter
	store   *store.Store
	logger  *slog.Logger

	now func() time.Time
}

// NewBackfillJob creates the catch-up job.
func NewBackfillJob(cfg BackfillConfig, gw platform.Gateway, filter *metrics.Filter, st *store.Store, logger *slog.Logger) *BackfillJob {
	if cfg.CommitEvery <= 0 {
		cfg.CommitEvery = DefaultCommitEvery
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BackfillJob{
		cfg:     cfg,
		gateway: gw,
		filter:  filter,
		store:   st,
		logger:  logger.With("component", "backfill"),
		now:     time.Now,
	}
}

// Run executes the catch-up pass over every readable channel. A failure in
// one channel is logged and the job moves on; already-committed batches for
// that channel stay durable and become its resume point next startup. Run
// returns an error only when the job cannot proceed at all (channel listing
// failed or the process is shutting down).
func (j *BackfillJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	year := now.Year()
	if year < j.cfg.FirstYear {
		j.logger.Info("current year precedes first capture year, nothing to backfill",
			"year", year, "first_year", j.cfg.FirstYear)
		return nil
	}

	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := j.cfg.Cutoff.For(year)
	if now.Before(windowEnd) {
		windowEnd = now
	}

	j.logger.Info("starting backfill",
		"year", year,
		"window_start", startOfYear.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339))

	channels, err := j.gateway.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	for _, ch := range channels {
		if !ch.CanReadHistory || j.filter.SkipChannel(ch) {
			continue
		}
		if err := j.backfillChannel(ctx, ch, year, startOfYear, windowEnd); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.ErrorContext(ctx, "backfill failed for channel, moving on",
				"channel_id", ch.ID, "channel_name", ch.Name, "error", err)
		}
	}

	j.logger.Info("backfill finished", "year", year)
	return nil
}

// backfillChannel catches up one channel from its stored checkpoint to the
// window end, committing every CommitEvery stored items and once more for
// the trailing partial batch.
func (j *BackfillJob) backfillChannel(ctx context.Context, ch platform.Channel, year int, startOfYear, windowEnd time.Time) error {
	after := startOfYear
	latest, ok, err := j.store.LatestTimestamp(ctx, year, ch.ID)
	if err != nil {
		return err
	}
	if ok {
		after = latest
	}

	if !after.Before(windowEnd) {
		// Already caught up.
		return nil
	}

	j.logger.Info("backfilling channel",
		"channel_id", ch.ID,
		"channel_name", ch.Name,
		"after", after.Format(time.RFC3339),
		"before", windowEnd.Format(time.RFC3339))

	pending := 0
	token := ""
	for {
		page, err := j.gateway.FetchHistoryPage(ctx, ch.ID, after, windowEnd, token)
		if err != nil {
			return fmt.Errorf("fetch history page for channel %s: %w", ch.ID, err)
		}

		for _, msg := range page.Messages {
			if !j.filter.ShouldCapture(msg) {
				continue
			}
			if err := j.store.InsertMessage(ctx, record(msg)); err != nil {
				return err
			}
			pending++
			if pending >= j.cfg.CommitEvery {
				if err := j.store.Commit(ctx, year); err != nil {
					return err
				}
				pending = 0
			}
		}

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if pending > 0 {
		if err := j.store.Commit(ctx, year); err != nil {
			return err
		}
	}
	return nil
}
