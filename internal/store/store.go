// Package store owns the partitioned persistence layer: one SQLite database
// per calendar year, selected purely by a record's creation timestamp. Each
// partition is created lazily, kept open for the process lifetime and
// written by at most one writer at a time.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/purrlab/catscan/internal/metrics"
	"github.com/purrlab/catscan/migrations"

	_ "modernc.org/sqlite"
)

// timeLayout is how created_at is written to disk: ISO 8601 UTC with a
// fixed six-digit fractional second, so MAX() over the TEXT column orders
// lexicographically the same as chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Record is one captured message row.
type Record struct {
	MessageID string    `db:"message_id"`
	ChannelID string    `db:"channel_id"`
	AuthorID  string    `db:"author_id"`
	CreatedAt time.Time `db:"-"`
	Content   string    `db:"content"`

	metrics.Counters
}

// Config holds the store's startup settings.
type Config struct {
	// RootDir is where partition files live; created on demand.
	RootDir string
	// Cutoff bounds each partition's accepted timestamps.
	Cutoff metrics.Cutoff
}

// Store manages one SQLite database per year. All methods are safe for
// concurrent use; writes to a single partition are serialized internally.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	partitions map[int]*partition
}

// partition is one year's open database. mu serializes every write and the
// checkpoint query; tx is the open batch transaction, nil between batches.
type partition struct {
	db *sqlx.DB
	mu sync.Mutex
	tx *sqlx.Tx
}

// New creates a Store rooted at cfg.RootDir. No partition is opened until
// first use.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		cfg:        cfg,
		logger:     logger.With("component", "store"),
		partitions: make(map[int]*partition),
	}
}

// DBPath computes the partition file path for a year.
func (s *Store) DBPath(year int) string {
	return filepath.Join(s.cfg.RootDir, fmt.Sprintf("cat_scan_%d.sqlite", year))
}

// partitionFor returns the open partition for a year, creating the
// database file and applying the schema on first call. Creation is
// idempotent and never races: the store mutex is the single entry point.
func (s *Store) partitionFor(year int) (*partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[year]; ok {
		return p, nil
	}

	if err := os.MkdirAll(s.cfg.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data root %s: %w", s.cfg.RootDir, err)
	}

	path := s.DBPath(year)
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open partition %d: %w", year, err)
	}

	// SQLite does not support concurrent writers; pin the pool to one
	// connection so the batch transaction and checkpoint queries share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			s.logger.Error("closing partition after failed migration", "year", year, "error", closeErr)
		}
		return nil, fmt.Errorf("migrate partition %d: %w", year, err)
	}

	s.logger.Info("opened partition", "year", year, "path", path)
	p := &partition{db: db}
	s.partitions[year] = p
	return p, nil
}

// applyMigrations brings a partition database up to the current schema
// using the embedded migration files.
func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// InsertMessage upserts a record into the partition selected by its
// creation timestamp. The write joins the partition's current batch
// transaction and is not durable until Commit. Writing an id that already
// exists replaces the row: re-delivery across overlapping backfill windows
// is a no-op in effect, never a duplicate.
func (s *Store) InsertMessage(ctx context.Context, rec Record) error {
	created := rec.CreatedAt.UTC()
	year := created.Year()

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if created.Before(start) || created.After(s.cfg.Cutoff.For(year)) {
		return fmt.Errorf("record %s at %s is outside the %d capture window",
			rec.MessageID, created.Format(timeLayout), year)
	}

	p, err := s.partitionFor(year)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx == nil {
		tx, err := p.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch for partition %d: %w", year, err)
		}
		p.tx = tx
	}

	const query = `
        INSERT OR REPLACE INTO messages (
            message_id, channel_id, author_id, created_at, content,
            word_count, char_count,
            attachment_count, image_count, video_count, sticker_count, embed_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	_, err = p.tx.ExecContext(ctx, query,
		rec.MessageID, rec.ChannelID, rec.AuthorID, created.Format(timeLayout), rec.Content,
		rec.WordCount, rec.CharCount,
		rec.AttachmentCount, rec.ImageCount, rec.VideoCount, rec.StickerCount, rec.EmbedCount,
	)
	if err != nil {
		return fmt.Errorf("insert message %s into partition %d: %w", rec.MessageID, year, err)
	}
	return nil
}

// Commit durably flushes the partition's pending batch. Committing a
// partition with no pending writes is a no-op.
func (s *Store) Commit(ctx context.Context, year int) error {
	p, err := s.partitionFor(year)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx == nil {
		return nil
	}
	if err := p.tx.Commit(); err != nil {
		p.tx = nil
		return fmt.Errorf("commit partition %d: %w", year, err)
	}
	p.tx = nil
	return nil
}

// LatestTimestamp returns the checkpoint for a channel within a partition:
// the maximum created_at among its stored records, including writes pending
// in the current batch. ok is false when the channel has no records yet.
func (s *Store) LatestTimestamp(ctx context.Context, year int, channelID string) (latest time.Time, ok bool, err error) {
	p, err := s.partitionFor(year)
	if err != nil {
		return time.Time{}, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// The pool is pinned to one connection, so the query must run on the
	// open batch transaction when there is one.
	var q sqlx.QueryerContext = p.db
	if p.tx != nil {
		q = p.tx
	}

	var raw sql.NullString
	row := q.QueryRowxContext(ctx,
		`SELECT MAX(created_at) FROM messages WHERE channel_id = ?;`, channelID)
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("query checkpoint for channel %s in partition %d: %w", channelID, year, err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse checkpoint %q for channel %s: %w", raw.String, channelID, err)
	}
	return t, true, nil
}

// Maintenance flushes and vacuums every open partition. It is meant to run
// on a schedule, outside any latency-sensitive path.
func (s *Store) Maintenance(ctx context.Context) error {
	s.mu.Lock()
	open := make(map[int]*partition, len(s.partitions))
	for year, p := range s.partitions {
		open[year] = p
	}
	s.mu.Unlock()

	for year, p := range open {
		if err := s.vacuumPartition(ctx, year, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) vacuumPartition(ctx context.Context, year int, p *partition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// VACUUM cannot run inside a transaction; flush the pending batch
	// first. That is an extra durability point, which is always safe.
	if p.tx != nil {
		if err := p.tx.Commit(); err != nil {
			p.tx = nil
			return fmt.Errorf("flush partition %d before maintenance: %w", year, err)
		}
		p.tx = nil
	}

	if _, err := p.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("vacuum partition %d: %w", year, err)
	}
	s.logger.Info("partition maintenance completed", "year", year)
	return nil
}

// CloseYear flushes and closes one partition. Closing a partition that was
// never opened is a no-op.
func (s *Store) CloseYear(year int) error {
	s.mu.Lock()
	p, ok := s.partitions[year]
	if ok {
		delete(s.partitions, year)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return closePartition(year, p)
}

// Close flushes and closes every open partition. Safe to call during
// shutdown regardless of in-flight batches: anything not yet committed is
// re-fetched and idempotently re-applied on the next startup.
func (s *Store) Close() error {
	s.mu.Lock()
	open := make(map[int]*partition, len(s.partitions))
	for year, p := range s.partitions {
		open[year] = p
	}
	s.partitions = make(map[int]*partition)
	s.mu.Unlock()

	var firstErr error
	for year, p := range open {
		if err := closePartition(year, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func closePartition(year int, p *partition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tx != nil {
		if err := p.tx.Commit(); err != nil {
			p.tx = nil
			_ = p.db.Close()
			return fmt.Errorf("flush partition %d on close: %w", year, err)
		}
		p.tx = nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close partition %d: %w", year, err)
	}
	return nil
}
