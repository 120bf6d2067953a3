// Package capture feeds the partitioned store from the platform: a live
// handler that records each qualifying event as it arrives, and a
// checkpointed backfill job that catches up on history missed while the
// process was down.
package capture

import (
	"context"
	"io"
	"log/slog"

	"github.com/purrlab/catscan/internal/metrics"
	"github.com/purrlab/catscan/internal/platform"
	"github.com/purrlab/catscan/internal/store"
)

// record builds the persisted row for a qualifying message.
func record(msg platform.Message) store.Record {
	return store.Record{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.AuthorID,
		CreatedAt: msg.CreatedAt.UTC(),
		Content:   msg.Content,
		Counters:  metrics.Extract(msg),
	}
}

// LiveHandler records live message events one at a time. Latency matters
// more than throughput on this path, so every event is committed
// immediately instead of joining a batch.
type LiveHandler struct {
	filter *metrics.Filter
	store  *store.Store
	logger *slog.Logger
}

var _ platform.IngestionSink = (*LiveHandler)(nil)

// NewLiveHandler creates the live ingestion sink.
func NewLiveHandler(filter *metrics.Filter, st *store.Store, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LiveHandler{
		filter: filter,
		store:  st,
		logger: logger.With("component", "live_handler"),
	}
}

// OnMessage filters, extracts and durably stores one event. Failures are
// logged and swallowed: a bad event must never crash the listener or block
// the ones behind it.
func (h *LiveHandler) OnMessage(ctx context.Context, msg platform.Message) {
	if !h.filter.ShouldCapture(msg) {
		return
	}

	rec := record(msg)
	if err := h.store.InsertMessage(ctx, rec); err != nil {
		h.logger.ErrorContext(ctx, "failed to store live message",
			"message_id", msg.ID, "channel_id", msg.ChannelID, "error", err)
		return
	}
	if err := h.store.Commit(ctx, rec.CreatedAt.Year()); err != nil {
		h.logger.ErrorContext(ctx, "failed to commit live message",
			"message_id", msg.ID, "channel_id", msg.ChannelID, "error", err)
	}
}
