package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// replayPageSize is how many history items one FetchHistoryPage returns.
// It mirrors the page size of the real platform client.
const replayPageSize = 100

// ReplayGateway is a Gateway over a directory of JSONL channel exports.
// Each file named <channelID>.jsonl holds one message event per line. It is
// used to run capture against an archived data dump without a live
// connection; Listen delivers nothing and blocks until shutdown.
type ReplayGateway struct {
	dir    string
	logger *slog.Logger
}

// replayEvent is the on-disk shape of one exported message event.
type replayEvent struct {
	ID          string    `json:"id"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	CategoryID  string    `json:"category_id,omitempty"`
	AuthorID    string    `json:"author_id"`
	AuthorIsBot bool      `json:"author_is_bot,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Content     string    `json:"content,omitempty"`
	Attachments []struct {
		ContentType string `json:"content_type,omitempty"`
		Filename    string `json:"filename"`
	} `json:"attachments,omitempty"`
	StickerCount int `json:"sticker_count,omitempty"`
	EmbedCount   int `json:"embed_count,omitempty"`
}

// NewReplayGateway creates a gateway reading channel exports from dir.
func NewReplayGateway(dir string, logger *slog.Logger) (*ReplayGateway, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("replay directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay directory %s is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayGateway{dir: dir, logger: logger.With("component", "replay_gateway")}, nil
}

// Ready returns immediately: an archive is always "connected".
func (g *ReplayGateway) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Channels lists one channel per *.jsonl file in the export directory. The
// channel id is the file name without extension.
func (g *ReplayGateway) Channels(ctx context.Context) ([]Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, fmt.Errorf("list replay directory: %w", err)
	}

	var channels []Channel
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".jsonl")
		ch := Channel{
			ID:             id,
			Kind:           KindText,
			Name:           id,
			CanReadHistory: true,
		}
		// Channel metadata lives on the events themselves; peek at the
		// first one for guild and category ids.
		if first, err := g.firstEvent(entry.Name()); err == nil && first != nil {
			ch.GuildID = first.GuildID
			ch.CategoryID = first.CategoryID
		}
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })
	return channels, nil
}

// FetchHistoryPage reads the channel's export, keeps events inside
// (after, before], sorts them oldest first and returns the page at the
// offset encoded in token.
func (g *ReplayGateway) FetchHistoryPage(ctx context.Context, channelID string, after, before time.Time, token string) (HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return HistoryPage{}, err
	}

	msgs, err := g.readChannel(channelID)
	if err != nil {
		return HistoryPage{}, err
	}

	var window []Message
	for _, m := range msgs {
		if m.CreatedAt.After(after) && !m.CreatedAt.After(before) {
			window = append(window, m)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].CreatedAt.Before(window[j].CreatedAt) })

	offset := 0
	if token != "" {
		offset, err = strconv.Atoi(token)
		if err != nil || offset < 0 {
			return HistoryPage{}, fmt.Errorf("malformed history page token %q", token)
		}
	}
	if offset >= len(window) {
		return HistoryPage{}, nil
	}

	end := offset + replayPageSize
	if end > len(window) {
		end = len(window)
	}
	page := HistoryPage{Messages: window[offset:end]}
	if end < len(window) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

// Listen blocks until shutdown: an archive produces no live events.
func (g *ReplayGateway) Listen(ctx context.Context, _ IngestionSink) error {
	g.logger.Info("replay gateway has no live event stream; waiting for shutdown")
	<-ctx.Done()
	return nil
}

func (g *ReplayGateway) readChannel(channelID string) ([]Message, error) {
	path := filepath.Join(g.dir, channelID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open channel export: %w", err)
	}
	defer f.Close()

	var msgs []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			g.logger.Warn("skipping malformed export line",
				"channel_id", channelID, "line", line, "error", err)
			continue
		}
		msgs = append(msgs, ev.toMessage(channelID))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read channel export: %w", err)
	}
	return msgs, nil
}

func (g *ReplayGateway) firstEvent(filename string) (*replayEvent, error) {
	f, err := os.Open(filepath.Join(g.dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		return &ev, nil
	}
	return nil, scanner.Err()
}

func (ev replayEvent) toMessage(channelID string) Message {
	msg := Message{
		ID:           ev.ID,
		GuildID:      ev.GuildID,
		ChannelID:    ev.ChannelID,
		CategoryID:   ev.CategoryID,
		ChannelKind:  KindText,
		AuthorID:     ev.AuthorID,
		AuthorIsBot:  ev.AuthorIsBot,
		CreatedAt:    ev.CreatedAt.UTC(),
		Content:      ev.Content,
		StickerCount: ev.StickerCount,
		EmbedCount:   ev.EmbedCount,
	}
	if msg.ChannelID == "" {
		msg.ChannelID = channelID
	}
	for _, a := range ev.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			ContentType: a.ContentType,
			Filename:    a.Filename,
		})
	}
	return msg
}
