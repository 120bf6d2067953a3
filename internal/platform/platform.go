// Package platform defines the boundary between the capture subsystem and
// the chat platform the bot is connected to. The real client library lives
// in the host bot; everything here is the narrow surface the capture and
// backfill paths actually consume: a message event, a channel listing, a
// paged history cursor, and a readiness signal.
package platform

import (
	"context"
	"time"
)

// ChannelKind describes what a channel can carry. Only text-capable
// channels (text channels and threads) are eligible for capture.
type ChannelKind int

const (
	KindText ChannelKind = iota
	KindThread
	KindVoice
	KindDM
	KindOther
)

// TextCapable reports whether messages in a channel of this kind can be
// read as message history.
func (k ChannelKind) TextCapable() bool {
	return k == KindText || k == KindThread
}

// Attachment is a file attached to a message. ContentType is the media type
// declared by the platform and may be empty; Filename always carries the
// original name.
type Attachment struct {
	ContentType string
	Filename    string
}

// Message is a single inbound message event, either delivered live or
// fetched from channel history. Fields the platform did not provide are
// left at their zero values.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	CategoryID  string // parent category of the channel, empty if none
	ChannelKind ChannelKind
	AuthorID    string
	AuthorIsBot bool
	CreatedAt   time.Time
	Content     string
	Attachments []Attachment

	StickerCount int
	EmbedCount   int
}

// Channel is one channel of the target guild as seen during backfill
// enumeration.
type Channel struct {
	ID             string
	GuildID        string
	CategoryID     string
	Kind           ChannelKind
	Name           string
	CanReadHistory bool
}

// IngestionSink receives live message events. Implementations must not
// panic and must not block the delivery of subsequent events on a single
// failure.
type IngestionSink interface {
	OnMessage(ctx context.Context, msg Message)
}

// HistoryPage is one page of channel history. NextToken is empty when the
// requested window is exhausted; otherwise it is passed verbatim to the
// next FetchHistoryPage call. A page sequence is lazy and finite but not
// restartable mid-stream: a consumer that stops must recompute its resume
// point from storage.
type HistoryPage struct {
	Messages  []Message
	NextToken string
}

// Gateway is the connection to the chat platform.
type Gateway interface {
	// Ready blocks until the live connection is established, or returns the
	// context error if the process shuts down first.
	Ready(ctx context.Context) error

	// Channels lists every channel of the target guild.
	Channels(ctx context.Context) ([]Channel, error)

	// FetchHistoryPage returns one page of a channel's history strictly
	// after `after` (exclusive) and up to `before` (inclusive), oldest
	// first. Pass an empty token for the first page.
	FetchHistoryPage(ctx context.Context, channelID string, after, before time.Time, token string) (HistoryPage, error)

	// Listen delivers live message events to the sink until the context is
	// cancelled.
	Listen(ctx context.Context, sink IngestionSink) error
}
