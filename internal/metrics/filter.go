// Package metrics decides which message events are captured and derives the
// per-message counters that get persisted. Both halves are pure: the filter
// is a side-effect-free predicate and the extractor never fails, defaulting
// missing fields to zero.
package metrics

import (
	"time"

	"github.com/purrlab/catscan/internal/platform"
)

// Cutoff is the end-of-capture instant within a year. Messages created
// after For(year) are never captured into that year's partition, leaving a
// stable dataset for year-end reporting.
type Cutoff struct {
	Month time.Month
	Day   int
}

// For returns the cutoff instant for a given year, 23:59:59 UTC on the
// configured month and day.
func (c Cutoff) For(year int) time.Time {
	return time.Date(year, c.Month, c.Day, 23, 59, 59, 0, time.UTC)
}

// IgnoreSet holds channel and category ids that must never be captured.
// It is fixed at startup and safe for concurrent reads.
type IgnoreSet struct {
	channels   map[string]struct{}
	categories map[string]struct{}
}

// NewIgnoreSet builds an IgnoreSet from configured id lists.
func NewIgnoreSet(channelIDs, categoryIDs []string) IgnoreSet {
	s := IgnoreSet{
		channels:   make(map[string]struct{}, len(channelIDs)),
		categories: make(map[string]struct{}, len(categoryIDs)),
	}
	for _, id := range channelIDs {
		s.channels[id] = struct{}{}
	}
	for _, id := range categoryIDs {
		s.categories[id] = struct{}{}
	}
	return s
}

// Channel reports whether a channel id is ignored.
func (s IgnoreSet) Channel(id string) bool {
	_, ok := s.channels[id]
	return ok
}

// Category reports whether a category id is ignored.
func (s IgnoreSet) Category(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.categories[id]
	return ok
}

// Filter decides whether a raw message event is eligible for capture.
type Filter struct {
	guildID   string
	firstYear int
	cutoff    Cutoff
	ignored   IgnoreSet
}

// NewFilter creates a Filter for one target guild. firstYear is the first
// calendar year capture supports; anything older is rejected outright.
func NewFilter(guildID string, firstYear int, cutoff Cutoff, ignored IgnoreSet) *Filter {
	return &Filter{
		guildID:   guildID,
		firstYear: firstYear,
		cutoff:    cutoff,
		ignored:   ignored,
	}
}

// ShouldCapture reports whether a message event should be recorded. It is a
// pure predicate with no side effects.
func (f *Filter) ShouldCapture(msg platform.Message) bool {
	if msg.GuildID != f.guildID {
		return false
	}
	if msg.AuthorIsBot {
		return false
	}
	if !msg.ChannelKind.TextCapable() {
		return false
	}
	if f.ignored.Channel(msg.ChannelID) || f.ignored.Category(msg.CategoryID) {
		return false
	}

	created := msg.CreatedAt.UTC()
	year := created.Year()
	if year < f.firstYear {
		return false
	}
	if created.After(f.cutoff.For(year)) {
		return false
	}
	return true
}

// SkipChannel reports whether an entire channel can be skipped during
// backfill: the filter would reject every message in it regardless of
// content.
func (f *Filter) SkipChannel(ch platform.Channel) bool {
	if !ch.Kind.TextCapable() {
		return true
	}
	return f.ignored.Channel(ch.ID) || f.ignored.Category(ch.CategoryID)
}
