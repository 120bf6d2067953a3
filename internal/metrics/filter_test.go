package metrics

import (
	"testing"
	"time"

	"github.com/purrlab/catscan/internal/platform"
)

const (
	testGuild     = "guild-1"
	testFirstYear = 2025
)

func testFilter() *Filter {
	ignored := NewIgnoreSet(
		[]string{"chan-ignored"},
		[]string{"cat-archived", "cat-admin"},
	)
	return NewFilter(testGuild, testFirstYear, Cutoff{Month: time.December, Day: 15}, ignored)
}

func baseMessage() platform.Message {
	return platform.Message{
		ID:          "msg-1",
		GuildID:     testGuild,
		ChannelID:   "chan-general",
		ChannelKind: platform.KindText,
		AuthorID:    "author-1",
		CreatedAt:   time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
		Content:     "hello",
	}
}

func TestShouldCapture(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2025, time.December, 15, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*platform.Message)
		want   bool
	}{
		{
			name:   "plain text message passes",
			mutate: func(m *platform.Message) {},
			want:   true,
		},
		{
			name:   "thread message passes",
			mutate: func(m *platform.Message) { m.ChannelKind = platform.KindThread },
			want:   true,
		},
		{
			name:   "wrong guild",
			mutate: func(m *platform.Message) { m.GuildID = "guild-2" },
			want:   false,
		},
		{
			name:   "bot author",
			mutate: func(m *platform.Message) { m.AuthorIsBot = true },
			want:   false,
		},
		{
			name:   "ignored channel",
			mutate: func(m *platform.Message) { m.ChannelID = "chan-ignored" },
			want:   false,
		},
		{
			name: "ignored category with unlisted channel id",
			mutate: func(m *platform.Message) {
				m.ChannelID = "chan-not-in-any-list"
				m.CategoryID = "cat-archived"
			},
			want: false,
		},
		{
			name:   "voice channel",
			mutate: func(m *platform.Message) { m.ChannelKind = platform.KindVoice },
			want:   false,
		},
		{
			name:   "direct message",
			mutate: func(m *platform.Message) { m.ChannelKind = platform.KindDM },
			want:   false,
		},
		{
			name:   "year before first capture year",
			mutate: func(m *platform.Message) { m.CreatedAt = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) },
			want:   false,
		},
		{
			name:   "exactly at cutoff",
			mutate: func(m *platform.Message) { m.CreatedAt = cutoff },
			want:   true,
		},
		{
			name:   "one microsecond after cutoff",
			mutate: func(m *platform.Message) { m.CreatedAt = cutoff.Add(time.Microsecond) },
			want:   false,
		},
		{
			name: "non-UTC timestamp is normalized before the cutoff check",
			mutate: func(m *platform.Message) {
				// 19:00 EST == 00:00 UTC the next day, past the cutoff.
				est := time.FixedZone("EST", -5*60*60)
				m.CreatedAt = time.Date(2025, time.December, 15, 19, 0, 0, 0, est)
			},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg := baseMessage()
			tc.mutate(&msg)
			if got := testFilter().ShouldCapture(msg); got != tc.want {
				t.Errorf("ShouldCapture() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSkipChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ch   platform.Channel
		want bool
	}{
		{
			name: "regular text channel kept",
			ch:   platform.Channel{ID: "chan-general", Kind: platform.KindText},
			want: false,
		},
		{
			name: "voice channel skipped",
			ch:   platform.Channel{ID: "chan-voice", Kind: platform.KindVoice},
			want: true,
		},
		{
			name: "ignored channel skipped",
			ch:   platform.Channel{ID: "chan-ignored", Kind: platform.KindText},
			want: true,
		},
		{
			name: "channel under ignored category skipped",
			ch:   platform.Channel{ID: "chan-other", CategoryID: "cat-admin", Kind: platform.KindText},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := testFilter().SkipChannel(tc.ch); got != tc.want {
				t.Errorf("SkipChannel() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCutoffFor(t *testing.T) {
	t.Parallel()

	c := Cutoff{Month: time.December, Day: 15}
	want := time.Date(2027, time.December, 15, 23, 59, 59, 0, time.UTC)
	if got := c.For(2027); !got.Equal(want) {
		t.Errorf("For(2027) = %v, want %v", got, want)
	}
}
