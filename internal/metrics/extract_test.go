package metrics

import (
	"testing"

	"github.com/purrlab/catscan/internal/platform"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  platform.Message
		want Counters
	}{
		{
			name: "plain text",
			msg:  platform.Message{Content: "the quick brown fox"},
			want: Counters{WordCount: 4, CharCount: 19},
		},
		{
			name: "empty content",
			msg:  platform.Message{},
			want: Counters{},
		},
		{
			name: "whitespace only content has no words",
			msg:  platform.Message{Content: "   \t\n "},
			want: Counters{CharCount: 7},
		},
		{
			name: "stickers and embeds taken verbatim",
			msg:  platform.Message{StickerCount: 3, EmbedCount: 2},
			want: Counters{StickerCount: 3, EmbedCount: 2},
		},
		{
			name: "image by declared media type",
			msg: platform.Message{Attachments: []platform.Attachment{
				{ContentType: "image/png", Filename: "whatever.bin"},
			}},
			want: Counters{AttachmentCount: 1, ImageCount: 1},
		},
		{
			name: "video by declared media type",
			msg: platform.Message{Attachments: []platform.Attachment{
				{ContentType: "video/mp4", Filename: "clip"},
			}},
			want: Counters{AttachmentCount: 1, VideoCount: 1},
		},
		{
			name: "image by extension fallback",
			msg: platform.Message{Attachments: []platform.Attachment{
				{Filename: "CAT.JPG"},
			}},
			want: Counters{AttachmentCount: 1, ImageCount: 1},
		},
		{
			name: "video by extension fallback",
			msg: platform.Message{Attachments: []platform.Attachment{
				{Filename: "clip.mov"},
			}},
			want: Counters{AttachmentCount: 1, VideoCount: 1},
		},
		{
			name: "declared media type beats a conflicting extension",
			msg: platform.Message{Attachments: []platform.Attachment{
				{ContentType: "video/quicktime", Filename: "thumbnail.png"},
			}},
			want: Counters{AttachmentCount: 1, VideoCount: 1},
		},
		{
			name: "unclassified attachment counts once",
			msg: platform.Message{Attachments: []platform.Attachment{
				{Filename: "notes.txt"},
			}},
			want: Counters{AttachmentCount: 1},
		},
		{
			name: "mixed attachments",
			msg: platform.Message{
				Content: "look at these",
				Attachments: []platform.Attachment{
					{ContentType: "image/gif", Filename: "funny.gif"},
					{Filename: "trip.webp"},
					{Filename: "clip.mp4"},
					{Filename: "archive.zip"},
				},
			},
			want: Counters{
				WordCount:       3,
				CharCount:       13,
				AttachmentCount: 4,
				ImageCount:      2,
				VideoCount:      1,
			},
		},
		{
			name: "attachment with no metadata at all",
			msg: platform.Message{Attachments: []platform.Attachment{
				{},
			}},
			want: Counters{AttachmentCount: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Extract(tc.msg); got != tc.want {
				t.Errorf("Extract() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
