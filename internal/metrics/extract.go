package metrics

import (
	"strings"

	"github.com/purrlab/catscan/internal/platform"
)

// imageExtensions and videoExtensions classify attachments whose declared
// media type is missing or unhelpful.
var (
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	videoExtensions = []string{".mp4", ".mov"}
)

// Counters are the derived per-message statistics persisted alongside a
// captured message.
type Counters struct {
	WordCount       int `db:"word_count"`
	CharCount       int `db:"char_count"`
	AttachmentCount int `db:"attachment_count"`
	ImageCount      int `db:"image_count"`
	VideoCount      int `db:"video_count"`
	StickerCount    int `db:"sticker_count"`
	EmbedCount      int `db:"embed_count"`
}

// Extract derives counters from a raw message. It never fails: malformed or
// missing attachment metadata simply leaves the corresponding counter at
// zero.
func Extract(msg platform.Message) Counters {
	c := Counters{
		CharCount:       len(msg.Content),
		WordCount:       len(strings.Fields(msg.Content)),
		AttachmentCount: len(msg.Attachments),
		StickerCount:    msg.StickerCount,
		EmbedCount:      msg.EmbedCount,
	}

	for _, att := range msg.Attachments {
		switch classify(att) {
		case mediaImage:
			c.ImageCount++
		case mediaVideo:
			c.VideoCount++
		}
	}
	return c
}

type mediaClass int

const (
	mediaOther mediaClass = iota
	mediaImage
	mediaVideo
)

// classify buckets an attachment as image, video or other. The declared
// media type wins; the filename extension is only a fallback, so an
// attachment counts toward at most one of image/video.
func classify(att platform.Attachment) mediaClass {
	switch {
	case strings.HasPrefix(att.ContentType, "image/"):
		return mediaImage
	case strings.HasPrefix(att.ContentType, "video/"):
		return mediaVideo
	}

	name := strings.ToLower(att.Filename)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return mediaImage
		}
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(name, ext) {
			return mediaVideo
		}
	}
	return mediaOther
}
