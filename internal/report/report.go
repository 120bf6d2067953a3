package report

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Options controls report shape.
type Options struct {
	// TopN caps rows per leaderboard.
	TopN int
	// MinMessages gates derived per-author ratios, keeping small samples
	// out of the leaderboards.
	MinMessages int
}

// Run executes the full statistics battery against one partition database
// and renders it through the reporter. All queries are read-only.
func Run(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	if err := globalOverview(ctx, db, r); err != nil {
		return err
	}
	if err := userLeaderboards(ctx, db, r, opts); err != nil {
		return err
	}
	if err := mediaLeaderboards(ctx, db, r, opts); err != nil {
		return err
	}
	if err := styleStats(ctx, db, r, opts); err != nil {
		return err
	}
	if err := timeOfDayStats(ctx, db, r, opts); err != nil {
		return err
	}
	if err := channelStats(ctx, db, r, opts); err != nil {
		return err
	}
	if err := derivedStats(ctx, db, r, opts); err != nil {
		return err
	}
	return r.Err()
}

func globalOverview(ctx context.Context, db *sqlx.DB, r *Reporter) error {
	r.Section("Global Overview")

	var totals struct {
		Messages    int64         `db:"total_messages"`
		Words       sql.NullInt64 `db:"total_words"`
		Chars       sql.NullInt64 `db:"total_chars"`
		Attachments sql.NullInt64 `db:"total_attachments"`
		Images      sql.NullInt64 `db:"total_images"`
		Videos      sql.NullInt64 `db:"total_videos"`
		Stickers    sql.NullInt64 `db:"total_stickers"`
		Embeds      sql.NullInt64 `db:"total_embeds"`
		Authors     int64         `db:"unique_authors"`
		Channels    int64         `db:"unique_channels"`
	}
	err := db.GetContext(ctx, &totals, `
        SELECT
            COUNT(*)                   AS total_messages,
            SUM(word_count)            AS total_words,
            SUM(char_count)            AS total_chars,
            SUM(attachment_count)      AS total_attachments,
            SUM(image_count)           AS total_images,
            SUM(video_count)           AS total_videos,
            SUM(sticker_count)         AS total_stickers,
            SUM(embed_count)           AS total_embeds,
            COUNT(DISTINCT author_id)  AS unique_authors,
            COUNT(DISTINCT channel_id) AS unique_channels
        FROM messages;
    `)
	if err != nil {
		return fmt.Errorf("global overview: %w", err)
	}

	if totals.Messages == 0 {
		r.Line("No messages in database.")
		return nil
	}

	var span struct {
		Oldest sql.NullString `db:"oldest"`
		Newest sql.NullString `db:"newest"`
	}
	err = db.GetContext(ctx, &span,
		`SELECT MIN(created_at) AS oldest, MAX(created_at) AS newest FROM messages;`)
	if err != nil {
		return fmt.Errorf("message time span: %w", err)
	}

	r.Linef("Total messages:    %d", totals.Messages)
	r.Linef("Total words:       %d", totals.Words.Int64)
	r.Linef("Total characters:  %d", totals.Chars.Int64)
	r.Linef("Total attachments: %d", totals.Attachments.Int64)
	r.Linef("  - images:        %d", totals.Images.Int64)
	r.Linef("  - videos:        %d", totals.Videos.Int64)
	r.Linef("  - stickers:      %d", totals.Stickers.Int64)
	r.Linef("Total embeds:      %d", totals.Embeds.Int64)
	r.Linef("Unique authors:    %d", totals.Authors)
	r.Linef("Unique channels:   %d", totals.Channels)
	r.Linef("Oldest message:    %s", span.Oldest.String)
	r.Linef("Newest message:    %s", span.Newest.String)
	return nil
}

func userLeaderboards(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("User Leaderboards")

	boards := []struct {
		title   string
		headers []string
		query   string
	}{
		{
			"Top by Messages",
			[]string{"author_id", "messages"},
			`SELECT author_id, COUNT(*) AS messages
             FROM messages GROUP BY author_id ORDER BY messages DESC;`,
		},
		{
			"Top by Words",
			[]string{"author_id", "total_words"},
			`SELECT author_id, SUM(word_count) AS total_words
             FROM messages GROUP BY author_id ORDER BY total_words DESC;`,
		},
		{
			"Top by Characters",
			[]string{"author_id", "total_chars"},
			`SELECT author_id, SUM(char_count) AS total_chars
             FROM messages GROUP BY author_id ORDER BY total_chars DESC;`,
		},
	}
	for _, b := range boards {
		rows, err := queryRows(ctx, db, b.query)
		if err != nil {
			return fmt.Errorf("%s: %w", b.title, err)
		}
		r.Table(b.title, b.headers, rows, opts.TopN)
	}
	return nil
}

func mediaLeaderboards(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("Media & Attachment Leaderboards")

	boards := []struct {
		title  string
		column string
		alias  string
	}{
		{"Top by Attachments", "attachment_count", "attachments"},
		{"Top by Images", "image_count", "images"},
		{"Top by Videos", "video_count", "videos"},
		{"Top by Stickers", "sticker_count", "stickers"},
		{"Top by Embeds", "embed_count", "embeds"},
	}
	for _, b := range boards {
		query := fmt.Sprintf(`SELECT author_id, SUM(%s) AS %s
            FROM messages GROUP BY author_id ORDER BY %s DESC;`, b.column, b.alias, b.alias)
		rows, err := queryRows(ctx, db, query)
		if err != nil {
			return fmt.Errorf("%s: %w", b.title, err)
		}
		r.Table(b.title, []string{"author_id", b.alias}, rows, opts.TopN)
	}
	return nil
}

func styleStats(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("Message Style Stats")

	rows, err := queryRows(ctx, db, `
        SELECT author_id,
            COUNT(*) AS messages,
            SUM(word_count) AS total_words,
            ROUND(1.0 * SUM(word_count) / COUNT(*), 2) AS avg_words_per_message
        FROM messages
        GROUP BY author_id
        HAVING messages >= ?
        ORDER BY avg_words_per_message DESC;
    `, opts.MinMessages)
	if err != nil {
		return fmt.Errorf("average words per message: %w", err)
	}
	r.Table(fmt.Sprintf("Yapaholics (min %d msgs)", opts.MinMessages),
		[]string{"author_id", "messages", "total_words", "avg_words_per_message"},
		rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT author_id, COUNT(*) AS messages,
            SUM(CASE WHEN attachment_count > 0 THEN 1 ELSE 0 END)
                AS msgs_with_attachments,
            ROUND(100.0 * SUM(
                CASE WHEN attachment_count > 0 THEN 1 ELSE 0 END
            ) / COUNT(*), 1) AS pct_with_attachments
        FROM messages
        GROUP BY author_id
        HAVING messages >= ?
        ORDER BY pct_with_attachments DESC;
    `, opts.MinMessages)
	if err != nil {
		return fmt.Errorf("attachment percentage: %w", err)
	}
	r.Table(fmt.Sprintf("Media-First Users (min %d msgs)", opts.MinMessages),
		[]string{"author_id", "messages", "msgs_with_attachments", "pct_with_attachments"},
		rows, opts.TopN)
	return nil
}

// timeOfDayStats buckets activity in a fixed UTC-5 reference offset, the
// community's home timezone approximation.
func timeOfDayStats(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("Time-of-Day Stats")

	rows, err := queryRows(ctx, db, `
        WITH per_user AS (
            SELECT author_id,
                COUNT(*) AS total_messages,
                SUM(
                    CASE
                    WHEN CAST(
                        strftime('%H', datetime(created_at, '-5 hours')) AS INTEGER)
                        BETWEEN 0 AND 3
                        THEN 1 ELSE 0
                    END
                ) AS night_messages
            FROM messages
            GROUP BY author_id
        )
        SELECT author_id,
            total_messages,
            night_messages,
            ROUND(100.0 * night_messages / total_messages, 1) AS night_pct
        FROM per_user
        WHERE total_messages >= ?
        ORDER BY night_pct DESC, night_messages DESC;
    `, opts.MinMessages)
	if err != nil {
		return fmt.Errorf("night owls: %w", err)
	}
	r.Table(fmt.Sprintf("Night Owls (00:00-04:00 EST, min %d msgs)", opts.MinMessages),
		[]string{"author_id", "total_messages", "night_messages", "night_pct"},
		rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT author_id,
            COUNT(*) AS morning_messages
        FROM messages
        WHERE CAST(strftime('%H', datetime(created_at, '-5 hours')) AS INTEGER)
            BETWEEN 4 AND 7
        GROUP BY author_id
        ORDER BY morning_messages DESC;
    `)
	if err != nil {
		return fmt.Errorf("early birds: %w", err)
	}
	r.Table("Early Birds (04:00-08:00 EST)",
		[]string{"author_id", "morning_messages"}, rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT strftime('%H', datetime(created_at, '-5 hours')) AS hour_est,
            COUNT(*) AS messages
        FROM messages
        GROUP BY hour_est
        ORDER BY hour_est;
    `)
	if err != nil {
		return fmt.Errorf("hourly histogram: %w", err)
	}
	r.Table("Messages by Hour of Day (EST, UTC-5 approx)",
		[]string{"hour_est", "messages"}, rows, 0)

	rows, err = queryRows(ctx, db, `
        SELECT strftime('%w', created_at) AS weekday,
            COUNT(*) AS messages
        FROM messages
        GROUP BY weekday
        ORDER BY messages DESC;
    `)
	if err != nil {
		return fmt.Errorf("weekday histogram: %w", err)
	}
	r.Table("Messages by Weekday (0=Sun, 6=Sat)",
		[]string{"weekday", "messages"}, rows, 0)
	return nil
}

func channelStats(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("Channel Stats")

	rows, err := queryRows(ctx, db, `
        SELECT channel_id, COUNT(*) AS messages
        FROM messages
        GROUP BY channel_id
        ORDER BY messages DESC;
    `)
	if err != nil {
		return fmt.Errorf("channel message counts: %w", err)
	}
	r.Table("Top Channels by Messages", []string{"channel_id", "messages"}, rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT channel_id,
            SUM(image_count)      AS images,
            SUM(video_count)      AS videos,
            SUM(attachment_count) AS attachments
        FROM messages
        GROUP BY channel_id
        ORDER BY attachments DESC;
    `)
	if err != nil {
		return fmt.Errorf("channel media counts: %w", err)
	}
	r.Table("Top Channels by Attachments",
		[]string{"channel_id", "images", "videos", "attachments"}, rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT channel_id,
            COUNT(*) AS messages,
            SUM(word_count) AS total_words,
            ROUND(1.0 * SUM(word_count) / COUNT(*), 2) AS avg_words_per_message
        FROM messages
        GROUP BY channel_id
        HAVING messages >= 200
        ORDER BY avg_words_per_message DESC;
    `)
	if err != nil {
		return fmt.Errorf("wordiest channels: %w", err)
	}
	r.Table("Wordiest Channels (min 200 msgs)",
		[]string{"channel_id", "messages", "total_words", "avg_words_per_message"},
		rows, opts.TopN)
	return nil
}

func derivedStats(ctx context.Context, db *sqlx.DB, r *Reporter, opts Options) error {
	r.Section("Fun Derived Stats")

	rows, err := queryRows(ctx, db, `
        WITH per_user AS (
            SELECT author_id,
                COUNT(*) AS messages,
                SUM(word_count) AS total_words,
                SUM(attachment_count) AS attachments
            FROM messages
            GROUP BY author_id
        )
        SELECT author_id,
            messages,
            total_words,
            attachments,
            ROUND(1.0 * total_words / messages, 2) AS avg_words_per_message,
            ROUND(1.0 * attachments / messages, 2) AS attachments_per_message
        FROM per_user
        WHERE messages >= ?
        ORDER BY avg_words_per_message DESC, attachments_per_message ASC;
    `, opts.MinMessages)
	if err != nil {
		return fmt.Errorf("expressive texters: %w", err)
	}
	r.Table(fmt.Sprintf("Expressive Texters (min %d msgs)", opts.MinMessages),
		[]string{"author_id", "messages", "total_words", "attachments",
			"avg_words_per_message", "attachments_per_message"},
		rows, opts.TopN)

	rows, err = queryRows(ctx, db, `
        SELECT author_id, message_id, word_count, char_count, created_at
        FROM messages
        ORDER BY word_count DESC
        LIMIT ?;
    `, opts.TopN)
	if err != nil {
		return fmt.Errorf("longest messages: %w", err)
	}
	r.Table("Longest Single Messages (by words)",
		[]string{"author_id", "message_id", "word_count", "char_count", "created_at"},
		rows, 0)

	rows, err = queryRows(ctx, db, `
        WITH per_user AS (
            SELECT author_id,
                COUNT(*) AS messages,
                SUM(word_count) AS total_words
            FROM messages
            GROUP BY author_id
        )
        SELECT author_id,
            messages,
            total_words,
            ROUND(1.0 * total_words / messages, 2) AS avg_words_per_message
        FROM per_user
        WHERE messages >= ?
        ORDER BY avg_words_per_message ASC, messages DESC;
    `, opts.MinMessages)
	if err != nil {
		return fmt.Errorf("spam gods: %w", err)
	}
	r.Table(fmt.Sprintf("Spam Gods (min %d msgs)", opts.MinMessages),
		[]string{"author_id", "messages", "total_words", "avg_words_per_message"},
		rows, opts.TopN)
	return nil
}

// queryRows runs a query and stringifies every cell for table rendering.
func queryRows(ctx context.Context, db *sqlx.DB, query string, args ...any) ([][]string, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = cell(v)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
