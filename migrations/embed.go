// Package migrations embeds the SQL migration files applied to each yearly
// partition database.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
