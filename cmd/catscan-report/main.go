// Package main analyzes one Cat Scan partition database offline and prints
// a statistics report to stdout and a report file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/purrlab/catscan/internal/report"

	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	dbPath := flag.String("db", "data/cat_scan/cat_scan_2025.sqlite",
		"Path to the partition database file")
	outPath := flag.String("out", "cat_scan_report.txt",
		"Path to the output text report file")
	topN := flag.Int("top", 20,
		"Number of rows to show for most leaderboards")
	minMessages := flag.Int("min-messages", 50,
		"Minimum messages required for an author to appear in derived stats")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Database file not found: %s\n", *dbPath)
		return 1
	}

	db, err := sqlx.Connect("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database %s: %v\n", *dbPath, err)
		return 1
	}
	defer db.Close()

	out, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create report file %s: %v\n", *outPath, err)
		return 1
	}
	defer out.Close()

	r := report.NewReporter(os.Stdout, out)
	if err := report.Run(context.Background(), db, r, report.Options{
		TopN:        *topN,
		MinMessages: *minMessages,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
		return 1
	}

	abs, err := filepath.Abs(*outPath)
	if err != nil {
		abs = *outPath
	}
	r.Blank()
	r.Linef("Report written to: %s", abs)
	if err := r.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed writing report output: %v\n", err)
		return 1
	}
	return 0
}
