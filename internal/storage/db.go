// Package storage owns the SQLite database: instrument readings, race
// sessions, video sessions, weather and tide rows, and the polar baseline.
// Timestamps are stored as fixed-width UTC ISO 8601 text so lexicographic
// comparison matches chronological order.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// tsFormat is fixed-width (always six fractional digits) so that string
// comparison in SQL range queries orders correctly.
const tsFormat = "2006-01-02T15:04:05.000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsFormat)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsFormat, s)
	if err != nil {
		// Tolerate rows written by other tooling.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// busy_timeout papers over writer contention between the ingest loop and
	// export reads; WAL lets those reads proceed without blocking writes.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}
