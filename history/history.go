// Package history keeps a SQLite log of successful extractions, one row
// per scrape, for operational inspection. It is optional and best-effort:
// a logging failure never fails the request that produced the record.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    profile_url   TEXT NOT NULL,
    candidate_url TEXT NOT NULL,
    record        TEXT NOT NULL,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_profile
    ON extractions (profile_url, fetched_at);
`

// Store is an open history database.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Entry is one logged extraction.
type Entry struct {
	ProfileURL   string
	CandidateURL string
	Record       json.RawMessage
	FetchedAt    time.Time
}

// Record inserts one extraction.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions (profile_url, candidate_url, record, fetched_at)
		 VALUES (?, ?, ?, ?)`,
		e.ProfileURL, e.CandidateURL, string(e.Record), e.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to n extractions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT profile_url, candidate_url, record, fetched_at
		 FROM extractions ORDER BY fetched_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var record string
		var fetched int64
		if err := rows.Scan(&e.ProfileURL, &e.CandidateURL, &record, &fetched); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Record = json.RawMessage(record)
		e.FetchedAt = time.UnixMilli(fetched).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
