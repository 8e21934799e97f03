// Package history persists finished games in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one finished game.
type Record struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []string
	Winners    []string
}

// Store persists game records in a SQLite file.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	players TEXT NOT NULL,
	winners TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS games_finished_at ON games (finished_at);
`

// Open opens (creating if needed) the store at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one finished game, replacing any earlier row with the same id.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	winners, err := json.Marshal(rec.Winners)
	if err != nil {
		return fmt.Errorf("marshal winners: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO games (id, started_at, finished_at, players, winners) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().UnixMilli(), rec.FinishedAt.UTC().UnixMilli(), string(players), string(winners))
	if err != nil {
		return fmt.Errorf("insert game %s: %w", rec.ID, err)
	}
	return nil
}

// Recent lists up to n finished games, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, players, winners FROM games ORDER BY finished_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec                 Record
			started, finished   int64
			playersRaw, winsRaw string
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &playersRaw, &winsRaw); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		if err := json.Unmarshal([]byte(playersRaw), &rec.Players); err != nil {
			return nil, fmt.Errorf("unmarshal players for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(winsRaw), &rec.Winners); err != nil {
			return nil, fmt.Errorf("unmarshal winners for %s: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
