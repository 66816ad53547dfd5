package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the snapshot in a single table. Save replaces the table
// contents inside one transaction so readers never see a partial snapshot.
// The schema is created on first use, so an unreadable database file surfaces
// as a Load or Save error rather than a constructor failure.
type SQLiteStore struct {
	db *sql.DB

	mu       sync.Mutex
	migrated bool
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrated {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("cache schema migration failed: %w", err)
	}
	s.migrated = true
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]Entry, error) {
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, created_at FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var (
			key     string
			raw     string
			created int64
		)
		if err := rows.Scan(&key, &raw, &created); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
		}
		entries[key] = Entry{Value: value, CreatedAt: time.Unix(0, created)}
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, entries map[string]Entry) error {
	if err := s.migrate(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cache_entries (key, value, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for key, e := range entries {
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(raw), e.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert cache entry %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
