package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default persistence backend: a single local SQLite
// database with WAL enabled so reads stay usable while a batch writes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			published INTEGER NOT NULL DEFAULT 0,
			published_at_ms INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_project ON entries(project_id, created_at_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ListEntries(ctx context.Context, projectID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, content, version, tags, published, published_at_ms, created_at_ms, updated_at_ms
		FROM entries WHERE project_id = ? ORDER BY created_at_ms, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) CreateEntry(ctx context.Context, projectID string, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	tags, err := json.Marshal(tagsOrEmpty(e.Tags))
	if err != nil {
		return "", fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, project_id, title, content, version, tags, published, published_at_ms, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, projectID, e.Title, e.Content, e.Version, string(tags),
		boolToInt(e.Published), unixMS(e.PublishedAt), unixMS(e.CreatedAt), unixMS(e.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("inserting entry: %w", err)
	}
	return e.ID, nil
}

func (s *SQLiteStore) UpdateEntry(ctx context.Context, id string, e Entry) error {
	tags, err := json.Marshal(tagsOrEmpty(e.Tags))
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET title = ?, content = ?, version = ?, tags = ?, published = ?, published_at_ms = ?, updated_at_ms = ?
		WHERE id = ?
	`, e.Title, e.Content, e.Version, string(tags),
		boolToInt(e.Published), unixMS(e.PublishedAt), unixMS(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var tagsJSON string
	var published int
	var publishedMS, createdMS, updatedMS int64

	if err := rows.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Content, &e.Version,
		&tagsJSON, &published, &publishedMS, &createdMS, &updatedMS); err != nil {
		return Entry{}, fmt.Errorf("scanning entry: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return Entry{}, fmt.Errorf("unmarshaling tags: %w", err)
	}
	e.Published = published != 0
	e.PublishedAt = fromUnixMS(publishedMS)
	e.CreatedAt = fromUnixMS(createdMS)
	e.UpdatedAt = fromUnixMS(updatedMS)
	return e, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMS(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
