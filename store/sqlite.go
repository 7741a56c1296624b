package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key             TEXT PRIMARY KEY,
	body            BLOB NOT NULL,
	header          TEXT NOT NULL,
	status          INTEGER NOT NULL,
	created_at_ms   INTEGER NOT NULL,
	revalidate_ms   INTEGER NOT NULL,
	tags            TEXT NOT NULL,
	revision        INTEGER NOT NULL,
	revalidating_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore persists entries in a local SQLite database. Conditional
// writes use a revision check inside a single UPDATE statement, which the
// database serializes per key.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a SQLite-backed store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get retrieves an entry. Returns (nil, false, nil) on miss.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT body, header, status, created_at_ms, revalidate_ms, tags, revision, revalidating_ms
		FROM entries WHERE key = ?`, key)

	var (
		e              Entry
		headerJSON     string
		tagsJSON       string
		createdMS      int64
		revalidateMS   int64
		revalidatingMS int64
	)
	err := row.Scan(&e.Body, &headerJSON, &e.Status, &createdMS, &revalidateMS, &tagsJSON, &e.Revision, &revalidatingMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read entry: %w", err)
	}
	e.Key = key
	e.CreatedAt = fromMillis(createdMS)
	e.Revalidate = time.Duration(revalidateMS) * time.Millisecond
	if revalidatingMS != 0 {
		e.RevalidatingAt = fromMillis(revalidatingMS)
	}
	if err := json.Unmarshal([]byte(headerJSON), &e.Header); err != nil {
		return nil, false, fmt.Errorf("store: decode header: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, false, fmt.Errorf("store: decode tags: %w", err)
	}
	return &e, true, nil
}

// Set stores an entry unconditionally, assigning it the next revision.
func (s *SQLiteStore) Set(ctx context.Context, key string, e *Entry) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if e == nil {
		return ErrNilEntry
	}
	headerJSON, tagsJSON, err := encodeEntry(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (key, body, header, status, created_at_ms, revalidate_ms, tags, revision, revalidating_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			header = excluded.header,
			status = excluded.status,
			created_at_ms = excluded.created_at_ms,
			revalidate_ms = excluded.revalidate_ms,
			tags = excluded.tags,
			revision = entries.revision + 1,
			revalidating_ms = excluded.revalidating_ms`,
		key, e.Body, headerJSON, e.Status, toMillis(e.CreatedAt),
		e.Revalidate.Milliseconds(), tagsJSON, lockMillis(e.RevalidatingAt))
	if err != nil {
		return fmt.Errorf("store: write entry: %w", err)
	}
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store: delete entry: %w", err)
	}
	return nil
}

// CompareAndSwap stores e only if the current revision equals expect.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, expect uint64, e *Entry) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	if e == nil {
		return false, ErrNilEntry
	}
	headerJSON, tagsJSON, err := encodeEntry(e)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries SET
			body = ?,
			header = ?,
			status = ?,
			created_at_ms = ?,
			revalidate_ms = ?,
			tags = ?,
			revision = revision + 1,
			revalidating_ms = ?
		WHERE key = ? AND revision = ?`,
		e.Body, headerJSON, e.Status, toMillis(e.CreatedAt),
		e.Revalidate.Milliseconds(), tagsJSON, lockMillis(e.RevalidatingAt),
		key, expect)
	if err != nil {
		return false, fmt.Errorf("store: conditional write: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: conditional write result: %w", err)
	}
	return n == 1, nil
}

func encodeEntry(e *Entry) (headerJSON, tagsJSON string, err error) {
	header := e.Header
	if header == nil {
		header = http.Header{}
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return "", "", fmt.Errorf("store: encode header: %w", err)
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("store: encode tags: %w", err)
	}
	return string(hb), string(tb), nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func lockMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return toMillis(value)
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
