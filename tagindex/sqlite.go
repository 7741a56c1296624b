package tagindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tag_keys (
	tag TEXT NOT NULL,
	key TEXT NOT NULL,
	PRIMARY KEY (tag, key)
);
CREATE INDEX IF NOT EXISTS tag_keys_by_tag ON tag_keys (tag);
`

// SQLiteIndex persists the tag mapping in a local SQLite database. SQLite
// serializes writers, which provides the read-after-write guarantee the
// index contract requires.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLiteIndex opens (creating if needed) a SQLite-backed index at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("tagindex: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tagindex: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tagindex: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tagindex: apply schema: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Close closes the SQLite handle.
func (i *SQLiteIndex) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Register adds key to each tag's key set in a single transaction.
func (i *SQLiteIndex) Register(ctx context.Context, key string, tags []string) error {
	if key == "" {
		return ErrInvalidKey
	}
	for _, tag := range tags {
		if err := ValidateTag(tag); err != nil {
			return err
		}
	}
	if len(tags) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tagindex: begin register: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag_keys (tag, key) VALUES (?, ?)`, tag, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tagindex: register %q: %w", tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tagindex: commit register: %w", err)
	}
	return nil
}

// Keys returns every key registered under tag, sorted for determinism.
func (i *SQLiteIndex) Keys(ctx context.Context, tag string) ([]string, error) {
	if err := ValidateTag(tag); err != nil {
		return nil, err
	}

	rows, err := i.db.QueryContext(ctx,
		`SELECT key FROM tag_keys WHERE tag = ? ORDER BY key`, tag)
	if err != nil {
		return nil, fmt.Errorf("tagindex: read keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("tagindex: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tagindex: iterate keys: %w", err)
	}
	return keys, nil
}

// Ensure SQLiteIndex implements Index
var _ Index = (*SQLiteIndex)(nil)
