package store

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for store operations.
var (
	ErrNilStore   = errors.New("store: store is nil")
	ErrInvalidKey = errors.New("store: key is invalid")
	ErrKeyTooLong = errors.New("store: key exceeds max length")
	ErrNilEntry   = errors.New("store: entry is nil")
)

// Store is the interface for persisting rendered responses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Consistency: Get may observe a slightly stale value on distributed
//   backends; CompareAndSwap must be atomic per key.
type Store interface {
	// Get retrieves an entry. Returns (nil, false, nil) on miss.
	// The returned entry is owned by the caller and safe to mutate.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores an entry unconditionally, assigning it the next revision.
	Set(ctx context.Context, key string, e *Entry) error

	// Delete removes an entry. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// CompareAndSwap stores e only if the current entry's revision equals
	// expect. Returns false without error when the entry changed or is gone.
	CompareAndSwap(ctx context.Context, key string, expect uint64, e *Entry) (bool, error)
}

// Key derives the cache key for a request path. Keys are derived from the
// canonical path alone; query parameters and headers never participate.
func Key(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "/"
	}
	// Tolerate callers passing a full URL or a path with a query string.
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	return "isr:" + p
}

// ValidateKey checks if a key is valid for storage.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
