package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore is an in-memory store implementation backed by a sharded
// concurrent map. Per-key atomicity comes from the map's Compute primitive.
type MemoryStore struct {
	entries *xsync.MapOf[string, *Entry]
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMapOf[string, *Entry](),
	}
}

// Get retrieves an entry. Returns (nil, false, nil) on miss.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	e, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

// Set stores an entry unconditionally, assigning it the next revision.
func (s *MemoryStore) Set(_ context.Context, key string, e *Entry) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if e == nil {
		return ErrNilEntry
	}
	stored := e.Clone()
	stored.Key = key
	s.entries.Compute(key, func(old *Entry, loaded bool) (*Entry, bool) {
		if loaded {
			stored.Revision = old.Revision + 1
		} else {
			stored.Revision = 1
		}
		return stored, false
	})
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.entries.Delete(key)
	return nil
}

// CompareAndSwap stores e only if the current revision equals expect.
func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, expect uint64, e *Entry) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	if e == nil {
		return false, ErrNilEntry
	}
	stored := e.Clone()
	stored.Key = key
	swapped := false
	s.entries.Compute(key, func(old *Entry, loaded bool) (*Entry, bool) {
		if !loaded || old.Revision != expect {
			// Keep whatever is there; delete nothing on a missing key.
			return old, !loaded
		}
		stored.Revision = expect + 1
		swapped = true
		return stored, false
	})
	return swapped, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	return s.entries.Size()
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
