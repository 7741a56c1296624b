package tagindex

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory index implementation. A single mutex owns the
// whole namespace, which serializes mutations and gives linearizable
// read-after-write behavior.
type MemoryIndex struct {
	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

// NewMemoryIndex creates a new in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		tags: make(map[string]map[string]struct{}),
	}
}

// Register adds key to each tag's key set.
func (i *MemoryIndex) Register(_ context.Context, key string, tags []string) error {
	if key == "" {
		return ErrInvalidKey
	}
	for _, tag := range tags {
		if err := ValidateTag(tag); err != nil {
			return err
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, tag := range tags {
		keys, ok := i.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			i.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Keys returns every key registered under tag, sorted for determinism.
func (i *MemoryIndex) Keys(_ context.Context, tag string) ([]string, error) {
	if err := ValidateTag(tag); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	keys := make([]string, 0, len(i.tags[tag]))
	for key := range i.tags[tag] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ensure MemoryIndex implements Index
var _ Index = (*MemoryIndex)(nil)
