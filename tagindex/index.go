package tagindex

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for index operations.
var (
	ErrNilIndex   = errors.New("tagindex: index is nil")
	ErrInvalidTag = errors.New("tagindex: tag is invalid")
	ErrInvalidKey = errors.New("tagindex: key is invalid")
)

// Index is the interface for the tag to cache key mapping.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use and must
//   serialize mutations so registrations are atomic with respect to each other.
// - Consistency: Keys must observe every Register that returned before the
//   Keys call started.
// - Errors: registering a key under a tag it already carries is a no-op.
type Index interface {
	// Register adds key to each tag's key set.
	Register(ctx context.Context, key string, tags []string) error

	// Keys returns every key registered under tag. The result may include
	// keys whose entries were since evicted; callers must tolerate that.
	Keys(ctx context.Context, tag string) ([]string, error)
}

// ValidateTag checks if a tag is usable for registration and lookup.
func ValidateTag(tag string) error {
	if tag == "" || strings.TrimSpace(tag) == "" {
		return ErrInvalidTag
	}
	if strings.ContainsAny(tag, "\n\r") {
		return ErrInvalidTag
	}
	return nil
}
