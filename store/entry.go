package store

import (
	"net/http"
	"time"
)

// State is the lifecycle state of a cache entry, computed at read time.
type State int

const (
	// StateFresh means the entry is within its revalidate window.
	StateFresh State = iota
	// StateStale means the entry expired and is eligible for regeneration.
	StateStale
	// StateRevalidating means a regeneration for the entry is in flight.
	StateRevalidating
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRevalidating:
		return "revalidating"
	default:
		return "unknown"
	}
}

// Entry is one cached rendered response plus its freshness metadata.
type Entry struct {
	// Key is the cache key the entry is stored under.
	Key string

	// Body is the rendered response body.
	Body []byte

	// Header holds the rendered response headers.
	Header http.Header

	// Status is the rendered response status code.
	Status int

	// CreatedAt is when the entry was rendered and stored.
	CreatedAt time.Time

	// Revalidate is how long the entry stays fresh. Zero never happens in
	// practice: a zero effective revalidate disables caching entirely and
	// no entry is written.
	Revalidate time.Duration

	// Tags are the invalidation tags registered for the entry.
	Tags []string

	// Revision is a per-key monotonic counter maintained by the store.
	// Conditional writes are keyed on it.
	Revision uint64

	// RevalidatingAt is the regeneration lock stamp. Zero means unlocked.
	RevalidatingAt time.Time
}

// StateAt computes the entry state at the given time. lockTTL bounds how
// long a regeneration lock is honored; a lock older than lockTTL is treated
// as abandoned and the entry reports Stale again.
func (e *Entry) StateAt(now time.Time, lockTTL time.Duration) State {
	if now.Sub(e.CreatedAt) < e.Revalidate {
		return StateFresh
	}
	if !e.RevalidatingAt.IsZero() && now.Sub(e.RevalidatingAt) < lockTTL {
		return StateRevalidating
	}
	return StateStale
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Body = append([]byte(nil), e.Body...)
	if e.Header != nil {
		c.Header = e.Header.Clone()
	}
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}
