// Package store defines the cache entry model and the key/value persistence
// contract for rendered responses, with in-memory and SQLite backends.
//
// Backends may be eventually consistent across locations; the engine relies
// only on per-key conditional writes for coordination.
package store
