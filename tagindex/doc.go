// Package tagindex maps invalidation tags to the cache keys carrying them.
//
// Unlike the response store, the index must offer read-after-write
// consistency: a key registered for a tag is visible to the next Keys call.
// Both backends serialize mutations. Readers must tolerate dangling keys;
// a key listed here but absent from the store counts as already invalidated.
package tagindex
