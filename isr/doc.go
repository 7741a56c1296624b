// Package isr implements the incremental static regeneration engine: it
// intercepts requests for configured routes, serves cached renders, serves
// stale renders while regenerating in the background, and exposes
// invalidation by path and by tag.
//
// The engine does not render pages and does not speak HTTP for you: the
// caller supplies a RenderFunc and translates its transport's requests into
// the engine's request shape (package httpmw does this for net/http).
package isr
