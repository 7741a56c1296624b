// Package httpmw adapts the engine to net/http.
//
// The engine itself is transport neutral; this package supplies the three
// pieces a plain HTTP server needs:
//
//   - RenderFunc turns an http.Handler into the engine's render function by
//     replaying requests against it and capturing the response.
//   - Middleware intercepts incoming requests, serves cached responses and
//     falls through to the wrapped handler for everything the engine does
//     not own.
//   - RevalidateHandler exposes on-demand invalidation over HTTP, protected
//     by a pluggable Guard (API key or JWT bearer token).
//
// Wrap combines the first two for the common case of a single handler:
//
//	handler, err := httpmw.Wrap(isr.Config{
//	    Store:  store.NewMemoryStore(),
//	    Tags:   tagindex.NewMemoryIndex(),
//	    Routes: routes,
//	}, mux)
package httpmw
