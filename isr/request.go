package isr

import (
	"context"
	"net/http"
)

// Diagnostic and control headers.
const (
	// HeaderStatus reports the cache decision on every engine response.
	HeaderStatus = "X-ISR-Status"

	// HeaderRenderPass marks internally issued render requests. The engine
	// checks it before anything else and falls through, so a render that
	// loops back through the interceptor can never recurse.
	HeaderRenderPass = "X-ISR-Render-Pass"
)

// Cache decision values carried in HeaderStatus.
const (
	StatusHit   = "HIT"
	StatusMiss  = "MISS"
	StatusStale = "STALE"
)

// Request is the transport-neutral request shape the engine consumes.
type Request struct {
	// Method is the HTTP method. Only GET and HEAD are interceptable.
	Method string

	// Path is the request path. Cache keys derive from it alone.
	Path string

	// Header carries the request headers, including the render-pass marker
	// on internally issued requests.
	Header http.Header
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	return &c
}

// MarkInternal returns a copy of r carrying the render-pass marker.
func MarkInternal(r *Request) *Request {
	c := r.Clone()
	if c == nil {
		return nil
	}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Header.Set(HeaderRenderPass, "1")
	return c
}

// IsInternal reports whether r carries the render-pass marker.
func IsInternal(r *Request) bool {
	return r != nil && r.Header.Get(HeaderRenderPass) != ""
}

// Response is the transport-neutral response shape the engine produces.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// Header carries the response headers.
	Header http.Header

	// Body is the rendered body.
	Body []byte
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Body = append([]byte(nil), r.Body...)
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	return &c
}

// RenderFunc produces a full response for a request. It is the only place
// actual page generation happens; the engine never renders anything itself.
//
// The context carries the request's policy scope: render code may call
// policy.FromContext and write defaults/overrides, which the engine resolves
// once the render returns.
type RenderFunc func(ctx context.Context, req *Request) (*Response, error)
