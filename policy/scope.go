package policy

import (
	"context"
	"sync"
	"time"
)

// Patch is a partial policy applied to a request scope.
type Patch struct {
	// Revalidate sets the freshness window. Nil means "not specified";
	// a pointer to zero is an explicit cache-disable.
	Revalidate *time.Duration

	// Tags are added to the scope's tag set.
	Tags []string
}

// Revalidate returns a Patch revalidate pointer for d. Convenience for
// call sites: scope.Set(policy.Patch{Revalidate: policy.Revalidate(0)}).
func Revalidate(d time.Duration) *time.Duration {
	return &d
}

type layer struct {
	revalidate *time.Duration
	tags       []string
}

// Scope accumulates per-request policy writes from the embedding
// application. It holds two layers: defaults (fill-if-absent) and overrides
// (always wins). Nothing is merged until Resolve runs, so the relative
// order of Defaults and Set calls never matters.
//
// A Scope is created per request and is safe for concurrent use; nested
// layout and page renders may write to it from separate goroutines.
type Scope struct {
	mu        sync.Mutex
	defaults  layer
	overrides layer
}

// NewScope creates an empty request scope.
func NewScope() *Scope {
	return &Scope{}
}

// Defaults applies p with fill-if-absent semantics: the revalidate value is
// taken only if no earlier Defaults call specified one; tags accumulate.
func (s *Scope) Defaults(p Patch) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaults.revalidate == nil && p.Revalidate != nil {
		d := *p.Revalidate
		s.defaults.revalidate = &d
	}
	s.defaults.tags = append(s.defaults.tags, p.Tags...)
}

// Set applies p with always-wins semantics: the revalidate value replaces
// any earlier one, including an explicit zero; tags accumulate.
func (s *Scope) Set(p Patch) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Revalidate != nil {
		d := *p.Revalidate
		s.overrides.revalidate = &d
	}
	s.overrides.tags = append(s.overrides.tags, p.Tags...)
}

func (s *Scope) snapshot() (defaults, overrides layer) {
	if s == nil {
		return layer{}, layer{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults, s.overrides
}

type scopeContextKey struct{}

// WithScope attaches a request scope to the context so nested render code
// can reach it.
func WithScope(ctx context.Context, s *Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// FromContext returns the request scope attached to ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return s, ok
}
