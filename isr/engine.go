package isr

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/edgekit/isr/observe"
	"github.com/edgekit/isr/policy"
	"github.com/edgekit/isr/store"
	"github.com/edgekit/isr/tagindex"
)

// DefaultLockTTL bounds how long a regeneration lock is honored before the
// entry becomes eligible for re-acquisition. It protects against background
// tasks killed mid-flight by the host's CPU/time budget.
const DefaultLockTTL = 30 * time.Second

// Config configures the engine.
type Config struct {
	// Store persists rendered responses. Required.
	Store store.Store

	// Tags is the tag to cache key index. Required.
	Tags tagindex.Index

	// Routes maps route patterns to their caching policies. Required,
	// must be non-empty. See policy.Route for the pattern syntax.
	Routes map[string]policy.Route

	// Render produces a response for a request. Required.
	Render RenderFunc

	// Scheduler submits background regeneration tasks. Optional;
	// defaults to GoScheduler.
	Scheduler Scheduler

	// Observer supplies logging, metrics and tracing. Optional;
	// defaults to a noop observer.
	Observer observe.Observer

	// LockTTL bounds regeneration locks. Optional; defaults to
	// DefaultLockTTL.
	LockTTL time.Duration
}

// Engine is the request-interception and cache-regeneration engine.
//
// Construction is explicit and idempotent: hosts create one Engine per cold
// start and pass it into the request path. All durable state lives in the
// external store and index, so concurrently cold-starting instances cannot
// conflict.
type Engine struct {
	store   store.Store
	tags    tagindex.Index
	matcher *policy.Matcher
	render  RenderFunc
	coord   *coordinator
	log     observe.Logger
	metrics observe.Metrics
	tracer  trace.Tracer
	lockTTL time.Duration

	now func() time.Time
}

// New validates the configuration and creates an engine. Configuration
// problems (malformed pattern, negative revalidate, missing collaborators)
// are fatal here, never at request time.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Tags == nil {
		return nil, ErrNilTagIndex
	}
	if cfg.Render == nil {
		return nil, ErrNilRender
	}
	if len(cfg.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	matcher, err := policy.NewMatcher(cfg.Routes)
	if err != nil {
		return nil, err
	}

	obs := cfg.Observer
	if obs == nil {
		obs = observe.NewNoop()
	}
	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("isr: create metrics: %w", err)
	}

	sched := cfg.Scheduler
	if sched == nil {
		sched = GoScheduler{}
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	e := &Engine{
		store:   cfg.Store,
		tags:    cfg.Tags,
		matcher: matcher,
		render:  cfg.Render,
		log:     obs.Logger(),
		metrics: metrics,
		tracer:  obs.Tracer(),
		lockTTL: lockTTL,
		now:     time.Now,
	}
	e.coord = &coordinator{
		store:   cfg.Store,
		tags:    cfg.Tags,
		render:  cfg.Render,
		sched:   sched,
		log:     obs.Logger(),
		metrics: metrics,
		tracer:  obs.Tracer(),
		now:     time.Now,
	}
	return e, nil
}

// Handle drives the hit/stale/miss decision for one request.
//
// It returns (nil, nil) when the request is not for the engine: the method
// is not GET or HEAD, no route matches, or the request is an internally
// issued render pass. The caller then falls through to its own handling.
// A non-nil error is only returned for a failed synchronous render; the
// caller owns the error response.
func (e *Engine) Handle(ctx context.Context, req *Request) (*Response, error) {
	// The render-pass check runs before anything else, including route
	// matching and any store access.
	if req == nil || IsInternal(req) {
		return nil, nil
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, nil
	}
	route, ok := e.matcher.Match(req.Path)
	if !ok {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "isr.handle",
		trace.WithAttributes(
			attribute.String("route.pattern", route.Pattern),
			attribute.String("url.path", req.Path),
		))
	defer span.End()

	key := store.Key(req.Path)

	// A zero route revalidate disables reads; the scope may still enable a
	// write after the render resolves.
	if route.Revalidate > 0 {
		entry, found, err := e.store.Get(ctx, key)
		if err != nil {
			// Storage trouble degrades to a fresh render.
			e.log.Warn(ctx, "cache read failed, treating as miss",
				observe.String("cache.key", key), observe.Err(err))
		} else if found {
			switch entry.StateAt(e.now(), e.lockTTL) {
			case store.StateFresh:
				e.metrics.RecordRequest(ctx, route.Pattern, "hit")
				span.SetAttributes(attribute.String("isr.status", StatusHit))
				return serveEntry(entry, StatusHit), nil
			case store.StateRevalidating:
				// Another request holds the regeneration lock; serve the
				// stale copy without scheduling anything.
				e.metrics.RecordRequest(ctx, route.Pattern, "stale")
				span.SetAttributes(attribute.String("isr.status", StatusStale))
				return serveEntry(entry, StatusStale), nil
			case store.StateStale:
				e.metrics.RecordRequest(ctx, route.Pattern, "stale")
				span.SetAttributes(attribute.String("isr.status", StatusStale))
				e.coord.revalidate(ctx, route, key, entry, req)
				return serveEntry(entry, StatusStale), nil
			}
		}
	}

	e.metrics.RecordRequest(ctx, route.Pattern, "miss")
	span.SetAttributes(attribute.String("isr.status", StatusMiss))
	return e.renderMiss(ctx, route, key, req)
}

// renderMiss renders synchronously, persists the result when the resolved
// policy allows caching, and returns the fresh response.
func (e *Engine) renderMiss(ctx context.Context, route policy.Route, key string, req *Request) (*Response, error) {
	scope := policy.NewScope()
	renderCtx := policy.WithScope(ctx, scope)

	start := e.now()
	resp, err := e.render(renderCtx, MarkInternal(req))
	e.metrics.RecordRender(ctx, route.Pattern, false, e.now().Sub(start), err)
	if err != nil {
		return nil, fmt.Errorf("isr: render %s: %w", req.Path, err)
	}

	// Resolution happens exactly once, after the render finished writing
	// its defaults and overrides.
	eff := policy.Resolve(route, scope)
	if eff.Revalidate > 0 {
		entry := entryFromResponse(key, resp, eff, e.now())
		if err := e.store.Set(ctx, key, entry); err != nil {
			e.log.Warn(ctx, "cache write failed",
				observe.String("cache.key", key), observe.Err(err))
		} else if len(eff.Tags) > 0 {
			if err := e.tags.Register(ctx, key, eff.Tags); err != nil {
				e.log.Warn(ctx, "tag registration failed",
					observe.String("cache.key", key), observe.Err(err))
			}
		}
	}

	out := resp.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	out.Header.Set(HeaderStatus, StatusMiss)
	return out, nil
}

// serveEntry converts a stored entry into a response carrying the given
// diagnostic status. The stored entry is never aliased.
func serveEntry(entry *store.Entry, status string) *Response {
	resp := &Response{
		Status: entry.Status,
		Header: entry.Header.Clone(),
		Body:   append([]byte(nil), entry.Body...),
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(HeaderStatus, status)
	return resp
}

// entryFromResponse builds the cache entry for a rendered response.
func entryFromResponse(key string, resp *Response, eff policy.Effective, now time.Time) *store.Entry {
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}
	return &store.Entry{
		Key:        key,
		Body:       append([]byte(nil), resp.Body...),
		Header:     header.Clone(),
		Status:     resp.Status,
		CreatedAt:  now,
		Revalidate: eff.Revalidate,
		Tags:       eff.Tags,
	}
}
