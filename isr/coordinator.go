package isr

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/edgekit/isr/observe"
	"github.com/edgekit/isr/policy"
	"github.com/edgekit/isr/store"
	"github.com/edgekit/isr/tagindex"
)

// coordinator guarantees at most one concurrent regeneration per cache key.
//
// Cross-instance exclusion comes from the store's conditional write: the
// stale entry is moved to Revalidating with a compare-and-swap on its
// revision, and only the request that wins the swap schedules work. The
// singleflight group additionally collapses racing schedules inside one
// process.
type coordinator struct {
	store   store.Store
	tags    tagindex.Index
	render  RenderFunc
	sched   Scheduler
	log     observe.Logger
	metrics observe.Metrics
	tracer  trace.Tracer
	group   singleflight.Group

	now func() time.Time
}

// revalidate attempts the Stale to Revalidating transition for key and, on
// winning it, schedules the regeneration task. Losers return immediately;
// the caller serves the stale copy either way.
func (c *coordinator) revalidate(ctx context.Context, route policy.Route, key string, seen *store.Entry, req *Request) {
	locked := seen.Clone()
	locked.RevalidatingAt = c.now()

	swapped, err := c.store.CompareAndSwap(ctx, key, seen.Revision, locked)
	if err != nil {
		c.log.Warn(ctx, "regeneration lock write failed",
			observe.String("cache.key", key), observe.Err(err))
		return
	}
	if !swapped {
		// A concurrent request won the transition or the entry changed.
		return
	}

	lockedRevision := seen.Revision + 1
	renderReq := MarkInternal(req)
	c.sched.Schedule(func(taskCtx context.Context) {
		// Collapse duplicate schedules for the same key in this process.
		_, _, _ = c.group.Do(key, func() (any, error) {
			c.regenerate(taskCtx, route, key, lockedRevision, renderReq)
			return nil, nil
		})
	})
}

// regenerate renders the request again and swaps the result in. It runs
// after the triggering response was already sent; every failure path is
// logged and swallowed, and the prior entry stays readable throughout.
func (c *coordinator) regenerate(ctx context.Context, route policy.Route, key string, lockedRevision uint64, req *Request) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error(ctx, "panic during background regeneration",
				observe.String("cache.key", key),
				observe.Field{Key: "panic", Value: p})
		}
	}()

	ctx, span := c.tracer.Start(ctx, "isr.regenerate",
		trace.WithAttributes(
			attribute.String("route.pattern", route.Pattern),
			attribute.String("cache.key", key),
		))
	defer span.End()

	scope := policy.NewScope()
	renderCtx := policy.WithScope(ctx, scope)

	start := c.now()
	resp, err := c.render(renderCtx, req)
	c.metrics.RecordRender(ctx, route.Pattern, true, c.now().Sub(start), err)
	if err != nil {
		c.log.Warn(ctx, "background render failed, keeping stale entry",
			observe.String("cache.key", key), observe.Err(err))
		c.unlock(ctx, key, lockedRevision)
		return
	}

	eff := policy.Resolve(route, scope)
	if eff.Revalidate == 0 {
		// The render disabled caching; drop the entry so the next request
		// renders fresh.
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn(ctx, "cache delete failed",
				observe.String("cache.key", key), observe.Err(err))
		}
		return
	}

	fresh := entryFromResponse(key, resp, eff, c.now())
	swapped, err := c.store.CompareAndSwap(ctx, key, lockedRevision, fresh)
	if err != nil {
		c.log.Warn(ctx, "regeneration write failed, keeping stale entry",
			observe.String("cache.key", key), observe.Err(err))
		return
	}
	if !swapped {
		// The entry was invalidated or replaced while we rendered; the
		// newer state wins.
		c.log.Debug(ctx, "entry changed during regeneration, discarding result",
			observe.String("cache.key", key))
		return
	}
	if len(eff.Tags) > 0 {
		if err := c.tags.Register(ctx, key, eff.Tags); err != nil {
			c.log.Warn(ctx, "tag registration failed",
				observe.String("cache.key", key), observe.Err(err))
		}
	}
}

// unlock restores a failed regeneration's entry to plain Stale so the next
// request can re-acquire immediately instead of waiting out the lock TTL.
// Best-effort: if it loses the race the lock TTL still unblocks the key.
func (c *coordinator) unlock(ctx context.Context, key string, lockedRevision uint64) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return
	}
	if entry.Revision != lockedRevision {
		return
	}
	entry.RevalidatingAt = time.Time{}
	_, _ = c.store.CompareAndSwap(ctx, key, lockedRevision, entry)
}
