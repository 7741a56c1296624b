package isr

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgekit/isr/observe"
	"github.com/edgekit/isr/store"
)

// RevalidatePath force-expires the cache entry for path so the next request
// is a miss. Idempotent: invalidating an absent entry is a no-op.
//
// Safe to call concurrently with live traffic; an in-flight regeneration
// for the same key loses its conditional write-back and the invalidation
// sticks.
func (e *Engine) RevalidatePath(ctx context.Context, path string) error {
	key := store.Key(path)
	if err := e.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("isr: revalidate path %q: %w", path, err)
	}
	e.metrics.RecordInvalidation(ctx, "path", 1)
	e.log.Info(ctx, "path revalidated",
		observe.String("url.path", path), observe.String("cache.key", key))
	return nil
}

// RevalidateTag force-expires every cache entry registered under tag and
// returns how many keys were invalidated. Keys listed in the index but
// already absent from the store count as invalidated; the index self-heals
// through such dangling references.
func (e *Engine) RevalidateTag(ctx context.Context, tag string) (int, error) {
	keys, err := e.tags.Keys(ctx, tag)
	if err != nil {
		return 0, fmt.Errorf("isr: revalidate tag %q: %w", tag, err)
	}

	invalidated := 0
	var errs []error
	for _, key := range keys {
		if err := e.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("isr: revalidate tag %q: delete %q: %w", tag, key, err))
			continue
		}
		invalidated++
	}

	e.metrics.RecordInvalidation(ctx, "tag", invalidated)
	e.log.Info(ctx, "tag revalidated",
		observe.String("isr.tag", tag), observe.Int("keys", invalidated))
	return invalidated, errors.Join(errs...)
}
