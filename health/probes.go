package health

import (
	"bytes"
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/edgekit/isr/store"
	"github.com/edgekit/isr/tagindex"
)

// Probe fixtures. The key lives under a reserved path no route can match,
// and probes are idempotent so repeated checks do not accumulate state.
var (
	probeKey  = store.Key("/.well-known/isr-health")
	probeBody = []byte("probe")
	probeTag  = "isr-health"
)

// StoreChecker verifies the cache store with a set/get/delete round trip.
// A store that fails reads degrades the engine to rendering every request;
// a store that fails writes additionally breaks regeneration, so any error
// here reports unhealthy.
type StoreChecker struct {
	store store.Store
}

var _ Checker = (*StoreChecker)(nil)

// NewStoreChecker creates a checker probing s.
func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) Result {
	entry := &store.Entry{
		Key:        probeKey,
		Body:       probeBody,
		Status:     http.StatusOK,
		CreatedAt:  time.Now(),
		Revalidate: time.Minute,
	}
	if err := c.store.Set(ctx, probeKey, entry); err != nil {
		return Unhealthy("store write failed", err)
	}
	got, found, err := c.store.Get(ctx, probeKey)
	if err != nil {
		return Unhealthy("store read failed", err)
	}
	if !found || !bytes.Equal(got.Body, probeBody) {
		return Degraded("store round trip lost the probe entry", nil)
	}
	if err := c.store.Delete(ctx, probeKey); err != nil {
		return Degraded("store delete failed", err)
	}
	return Healthy("store round trip ok")
}

// IndexChecker verifies the tag index with a register/lookup round trip.
// The index is only consulted for tag invalidation, so failures report
// degraded rather than unhealthy: cached pages still serve, but content
// updates cannot propagate.
type IndexChecker struct {
	index tagindex.Index
}

var _ Checker = (*IndexChecker)(nil)

// NewIndexChecker creates a checker probing idx.
func NewIndexChecker(idx tagindex.Index) *IndexChecker {
	return &IndexChecker{index: idx}
}

func (c *IndexChecker) Name() string { return "tagindex" }

func (c *IndexChecker) Check(ctx context.Context) Result {
	if err := c.index.Register(ctx, probeKey, []string{probeTag}); err != nil {
		return Degraded("index write failed", err)
	}
	keys, err := c.index.Keys(ctx, probeTag)
	if err != nil {
		return Degraded("index read failed", err)
	}
	if !slices.Contains(keys, probeKey) {
		return Degraded("index round trip lost the probe key", nil)
	}
	return Healthy("index round trip ok")
}
