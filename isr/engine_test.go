package isr

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgekit/isr/policy"
	"github.com/edgekit/isr/store"
	"github.com/edgekit/isr/tagindex"
)

// fakeClock is a controllable time source shared by engine and coordinator.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// syncScheduler runs tasks inline so tests observe regeneration outcomes
// deterministically.
type syncScheduler struct{}

func (syncScheduler) Schedule(task func(ctx context.Context)) {
	task(context.Background())
}

// manualScheduler captures tasks for explicit execution.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context)
}

func (s *manualScheduler) Schedule(task func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *manualScheduler) runAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// mockRenderer counts render calls and returns configured results.
type mockRenderer struct {
	calls  atomic.Int32
	body   string
	err    error
	inside func(ctx context.Context, req *Request)
}

func (m *mockRenderer) render(ctx context.Context, req *Request) (*Response, error) {
	m.calls.Add(1)
	if m.inside != nil {
		m.inside(ctx, req)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &Response{
		Status: 200,
		Header: http.Header{"Content-Type": {"text/html"}},
		Body:   []byte(m.body),
	}, nil
}

// probeStore counts store accesses and can inject failures.
type probeStore struct {
	store.Store
	gets    atomic.Int32
	sets    atomic.Int32
	failGet error
	failSet error
}

func (p *probeStore) Get(ctx context.Context, key string) (*store.Entry, bool, error) {
	p.gets.Add(1)
	if p.failGet != nil {
		return nil, false, p.failGet
	}
	return p.Store.Get(ctx, key)
}

func (p *probeStore) Set(ctx context.Context, key string, e *store.Entry) error {
	p.sets.Add(1)
	if p.failSet != nil {
		return p.failSet
	}
	return p.Store.Set(ctx, key, e)
}

type testEngine struct {
	engine   *Engine
	store    *probeStore
	index    *tagindex.MemoryIndex
	renderer *mockRenderer
	clock    *fakeClock
	sched    Scheduler
}

func defaultRoutes() map[string]policy.Route {
	return map[string]policy.Route{
		"/blog/:slug": {Revalidate: time.Minute, Tags: []string{"blog"}},
		"/about":      {Revalidate: time.Hour},
		"/live":       {Revalidate: 0},
	}
}

func newTestEngine(t *testing.T, routes map[string]policy.Route, sched Scheduler) *testEngine {
	t.Helper()
	te := &testEngine{
		store:    &probeStore{Store: store.NewMemoryStore()},
		index:    tagindex.NewMemoryIndex(),
		renderer: &mockRenderer{body: "rendered"},
		clock:    newFakeClock(),
		sched:    sched,
	}
	engine, err := New(Config{
		Store:     te.store,
		Tags:      te.index,
		Routes:    routes,
		Render:    te.renderer.render,
		Scheduler: sched,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	engine.now = te.clock.Now
	engine.coord.now = te.clock.Now
	te.engine = engine
	return te
}

func getRequest(path string) *Request {
	return &Request{Method: http.MethodGet, Path: path, Header: http.Header{}}
}

func TestNew_Validation(t *testing.T) {
	st := store.NewMemoryStore()
	idx := tagindex.NewMemoryIndex()
	render := (&mockRenderer{}).render
	routes := defaultRoutes()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"nil store", Config{Tags: idx, Routes: routes, Render: render}, ErrNilStore},
		{"nil index", Config{Store: st, Routes: routes, Render: render}, ErrNilTagIndex},
		{"nil render", Config{Store: st, Tags: idx, Routes: routes}, ErrNilRender},
		{"no routes", Config{Store: st, Tags: idx, Render: render}, ErrNoRoutes},
		{
			"negative revalidate",
			Config{Store: st, Tags: idx, Render: render,
				Routes: map[string]policy.Route{"/x": {Revalidate: -time.Second}}},
			policy.ErrNegativeRevalidate,
		},
		{
			"malformed pattern",
			Config{Store: st, Tags: idx, Render: render,
				Routes: map[string]policy.Route{"bad": {Revalidate: time.Minute}}},
			policy.ErrPatternSlash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandle_FallThrough(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  *Request
	}{
		{"post method", &Request{Method: http.MethodPost, Path: "/blog/a", Header: http.Header{}}},
		{"put method", &Request{Method: http.MethodPut, Path: "/blog/a", Header: http.Header{}}},
		{"delete method", &Request{Method: http.MethodDelete, Path: "/blog/a", Header: http.Header{}}},
		{"unmatched path", getRequest("/admin")},
		{"nil request", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := te.engine.Handle(ctx, tt.req)
			if err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if resp != nil {
				t.Errorf("expected fallthrough, got response %+v", resp)
			}
		})
	}
	if n := te.renderer.calls.Load(); n != 0 {
		t.Errorf("renderer invoked %d times on fallthrough", n)
	}
}

func TestHandle_RenderPassFallsThroughWithoutStoreAccess(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})

	req := MarkInternal(getRequest("/blog/hello"))
	resp, err := te.engine.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if resp != nil {
		t.Error("render pass must fall through")
	}
	if n := te.store.gets.Load(); n != 0 {
		t.Errorf("store accessed %d times for a render pass", n)
	}
	if n := te.renderer.calls.Load(); n != 0 {
		t.Errorf("renderer invoked %d times for a render pass", n)
	}
}

func TestHandle_MissRendersStoresAndReturns(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	resp, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if resp == nil {
		t.Fatal("expected interception, got fallthrough")
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusMiss {
		t.Errorf("status header = %q, want MISS", got)
	}
	if string(resp.Body) != "rendered" {
		t.Errorf("body = %q, want rendered", resp.Body)
	}
	if n := te.renderer.calls.Load(); n != 1 {
		t.Errorf("renderer invoked %d times, want 1", n)
	}

	// Result persisted before the response was returned.
	entry, ok, err := te.store.Get(ctx, store.Key("/blog/hello"))
	if err != nil || !ok {
		t.Fatalf("entry not persisted: ok=%v err=%v", ok, err)
	}
	if string(entry.Body) != "rendered" {
		t.Errorf("stored body = %q", entry.Body)
	}
	if entry.Revalidate != time.Minute {
		t.Errorf("stored revalidate = %v, want 1m", entry.Revalidate)
	}

	// Tags registered alongside the write.
	keys, err := te.index.Keys(ctx, "blog")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != store.Key("/blog/hello") {
		t.Errorf("index keys = %v", keys)
	}
}

func TestHandle_FreshHitSkipsRenderer(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	if _, err := te.engine.Handle(ctx, getRequest("/blog/hello")); err != nil {
		t.Fatalf("miss failed: %v", err)
	}
	te.clock.Advance(59 * time.Second)

	resp, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("hit failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusHit {
		t.Errorf("status header = %q, want HIT", got)
	}
	if n := te.renderer.calls.Load(); n != 1 {
		t.Errorf("renderer invoked %d times, want 1", n)
	}
	if string(resp.Body) != "rendered" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestHandle_RoundTripPreservesResponse(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	miss, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("miss failed: %v", err)
	}
	hit, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("hit failed: %v", err)
	}

	if string(hit.Body) != string(miss.Body) {
		t.Errorf("body changed across round trip: %q vs %q", hit.Body, miss.Body)
	}
	if hit.Status != miss.Status {
		t.Errorf("status changed across round trip: %d vs %d", hit.Status, miss.Status)
	}
	if hit.Header.Get("Content-Type") != "text/html" {
		t.Errorf("content type lost: %v", hit.Header)
	}
}

func TestHandle_StaleServesOldBodyAndRegenerates(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	if _, err := te.engine.Handle(ctx, getRequest("/blog/hello")); err != nil {
		t.Fatalf("miss failed: %v", err)
	}
	te.renderer.body = "regenerated"
	te.clock.Advance(2 * time.Minute)

	resp, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("stale failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusStale {
		t.Errorf("status header = %q, want STALE", got)
	}
	// The stale body is served, not the regenerated one.
	if string(resp.Body) != "rendered" {
		t.Errorf("stale body = %q, want prior render", resp.Body)
	}

	// The inline scheduler already ran the regeneration.
	entry, ok, _ := te.store.Get(ctx, store.Key("/blog/hello"))
	if !ok {
		t.Fatal("entry missing after regeneration")
	}
	if string(entry.Body) != "regenerated" {
		t.Errorf("entry body = %q, want regenerated", entry.Body)
	}

	// Next request is a fresh hit on the new body.
	resp, err = te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("post-regen hit failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusHit {
		t.Errorf("status header = %q, want HIT", got)
	}
	if string(resp.Body) != "regenerated" {
		t.Errorf("body = %q, want regenerated", resp.Body)
	}
}

func TestHandle_ZeroRevalidateDisablesCaching(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		resp, err := te.engine.Handle(ctx, getRequest("/live"))
		if err != nil {
			t.Fatalf("Handle #%d failed: %v", i, err)
		}
		if got := resp.Header.Get(HeaderStatus); got != StatusMiss {
			t.Errorf("status header = %q, want MISS", got)
		}
		if n := te.renderer.calls.Load(); n != int32(i) {
			t.Errorf("renderer invoked %d times after %d requests", n, i)
		}
	}
	if n := te.store.gets.Load(); n != 0 {
		t.Errorf("store read %d times for a disabled route", n)
	}
	if n := te.store.sets.Load(); n != 0 {
		t.Errorf("store written %d times for a disabled route", n)
	}
}

func TestHandle_RenderErrorPropagatesOnMiss(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	te.renderer.err = errors.New("template exploded")

	resp, err := te.engine.Handle(context.Background(), getRequest("/blog/hello"))
	if err == nil {
		t.Fatal("expected render error")
	}
	if resp != nil {
		t.Errorf("expected nil response on render error, got %+v", resp)
	}
	if !errors.Is(err, te.renderer.err) {
		t.Errorf("error %v does not wrap render error", err)
	}
}

func TestHandle_StoreReadFailureDegradesToMiss(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	te.store.failGet = errors.New("store down")

	resp, err := te.engine.Handle(context.Background(), getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusMiss {
		t.Errorf("status header = %q, want MISS", got)
	}
	if string(resp.Body) != "rendered" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestHandle_StoreWriteFailureStillServes(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	te.store.failSet = errors.New("store down")

	resp, err := te.engine.Handle(context.Background(), getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusMiss {
		t.Errorf("status header = %q, want MISS", got)
	}
}

func TestHandle_HeadIsInterceptable(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})

	req := &Request{Method: http.MethodHead, Path: "/about", Header: http.Header{}}
	resp, err := te.engine.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if resp == nil {
		t.Fatal("HEAD must be interceptable")
	}
}

func TestHandle_ScopeOverridesApplyAtFinalization(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	te.renderer.inside = func(ctx context.Context, _ *Request) {
		scope, ok := policy.FromContext(ctx)
		if !ok {
			t.Error("render context carries no scope")
			return
		}
		scope.Defaults(policy.Patch{Revalidate: policy.Revalidate(300 * time.Second), Tags: []string{"nested"}})
		scope.Set(policy.Patch{Revalidate: policy.Revalidate(30 * time.Second), Tags: []string{"override"}})
	}

	if _, err := te.engine.Handle(ctx, getRequest("/blog/hello")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	entry, ok, _ := te.store.Get(ctx, store.Key("/blog/hello"))
	if !ok {
		t.Fatal("entry not stored")
	}
	if entry.Revalidate != 30*time.Second {
		t.Errorf("revalidate = %v, want override 30s", entry.Revalidate)
	}
	want := map[string]bool{"blog": true, "nested": true, "override": true}
	if len(entry.Tags) != len(want) {
		t.Fatalf("tags = %v, want union of route/defaults/overrides", entry.Tags)
	}
	for _, tag := range entry.Tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestHandle_ScopeZeroOverrideSkipsWrite(t *testing.T) {
	te := newTestEngine(t, defaultRoutes(), syncScheduler{})
	ctx := context.Background()

	te.renderer.inside = func(ctx context.Context, _ *Request) {
		scope, _ := policy.FromContext(ctx)
		scope.Set(policy.Patch{Revalidate: policy.Revalidate(0)})
	}

	resp, err := te.engine.Handle(ctx, getRequest("/blog/hello"))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got := resp.Header.Get(HeaderStatus); got != StatusMiss {
		t.Errorf("status header = %q, want MISS", got)
	}
	if _, ok, _ := te.store.Get(ctx, store.Key("/blog/hello")); ok {
		t.Error("entry stored despite explicit cache disable")
	}
}
