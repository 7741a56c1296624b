package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// All recorders must accept calls without panicking.
	ctx := context.Background()
	m.RecordRequest(ctx, "/blog/:slug", "hit")
	m.RecordRequest(ctx, "/blog/:slug", "stale")
	m.RecordRender(ctx, "/blog/:slug", false, 12*time.Millisecond, nil)
	m.RecordRender(ctx, "/blog/:slug", true, 40*time.Millisecond, errors.New("boom"))
	m.RecordInvalidation(ctx, "tag", 3)
}

func TestNopMetrics(t *testing.T) {
	m := NewNopMetrics()
	ctx := context.Background()
	m.RecordRequest(ctx, "/", "miss")
	m.RecordRender(ctx, "/", false, 0, nil)
	m.RecordInvalidation(ctx, "path", 1)
}
