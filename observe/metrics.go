package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache decision and regeneration metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Metrics interface {
	// RecordRequest records one intercepted request and its cache status
	// (hit, miss, stale, bypass).
	RecordRequest(ctx context.Context, pattern, status string)

	// RecordRender records a synchronous or background render.
	RecordRender(ctx context.Context, pattern string, background bool, duration time.Duration, err error)

	// RecordInvalidation records keys invalidated by the revalidation API.
	RecordInvalidation(ctx context.Context, trigger string, keys int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	requestCount    metric.Int64Counter
	renderCount     metric.Int64Counter
	renderErrors    metric.Int64Counter
	renderDuration  metric.Float64Histogram
	invalidatedKeys metric.Int64Counter
}

// NewMetrics creates a Metrics instance on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		"isr.requests.total",
		metric.WithDescription("Total number of intercepted requests by cache status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	renderCount, err := meter.Int64Counter(
		"isr.renders.total",
		metric.WithDescription("Total number of renders invoked by the engine"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return nil, err
	}

	renderErrors, err := meter.Int64Counter(
		"isr.renders.errors",
		metric.WithDescription("Total number of failed renders"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	renderDuration, err := meter.Float64Histogram(
		"isr.render.duration_ms",
		metric.WithDescription("Render duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invalidatedKeys, err := meter.Int64Counter(
		"isr.invalidated.keys",
		metric.WithDescription("Cache keys invalidated through the revalidation API"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requestCount:    requestCount,
		renderCount:     renderCount,
		renderErrors:    renderErrors,
		renderDuration:  renderDuration,
		invalidatedKeys: invalidatedKeys,
	}, nil
}

// RecordRequest records one intercepted request.
func (m *metricsImpl) RecordRequest(ctx context.Context, pattern, status string) {
	m.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route.pattern", pattern),
		attribute.String("isr.status", status),
	))
}

// RecordRender records a render invocation.
func (m *metricsImpl) RecordRender(ctx context.Context, pattern string, background bool, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("route.pattern", pattern),
		attribute.Bool("isr.background", background),
	}
	opt := metric.WithAttributes(attrs...)
	m.renderCount.Add(ctx, 1, opt)
	m.renderDuration.Record(ctx, float64(duration.Milliseconds()), opt)
	if err != nil {
		m.renderErrors.Add(ctx, 1, opt)
	}
}

// RecordInvalidation records invalidated keys.
func (m *metricsImpl) RecordInvalidation(ctx context.Context, trigger string, keys int) {
	m.invalidatedKeys.Add(ctx, int64(keys), metric.WithAttributes(
		attribute.String("isr.trigger", trigger),
	))
}

// noopMetrics discards everything.
type noopMetrics struct{}

// NewNopMetrics returns a Metrics that records nothing.
func NewNopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordRequest(context.Context, string, string)                    {}
func (noopMetrics) RecordRender(context.Context, string, bool, time.Duration, error) {}
func (noopMetrics) RecordInvalidation(context.Context, string, int)                  {}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noopMetrics{}
)
