// Package observe provides observability primitives for the ISR engine.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// metrics and traces, and exporter setup. The engine works with a noop
// observer when telemetry is disabled.
package observe
