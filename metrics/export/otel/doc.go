// Package otel binds goSession engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// one Int64ObservableGauge per latency bucket and, for engines, a gauge with
// the number of cached tokens. A single callback reads
// [goSession.Engine.MetricsSnapshot] on each collection cycle. Callers own
// the MeterProvider.
package otel
