// Package otel binds keynotify client metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per client counter and
// a set of gauges per histogram bucket. A single callback reads
// [keynotify.Client.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
