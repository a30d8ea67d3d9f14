// Package otel bridges gatehouse engine counters into OpenTelemetry.
//
// [New] registers an Int64ObservableCounter per engine metric on a
// caller-supplied Meter. A single callback reads
// [gatehouse.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter and control export.
//   - Mutate engine state.
package otel
