// Package otel publishes gatekeep engine counters through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter. The
// Authenticate latency histogram is published as a cumulative bucket gauge with an
// "le" attribute, next to _count and _sum gauges, matching the Prometheus exporter's
// layout. A single callback reads [gatekeep.Engine.MetricsSnapshot] per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider (callers supply the Meter).
//   - Mutate engine state.
package otel
