// Package prometheus renders gatekeep engine counters in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts a [gatekeep.Engine] and exposes an [http.Handler].
// Counter names are prefixed gatekeep_*_total; the single histogram is
// gatekeep_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry (callers mount the Handler).
//   - Mutate engine state.
package prometheus
