// Package prometheus renders factorgate metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [factorgate.Engine] and exposes an
// [http.Handler] that renders all counters and histograms. Counter names are
// prefixed factorgate_*_total; the single histogram is
// factorgate_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
