// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [authkit.Engine] and exposes an [http.Handler]
// that writes all counters and histograms on each scrape. Counter names are
// prefixed authkit_*_total; the single histogram is
// authkit_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler where they want it.
//   - Mutate engine state.
package prometheus
