// Package prometheus renders gatehouse engine counters in Prometheus text
// exposition format.
//
// [New] accepts a [gatehouse.Engine] and exposes an [Exporter.Handler] that
// callers mount wherever their scrape endpoint lives. Counter names are
// prefixed gatehouse_*_total.
//
// # What this package must NOT do
//
//   - Register anything in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
