// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Pool sizes and trading pause state per (tenant, exchange)
//   - Connection quality alerts by type
//   - Routing decisions, failures and latency
//   - Pool shutdown duration and in-flight accounting
//   - Alert queue depth
//
// Collector implements connection.PoolObserver, routing.Observer and
// alert.Handler so it can be plugged into each component directly.
package metrics
