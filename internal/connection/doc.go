// Package connection implements the Connection Manager.
//
// The Connection Manager:
//   - Keeps one bounded pool of logical connections per (tenant, exchange)
//   - Reuses an existing connection of the requested type before creating one
//   - Records per-connection quality metrics fed back by order submission
//   - Evaluates metrics against quality thresholds, emitting alerts and
//     pausing trading for degraded exchanges
//   - Drains in-flight work and closes every connection on graceful shutdown
//
// Pools are guarded by their own mutex, so unrelated tenants and exchanges
// never contend. Connection records carry their own lock for metrics.
package connection
