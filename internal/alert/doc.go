// Package alert carries connection-quality notifications from the
// connection manager to any number of subscribers.
//
// Emitting never blocks the caller: alerts are queued on an unbounded
// growable queue and delivered by a single dispatcher goroutine, in
// subscription order. Sinks for slog, Redis pub/sub and Kafka are provided.
package alert
