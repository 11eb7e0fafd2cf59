// Package orderbook implements the Order Book Snapshot Provider.
//
// The provider:
//   - Caches one top-of-book summary per (exchange, asset)
//   - Serves cached entries as-is; freshness is owned by whoever populates the cache
//   - Falls back to a generated placeholder when nothing is cached
//   - Polls a Source for tracked pairs with bounded concurrency
package orderbook
