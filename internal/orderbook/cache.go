package orderbook

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/venue-gateway/internal/model"
)

// Source fetches live order book summaries.
type Source interface {
	FetchOrderBook(ctx context.Context, exchangeID, assetID string) (model.OrderBookSummary, error)
}

// SourceFunc is a function adapter for Source.
type SourceFunc func(ctx context.Context, exchangeID, assetID string) (model.OrderBookSummary, error)

func (f SourceFunc) FetchOrderBook(ctx context.Context, exchangeID, assetID string) (model.OrderBookSummary, error) {
	return f(ctx, exchangeID, assetID)
}

// PlaceholderConfig controls summaries generated for uncached pairs.
type PlaceholderConfig struct {
	ReferencePrice  float64            // Used when an asset has no entry in ReferencePrices
	ReferencePrices map[string]float64 // asset id -> reference price
	Depth           float64            // Both sides
}

// DefaultPlaceholderConfig returns sensible defaults.
func DefaultPlaceholderConfig() PlaceholderConfig {
	return PlaceholderConfig{
		ReferencePrice: 50000,
		Depth:          10,
	}
}

// Key identifies a cached summary.
type Key struct {
	ExchangeID string
	AssetID    string
}

func (k Key) String() string { return k.ExchangeID + ":" + k.AssetID }

// Cache holds the latest summary per (exchange, asset). Safe for concurrent use.
type Cache struct {
	placeholder PlaceholderConfig
	now         func() time.Time

	mu      sync.RWMutex
	entries map[Key]model.OrderBookSummary

	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache(placeholder PlaceholderConfig) *Cache {
	return &Cache{
		placeholder: placeholder,
		now:         time.Now,
		entries:     make(map[Key]model.OrderBookSummary),
	}
}

// Put stores s, deriving spread fields that were left at zero.
func (c *Cache) Put(s model.OrderBookSummary) {
	s = s.WithDerivedSpread()
	if s.Timestamp.IsZero() {
		s.Timestamp = c.now().UTC()
	}

	c.mu.Lock()
	c.entries[Key{s.ExchangeID, s.AssetID}] = s
	c.mu.Unlock()
}

// Get returns the cached summary, if any.
func (c *Cache) Get(exchangeID, assetID string) (model.OrderBookSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[Key{exchangeID, assetID}]
	return s, ok
}

// Snapshot returns the cached summary or a placeholder. Placeholders are
// not stored.
func (c *Cache) Snapshot(exchangeID, assetID string) model.OrderBookSummary {
	if s, ok := c.Get(exchangeID, assetID); ok {
		return s
	}
	return c.Placeholder(exchangeID, assetID)
}

// Placeholder builds a synthetic summary around the asset's reference price.
func (c *Cache) Placeholder(exchangeID, assetID string) model.OrderBookSummary {
	ref := c.placeholder.ReferencePrice
	if p, ok := c.placeholder.ReferencePrices[assetID]; ok {
		ref = p
	}

	s := model.OrderBookSummary{
		ExchangeID:  exchangeID,
		AssetID:     assetID,
		BestBid:     ref * 0.9995,
		BestAsk:     ref * 1.0005,
		BidDepth:    c.placeholder.Depth,
		AskDepth:    c.placeholder.Depth,
		Timestamp:   c.now().UTC(),
		Placeholder: true,
	}
	return s.WithDerivedSpread()
}

// Refresh fetches the pair from src and stores it. Concurrent refreshes of
// the same pair share one fetch.
func (c *Cache) Refresh(ctx context.Context, src Source, exchangeID, assetID string) (model.OrderBookSummary, error) {
	key := Key{exchangeID, assetID}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		s, err := src.FetchOrderBook(ctx, exchangeID, assetID)
		if err != nil {
			return model.OrderBookSummary{}, err
		}
		s.ExchangeID = exchangeID
		s.AssetID = assetID
		c.Put(s)
		stored, _ := c.Get(exchangeID, assetID)
		return stored, nil
	})
	if err != nil {
		return model.OrderBookSummary{}, fmt.Errorf("refresh %s: %w", key, err)
	}
	return v.(model.OrderBookSummary), nil
}

// Delete drops a cached entry.
func (c *Cache) Delete(exchangeID, assetID string) {
	c.mu.Lock()
	delete(c.entries, Key{exchangeID, assetID})
	c.mu.Unlock()
}

// Keys returns every cached key in sorted order.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
