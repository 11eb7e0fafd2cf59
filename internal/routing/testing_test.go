package routing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/venue-gateway/internal/exchange"
	"github.com/rickgao/venue-gateway/internal/model"
	"github.com/rickgao/venue-gateway/internal/orderbook"
)

// listRegistry returns its exchanges as-is, whatever their status.
type listRegistry []model.ExchangeConfig

func (l listRegistry) AvailableExchanges(context.Context, string) ([]model.ExchangeConfig, error) {
	return l, nil
}

func (l listRegistry) IsExchangeAvailable(_ context.Context, _, id string) (bool, error) {
	for _, e := range l {
		if e.ExchangeID == id {
			return e.IsActive(), nil
		}
	}
	return false, nil
}

func (l listRegistry) Exchange(_ context.Context, tenantID, id string) (model.ExchangeConfig, error) {
	for _, e := range l {
		if e.ExchangeID == id {
			return e, nil
		}
	}
	return model.ExchangeConfig{}, fmt.Errorf("%s/%s: %w", tenantID, id, exchange.ErrExchangeNotFound)
}

func venue(id string, priority int, assets ...string) model.ExchangeConfig {
	return model.ExchangeConfig{
		ExchangeID: id,
		Name:       id,
		Priority:   priority,
		Status:     model.ExchangeActive,
		SupportedFeatures: model.SupportedFeatures{
			SupportedAssets: assets,
			MinOrderSize:    0.001,
			LotSize:         0.001,
			MakerFeeRate:    0.1,
			TakerFeeRate:    0.2,
		},
	}
}

func book(exchangeID string, bid, ask, bidDepth, askDepth float64) model.OrderBookSummary {
	return model.OrderBookSummary{
		ExchangeID: exchangeID,
		AssetID:    "BTC",
		BestBid:    bid,
		BestAsk:    ask,
		BidDepth:   bidDepth,
		AskDepth:   askDepth,
	}
}

type observerRecorder struct {
	mu        sync.Mutex
	succeeded []string
	failed    []string
}

func (o *observerRecorder) RouteSucceeded(d *RoutingDecision, _ time.Duration) {
	o.mu.Lock()
	o.succeeded = append(o.succeeded, d.SelectedExchange)
	o.mu.Unlock()
}

func (o *observerRecorder) RouteFailed(reason string, _ time.Duration) {
	o.mu.Lock()
	o.failed = append(o.failed, reason)
	o.mu.Unlock()
}

type fixture struct {
	router    Router
	decisions *MemoryDecisionStore
	configs   *MemoryConfigStore
	books     *orderbook.Cache
	observer  *observerRecorder
}

func newFixture(t *testing.T, registry exchange.Registry, books ...model.OrderBookSummary) *fixture {
	t.Helper()

	cache := orderbook.NewCache(orderbook.DefaultPlaceholderConfig())
	for _, b := range books {
		cache.Put(b)
	}

	f := &fixture{
		decisions: NewMemoryDecisionStore(),
		configs:   NewMemoryConfigStore(),
		books:     cache,
		observer:  &observerRecorder{},
	}
	n := 0
	f.router = NewRouter(registry, cache, f.configs, f.decisions, nil,
		WithObserver(f.observer),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("dec-%d", n)
		}),
	)
	return f
}

func (f *fixture) setConfig(t *testing.T, cfg model.RoutingConfig) {
	t.Helper()
	if err := f.router.SetRoutingConfig(context.Background(), "acme", cfg); err != nil {
		t.Fatalf("SetRoutingConfig: %v", err)
	}
}

func buy(qty float64) Order {
	return Order{
		OrderID:  "ord-1",
		TenantID: "acme",
		AssetID:  "BTC",
		Side:     model.SideBuy,
		Type:     model.OrderTypeMarket,
		Quantity: qty,
	}
}
