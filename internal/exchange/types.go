package exchange

import (
	"errors"
	"fmt"
)

// API response types. Decimal quantities and rates arrive as strings to
// avoid float rounding on the wire.

// APIExchange is one exchange entry as returned by the registry service.
type APIExchange struct {
	ExchangeID      string   `json:"exchange_id"`
	Name            string   `json:"name"`
	Priority        int      `json:"priority"`
	Status          string   `json:"status"`
	SupportedAssets []string `json:"supported_assets"`
	OrderTypes      []string `json:"order_types"`
	MinOrderSize    string   `json:"min_order_size"`
	LotSize         string   `json:"lot_size"`
	MakerFeeRate    string   `json:"maker_fee_rate"` // percent
	TakerFeeRate    string   `json:"taker_fee_rate"` // percent
}

// ExchangesResponse is the response from GET /tenants/{tenant}/exchanges.
// A tenant with nothing configured gets an empty list, never a missing one.
type ExchangesResponse struct {
	Exchanges []APIExchange `json:"exchanges"`
}

func (r *ExchangesResponse) check() error {
	if r.Exchanges == nil {
		return errors.New("missing exchanges list")
	}
	for i, e := range r.Exchanges {
		if e.ExchangeID == "" {
			return fmt.Errorf("exchange %d has no exchange_id", i)
		}
	}
	return nil
}

// APIOrderBook is the top-of-book summary from
// GET /exchanges/{exchange}/orderbooks/{asset}.
type APIOrderBook struct {
	ExchangeID string `json:"exchange_id"`
	AssetID    string `json:"asset_id"`
	BestBid    string `json:"best_bid"`
	BestAsk    string `json:"best_ask"`
	BidDepth   string `json:"bid_depth"`
	AskDepth   string `json:"ask_depth"`
	Timestamp  string `json:"timestamp"` // RFC 3339
}

// OrderBookResponse wraps a single order book.
type OrderBookResponse struct {
	OrderBook *APIOrderBook `json:"orderbook"`
}

func (r *OrderBookResponse) check() error {
	if r.OrderBook == nil {
		return errors.New("missing orderbook")
	}
	return nil
}
