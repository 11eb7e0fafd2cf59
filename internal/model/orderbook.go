package model

import "time"

// OrderBookSummary is a point-in-time top-of-book view of one asset on one exchange.
type OrderBookSummary struct {
	ExchangeID    string    `json:"exchangeId"`
	AssetID       string    `json:"assetId"`
	BestBid       float64   `json:"bestBid"`
	BestAsk       float64   `json:"bestAsk"`
	BidDepth      float64   `json:"bidDepth"` // quantity available near the best bid
	AskDepth      float64   `json:"askDepth"` // quantity available near the best ask
	Spread        float64   `json:"spread"`
	SpreadPercent float64   `json:"spreadPercent"`
	Timestamp     time.Time `json:"timestamp"`
	Placeholder   bool      `json:"placeholder,omitempty"` // generated, not live data
}

// Price returns the price an order on side would execute against:
// the best ask for BUY, the best bid for SELL.
func (s OrderBookSummary) Price(side Side) float64 {
	if side == SideSell {
		return s.BestBid
	}
	return s.BestAsk
}

// Depth returns the liquidity an order on side would consume:
// ask depth for BUY, bid depth for SELL.
func (s OrderBookSummary) Depth(side Side) float64 {
	if side == SideSell {
		return s.BidDepth
	}
	return s.AskDepth
}

// Mid returns the midpoint of the best bid and ask, or 0 if either side is empty.
func (s OrderBookSummary) Mid() float64 {
	if s.BestBid <= 0 || s.BestAsk <= 0 {
		return 0
	}
	return (s.BestBid + s.BestAsk) / 2
}

// WithDerivedSpread fills Spread and SpreadPercent from the best prices
// when they have not been provided.
func (s OrderBookSummary) WithDerivedSpread() OrderBookSummary {
	if s.Spread == 0 && s.BestAsk > 0 && s.BestBid > 0 {
		s.Spread = s.BestAsk - s.BestBid
	}
	if s.SpreadPercent == 0 {
		if mid := s.Mid(); mid > 0 {
			s.SpreadPercent = s.Spread / mid * 100
		}
	}
	return s
}
