package routing

import (
	"time"

	"github.com/rickgao/venue-gateway/internal/model"
)

// Order is the routing input.
type Order struct {
	OrderID  string          `json:"orderId"`
	TenantID string          `json:"tenantId"`
	AssetID  string          `json:"assetId"`
	Side     model.Side      `json:"side"`
	Type     model.OrderType `json:"type"`
	Quantity float64         `json:"quantity"`
	Price    *float64        `json:"price,omitempty"` // limit price, nil for market orders
}

// RoutingDecision is the router's answer for one order.
type RoutingDecision struct {
	DecisionID           string                `json:"decisionId"`
	OrderID              string                `json:"orderId"`
	TenantID             string                `json:"tenantId"`
	AssetID              string                `json:"assetId"`
	Side                 model.Side            `json:"side"`
	Quantity             float64               `json:"quantity"`
	Criteria             model.RoutingCriteria `json:"criteria"`
	SelectedExchange     string                `json:"selectedExchange"`
	AlternativeExchanges []string              `json:"alternativeExchanges"`
	Reasoning            Reasoning             `json:"reasoning"`
	SplitOrders          []SplitOrder          `json:"splitOrders,omitempty"`
	CreatedAt            time.Time             `json:"createdAt"`
}

// Reasoning explains a decision. AvailabilityCheck is always populated;
// the other tables are filled by the selector that ran, in rank order.
type Reasoning struct {
	AvailabilityCheck []AvailabilityCheck `json:"availabilityCheck"`
	PriceComparison   []PriceComparison   `json:"priceComparison,omitempty"`
	FeeComparison     []FeeComparison     `json:"feeComparison,omitempty"`
	LiquidityAnalysis []LiquidityAnalysis `json:"liquidityAnalysis,omitempty"`
	PreferenceRanking []PreferenceRanking `json:"preferenceRanking,omitempty"`
}

// AvailabilityCheck is the verdict for one exchange.
type AvailabilityCheck struct {
	ExchangeID string `json:"exchangeId"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
}

type PriceComparison struct {
	ExchangeID string  `json:"exchangeId"`
	Price      float64 `json:"price"`
	Spread     float64 `json:"spread"`
}

type FeeComparison struct {
	ExchangeID    string  `json:"exchangeId"`
	FeeRate       float64 `json:"feeRate"` // percent
	EstimatedCost float64 `json:"estimatedCost"`
}

type LiquidityAnalysis struct {
	ExchangeID        string  `json:"exchangeId"`
	Depth             float64 `json:"depth"`
	EstimatedSlippage float64 `json:"estimatedSlippage"` // percent
}

type PreferenceRanking struct {
	ExchangeID string `json:"exchangeId"`
	Priority   int    `json:"priority"`
	Override   bool   `json:"override"` // tenant priority used instead of the exchange's own
}

// SplitOrder is one leg of a split order.
type SplitOrder struct {
	ExchangeID     string  `json:"exchangeId"`
	Quantity       float64 `json:"quantity"`
	EstimatedPrice float64 `json:"estimatedPrice"`
}

// Outcome records what happened when a decision was executed.
type Outcome struct {
	DecisionID     string    `json:"decisionId"`
	ExchangeID     string    `json:"exchangeId"`
	FilledQuantity float64   `json:"filledQuantity"`
	AveragePrice   float64   `json:"averagePrice"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// Candidate is an exchange that passed every check, with its book snapshot.
type Candidate struct {
	Exchange model.ExchangeConfig
	Book     model.OrderBookSummary
}
