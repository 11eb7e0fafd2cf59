package model

import "slices"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// ExchangeStatus is the operational state of an exchange for a tenant.
type ExchangeStatus string

const (
	ExchangeActive      ExchangeStatus = "ACTIVE"
	ExchangeInactive    ExchangeStatus = "INACTIVE"
	ExchangeMaintenance ExchangeStatus = "MAINTENANCE"
	ExchangeError       ExchangeStatus = "ERROR"
)

// ExchangeConfig describes one exchange as seen by one tenant.
type ExchangeConfig struct {
	ExchangeID        string            `json:"exchangeId" yaml:"exchange_id"`
	Name              string            `json:"name" yaml:"name"`
	Priority          int               `json:"priority" yaml:"priority"` // lower = preferred
	Status            ExchangeStatus    `json:"status" yaml:"status"`
	SupportedFeatures SupportedFeatures `json:"supportedFeatures" yaml:"supported_features"`
}

// SupportedFeatures holds the trading constraints and fee schedule of an exchange.
type SupportedFeatures struct {
	SupportedAssets []string    `json:"supportedAssets" yaml:"supported_assets"`
	OrderTypes      []OrderType `json:"orderTypes,omitempty" yaml:"order_types"`
	MinOrderSize    float64     `json:"minOrderSize" yaml:"min_order_size"`
	LotSize         float64     `json:"lotSize" yaml:"lot_size"`
	MakerFeeRate    float64     `json:"makerFeeRate" yaml:"maker_fee_rate"` // percent
	TakerFeeRate    float64     `json:"takerFeeRate" yaml:"taker_fee_rate"` // percent
}

// IsActive reports whether the exchange accepts orders.
func (e ExchangeConfig) IsActive() bool {
	return e.Status == ExchangeActive
}

// SupportsAsset reports whether assetID is tradeable on the exchange.
func (e ExchangeConfig) SupportsAsset(assetID string) bool {
	return slices.Contains(e.SupportedFeatures.SupportedAssets, assetID)
}

// FeeRate returns the maker rate for LIMIT orders and the taker rate otherwise.
func (e ExchangeConfig) FeeRate(orderType OrderType) float64 {
	if orderType == OrderTypeLimit {
		return e.SupportedFeatures.MakerFeeRate
	}
	return e.SupportedFeatures.TakerFeeRate
}
