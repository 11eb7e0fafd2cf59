package exchange

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/venue-gateway/internal/model"
)

// ParseDecimal converts a decimal string to float64.
// "0.001" -> 0.001, " 50010.5 " -> 50010.5
// Returns 0 for empty or invalid input.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}

	f, _ := d.Float64()
	return f
}

// ParseTimestamp parses an RFC 3339 timestamp.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}

// ToExchangeConfig converts an API exchange into the internal model.
func ToExchangeConfig(a APIExchange) model.ExchangeConfig {
	orderTypes := make([]model.OrderType, 0, len(a.OrderTypes))
	for _, t := range a.OrderTypes {
		orderTypes = append(orderTypes, model.OrderType(strings.ToUpper(t)))
	}

	return model.ExchangeConfig{
		ExchangeID: a.ExchangeID,
		Name:       a.Name,
		Priority:   a.Priority,
		Status:     model.ExchangeStatus(strings.ToUpper(a.Status)),
		SupportedFeatures: model.SupportedFeatures{
			SupportedAssets: a.SupportedAssets,
			OrderTypes:      orderTypes,
			MinOrderSize:    ParseDecimal(a.MinOrderSize),
			LotSize:         ParseDecimal(a.LotSize),
			MakerFeeRate:    ParseDecimal(a.MakerFeeRate),
			TakerFeeRate:    ParseDecimal(a.TakerFeeRate),
		},
	}
}

// ToOrderBookSummary converts an API order book into the internal model.
func ToOrderBookSummary(b APIOrderBook) model.OrderBookSummary {
	return model.OrderBookSummary{
		ExchangeID: b.ExchangeID,
		AssetID:    b.AssetID,
		BestBid:    ParseDecimal(b.BestBid),
		BestAsk:    ParseDecimal(b.BestAsk),
		BidDepth:   ParseDecimal(b.BidDepth),
		AskDepth:   ParseDecimal(b.AskDepth),
		Timestamp:  ParseTimestamp(b.Timestamp),
	}.WithDerivedSpread()
}
