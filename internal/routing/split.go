package routing

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

// splitTolerance is the maximum allowed difference between an order's
// quantity and the sum of its legs.
const splitTolerance = 1e-4

// ComputeSplits divides order across at most maxExchanges candidates in
// proportion to their depth on the order's side. Legs are produced in
// descending depth order. A leg below the exchange's minimum order size is
// skipped; others are rounded down to the exchange's lot size. Whatever is
// left unallocated goes to the first leg. Returns nil if every exchange
// was skipped. maxExchanges <= 0 means no limit.
func ComputeSplits(order Order, candidates []Candidate, maxExchanges int) []SplitOrder {
	if len(candidates) == 0 || order.Quantity <= 0 {
		return nil
	}

	eligible := slices.Clone(candidates)
	slices.SortStableFunc(eligible, func(a, b Candidate) int {
		da, db := a.Book.Depth(order.Side), b.Book.Depth(order.Side)
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		default:
			return 0
		}
	})
	if maxExchanges > 0 && len(eligible) > maxExchanges {
		eligible = eligible[:maxExchanges]
	}

	quantity := decimal.NewFromFloat(order.Quantity)
	totalDepth := decimal.Zero
	for _, c := range eligible {
		if d := c.Book.Depth(order.Side); d > 0 {
			totalDepth = totalDepth.Add(decimal.NewFromFloat(d))
		}
	}
	equalShare := quantity.Div(decimal.NewFromInt(int64(len(eligible))))

	remaining := quantity
	legs := make([]decimal.Decimal, 0, len(eligible))
	var splits []SplitOrder

	for _, c := range eligible {
		alloc := equalShare
		if totalDepth.IsPositive() {
			depth := decimal.NewFromFloat(math.Max(c.Book.Depth(order.Side), 0))
			alloc = quantity.Mul(depth).Div(totalDepth)
		}
		if alloc.GreaterThan(remaining) {
			alloc = remaining
		}

		f := c.Exchange.SupportedFeatures
		if alloc.LessThan(decimal.NewFromFloat(f.MinOrderSize)) {
			continue
		}
		alloc = roundDownToLot(alloc, decimal.NewFromFloat(f.LotSize))
		if !alloc.IsPositive() {
			continue
		}

		remaining = remaining.Sub(alloc)
		legs = append(legs, alloc)
		splits = append(splits, SplitOrder{
			ExchangeID:     c.Exchange.ExchangeID,
			EstimatedPrice: c.Book.Price(order.Side),
		})
	}

	if len(splits) == 0 {
		return nil
	}
	if remaining.IsPositive() {
		legs[0] = legs[0].Add(remaining)
	}
	for i := range splits {
		splits[i].Quantity = legs[i].InexactFloat64()
	}
	return splits
}

// VerifySplitQuantities reports whether the legs sum to original within 1e-4.
func VerifySplitQuantities(original float64, splits []SplitOrder) bool {
	sum := 0.0
	for _, s := range splits {
		sum += s.Quantity
	}
	return math.Abs(sum-original) <= splitTolerance
}
