package routing

import (
	"fmt"
	"math"
	"slices"

	"github.com/rickgao/venue-gateway/internal/model"
)

// Selection is a selector's ranking of the candidates.
type Selection struct {
	Ranked    []string // exchange ids, best first
	Reasoning Reasoning
}

// Selected returns the winning exchange id.
func (s Selection) Selected() string {
	if len(s.Ranked) == 0 {
		return ""
	}
	return s.Ranked[0]
}

// Alternatives returns the non-winning exchange ids in rank order.
func (s Selection) Alternatives() []string {
	if len(s.Ranked) < 2 {
		return []string{}
	}
	return slices.Clone(s.Ranked[1:])
}

// Selector ranks candidates by one routing criteria. The set of
// implementations is closed: BestPrice, LowestFees, HighestLiquidity and
// UserPreference.
type Selector interface {
	Criteria() model.RoutingCriteria

	// Select ranks candidates. Ties keep candidate order.
	Select(order Order, candidates []Candidate, cfg model.RoutingConfig) Selection

	sealed()
}

// SelectorFor returns the selector for criteria.
func SelectorFor(criteria model.RoutingCriteria) (Selector, error) {
	switch criteria {
	case model.CriteriaBestPrice:
		return BestPrice{}, nil
	case model.CriteriaLowestFees:
		return LowestFees{}, nil
	case model.CriteriaHighestLiquidity:
		return HighestLiquidity{}, nil
	case model.CriteriaUserPreference:
		return UserPreference{}, nil
	default:
		return nil, fmt.Errorf("unknown routing criteria %q", criteria)
	}
}

// scored pairs a candidate with its ranking key.
type scored[R any] struct {
	id    string
	key   float64
	entry R
}

// rank stable-sorts ascending by key and returns ids plus table rows in
// rank order.
func rank[R any](items []scored[R]) ([]string, []R) {
	slices.SortStableFunc(items, func(a, b scored[R]) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})

	ids := make([]string, len(items))
	rows := make([]R, len(items))
	for i, it := range items {
		ids[i] = it.id
		rows[i] = it.entry
	}
	return ids, rows
}

// BestPrice ranks by lowest ask for BUY and highest bid for SELL.
// Exchanges without a quote on the relevant side rank last.
type BestPrice struct{}

func (BestPrice) Criteria() model.RoutingCriteria { return model.CriteriaBestPrice }
func (BestPrice) sealed()                         {}

func (BestPrice) Select(order Order, candidates []Candidate, _ model.RoutingConfig) Selection {
	items := make([]scored[PriceComparison], 0, len(candidates))
	for _, c := range candidates {
		price := c.Book.Price(order.Side)
		key := price
		switch {
		case price <= 0:
			key = math.Inf(1)
		case order.Side == model.SideSell:
			key = -price
		}
		items = append(items, scored[PriceComparison]{
			id:  c.Exchange.ExchangeID,
			key: key,
			entry: PriceComparison{
				ExchangeID: c.Exchange.ExchangeID,
				Price:      price,
				Spread:     c.Book.Spread,
			},
		})
	}

	ids, rows := rank(items)
	return Selection{Ranked: ids, Reasoning: Reasoning{PriceComparison: rows}}
}

// LowestFees ranks by estimated fee cost: notional × feeRate / 100, using
// the maker rate for LIMIT orders and the taker rate otherwise. Notional
// uses the order's limit price, or the exchange's own top of book. An
// exchange with no reference price ranks last.
type LowestFees struct{}

func (LowestFees) Criteria() model.RoutingCriteria { return model.CriteriaLowestFees }
func (LowestFees) sealed()                         {}

func (LowestFees) Select(order Order, candidates []Candidate, _ model.RoutingConfig) Selection {
	items := make([]scored[FeeComparison], 0, len(candidates))
	for _, c := range candidates {
		rate := c.Exchange.FeeRate(order.Type)
		ref := referencePrice(order, c.Book)
		cost := order.Quantity * ref * rate / 100
		key := cost
		if ref <= 0 {
			// No price to estimate from; rank last.
			key = math.Inf(1)
		}
		items = append(items, scored[FeeComparison]{
			id:  c.Exchange.ExchangeID,
			key: key,
			entry: FeeComparison{
				ExchangeID:    c.Exchange.ExchangeID,
				FeeRate:       rate,
				EstimatedCost: cost,
			},
		})
	}

	ids, rows := rank(items)
	return Selection{Ranked: ids, Reasoning: Reasoning{FeeComparison: rows}}
}

func referencePrice(order Order, book model.OrderBookSummary) float64 {
	if order.Price != nil {
		return *order.Price
	}
	return book.Price(order.Side)
}

// maxSlippage stands in for the slippage of an empty book side. It is
// finite so decisions stay JSON-encodable.
const maxSlippage = math.MaxFloat64

// HighestLiquidity ranks by lowest estimated slippage against the
// relevant book side.
type HighestLiquidity struct{}

func (HighestLiquidity) Criteria() model.RoutingCriteria { return model.CriteriaHighestLiquidity }
func (HighestLiquidity) sealed()                         {}

func (HighestLiquidity) Select(order Order, candidates []Candidate, _ model.RoutingConfig) Selection {
	items := make([]scored[LiquidityAnalysis], 0, len(candidates))
	for _, c := range candidates {
		depth := c.Book.Depth(order.Side)
		slip := EstimateSlippage(order.Quantity, depth)
		items = append(items, scored[LiquidityAnalysis]{
			id:  c.Exchange.ExchangeID,
			key: slip,
			entry: LiquidityAnalysis{
				ExchangeID:        c.Exchange.ExchangeID,
				Depth:             depth,
				EstimatedSlippage: slip,
			},
		})
	}

	ids, rows := rank(items)
	return Selection{Ranked: ids, Reasoning: Reasoning{LiquidityAnalysis: rows}}
}

// EstimateSlippage returns 0 when depth covers quantity, otherwise
// (quantity/depth − 1) × 100 percent.
func EstimateSlippage(quantity, depth float64) float64 {
	if quantity <= depth {
		return 0
	}
	if depth <= 0 {
		return maxSlippage
	}
	return (quantity/depth - 1) * 100
}

// UserPreference ranks by the tenant's enabled priority override, else the
// exchange's static priority. Lower is preferred.
type UserPreference struct{}

func (UserPreference) Criteria() model.RoutingCriteria { return model.CriteriaUserPreference }
func (UserPreference) sealed()                         {}

func (UserPreference) Select(_ Order, candidates []Candidate, cfg model.RoutingConfig) Selection {
	items := make([]scored[PreferenceRanking], 0, len(candidates))
	for _, c := range candidates {
		priority, override := cfg.PriorityFor(c.Exchange.ExchangeID)
		if !override {
			priority = c.Exchange.Priority
		}
		items = append(items, scored[PreferenceRanking]{
			id:  c.Exchange.ExchangeID,
			key: float64(priority),
			entry: PreferenceRanking{
				ExchangeID: c.Exchange.ExchangeID,
				Priority:   priority,
				Override:   override,
			},
		})
	}

	ids, rows := rank(items)
	return Selection{Ranked: ids, Reasoning: Reasoning{PreferenceRanking: rows}}
}
