package routing

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/venue-gateway/internal/model"
)

// lotTolerance is the fraction of a lot a remainder may deviate by and
// still count as a whole multiple.
var lotTolerance = decimal.RequireFromString("0.01")

// ValidateOrderSizeForExchange checks the order quantity against the
// exchange's minimum order size and lot size. Violations are returned as
// *OrderSizeConstraintError.
func ValidateOrderSizeForExchange(order Order, exchange model.ExchangeConfig) error {
	if cerr := checkOrderSize(order, exchange); cerr != nil {
		return cerr
	}
	return nil
}

func checkOrderSize(order Order, exchange model.ExchangeConfig) *OrderSizeConstraintError {
	f := exchange.SupportedFeatures

	if order.Quantity <= 0 {
		return &OrderSizeConstraintError{
			OrderID:    order.OrderID,
			ExchangeID: exchange.ExchangeID,
			Constraint: ConstraintQuantity,
			Value:      order.Quantity,
		}
	}

	if f.MinOrderSize > 0 && order.Quantity < f.MinOrderSize {
		return &OrderSizeConstraintError{
			OrderID:    order.OrderID,
			ExchangeID: exchange.ExchangeID,
			Constraint: ConstraintMinOrderSize,
			Value:      order.Quantity,
			Limit:      f.MinOrderSize,
		}
	}

	if f.LotSize > 0 && !isLotMultiple(order.Quantity, f.LotSize) {
		return &OrderSizeConstraintError{
			OrderID:    order.OrderID,
			ExchangeID: exchange.ExchangeID,
			Constraint: ConstraintLotSize,
			Value:      order.Quantity,
			Limit:      f.LotSize,
		}
	}

	return nil
}

// isLotMultiple reports whether qty mod lot is within 1% of a lot from
// 0 or from lot.
func isLotMultiple(qty, lot float64) bool {
	q := decimal.NewFromFloat(qty)
	l := decimal.NewFromFloat(lot)
	rem := q.Mod(l)
	tol := l.Mul(lotTolerance)

	return rem.LessThanOrEqual(tol) || l.Sub(rem).LessThanOrEqual(tol)
}

// roundDownToLot rounds qty down to a whole number of lots.
// A non-positive lot leaves qty unchanged.
func roundDownToLot(qty, lot decimal.Decimal) decimal.Decimal {
	if !lot.IsPositive() {
		return qty
	}
	return qty.Div(lot).Floor().Mul(lot)
}
