package routing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoExchangeAvailable  = errors.New("no exchange available")
	ErrOrderSizeConstraint  = errors.New("order size constraint violated")
	ErrDecisionNotFound     = errors.New("routing decision not found")
	ErrDuplicateDecision    = errors.New("routing decision already exists")
	ErrInvalidRoutingConfig = errors.New("invalid routing config")
)

// Constraint names carried by OrderSizeConstraintError.
const (
	ConstraintQuantity     = "quantity"
	ConstraintMinOrderSize = "minOrderSize"
	ConstraintLotSize      = "lotSize"
)

// OrderSizeConstraintError reports which numeric constraint an order
// violates on one exchange.
type OrderSizeConstraintError struct {
	OrderID    string  `json:"orderId"`
	ExchangeID string  `json:"exchangeId"`
	Constraint string  `json:"constraint"`
	Value      float64 `json:"value"`
	Limit      float64 `json:"limit"`
}

func (e *OrderSizeConstraintError) Error() string {
	switch e.Constraint {
	case ConstraintMinOrderSize:
		return fmt.Sprintf("order %s: quantity %v below minimum order size %v on %s",
			e.OrderID, e.Value, e.Limit, e.ExchangeID)
	case ConstraintLotSize:
		return fmt.Sprintf("order %s: quantity %v is not a multiple of lot size %v on %s",
			e.OrderID, e.Value, e.Limit, e.ExchangeID)
	default:
		return fmt.Sprintf("order %s: invalid %s %v", e.OrderID, e.Constraint, e.Value)
	}
}

func (e *OrderSizeConstraintError) Unwrap() error { return ErrOrderSizeConstraint }

// NoExchangeAvailableError is returned when no exchange survives the
// availability and size checks. Checks lists the verdict for every exchange
// considered; Constraints holds the size violations, if any, so callers can
// errors.As into *OrderSizeConstraintError.
type NoExchangeAvailableError struct {
	OrderID     string
	AssetID     string
	Reason      string
	Checks      []AvailabilityCheck
	Constraints []*OrderSizeConstraintError
}

func (e *NoExchangeAvailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "order %s: no exchange available for %s: %s", e.OrderID, e.AssetID, e.Reason)
	for _, c := range e.Checks {
		if !c.Available {
			fmt.Fprintf(&b, "; %s: %s", c.ExchangeID, c.Reason)
		}
	}
	return b.String()
}

func (e *NoExchangeAvailableError) Unwrap() []error {
	errs := make([]error, 0, 1+len(e.Constraints))
	errs = append(errs, ErrNoExchangeAvailable)
	for _, c := range e.Constraints {
		errs = append(errs, c)
	}
	return errs
}
