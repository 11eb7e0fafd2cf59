package model

import "time"

// RoutingCriteria is the policy used to pick an execution venue.
type RoutingCriteria string

const (
	CriteriaBestPrice        RoutingCriteria = "BEST_PRICE"
	CriteriaLowestFees       RoutingCriteria = "LOWEST_FEES"
	CriteriaHighestLiquidity RoutingCriteria = "HIGHEST_LIQUIDITY"
	CriteriaUserPreference   RoutingCriteria = "USER_PREFERENCE"
)

// AllCriteria lists every routing criteria value.
var AllCriteria = []RoutingCriteria{
	CriteriaBestPrice,
	CriteriaLowestFees,
	CriteriaHighestLiquidity,
	CriteriaUserPreference,
}

// Valid reports whether c is one of the known criteria.
func (c RoutingCriteria) Valid() bool {
	for _, known := range AllCriteria {
		if c == known {
			return true
		}
	}
	return false
}

// ExchangePriority is a tenant override of an exchange's static priority.
type ExchangePriority struct {
	ExchangeID string `json:"exchangeId" yaml:"exchange_id" validate:"required"`
	Priority   int    `json:"priority" yaml:"priority"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// RoutingConfig is a tenant's routing policy.
type RoutingConfig struct {
	TenantID             string             `json:"tenantId" yaml:"tenant_id"`
	DefaultCriteria      RoutingCriteria    `json:"defaultCriteria" yaml:"default_criteria" validate:"required,oneof=BEST_PRICE LOWEST_FEES HIGHEST_LIQUIDITY USER_PREFERENCE"`
	ExchangePriorities   []ExchangePriority `json:"exchangePriorities" yaml:"exchange_priorities" validate:"dive"`
	EnableOrderSplitting bool               `json:"enableOrderSplitting" yaml:"enable_order_splitting"`
	MaxSplitExchanges    int                `json:"maxSplitExchanges" yaml:"max_split_exchanges" validate:"gte=0,required_if=EnableOrderSplitting true"`
	MinSplitSize         float64            `json:"minSplitSize" yaml:"min_split_size" validate:"gte=0"`
	UpdatedAt            time.Time          `json:"updatedAt" yaml:"-"`
}

// DefaultRoutingConfig is the policy applied to tenants without a stored config.
func DefaultRoutingConfig(tenantID string) RoutingConfig {
	return RoutingConfig{
		TenantID:             tenantID,
		DefaultCriteria:      CriteriaUserPreference,
		EnableOrderSplitting: false,
		MaxSplitExchanges:    3,
		MinSplitSize:         0,
	}
}

// PriorityFor returns the tenant override for exchangeID if one is enabled.
func (c RoutingConfig) PriorityFor(exchangeID string) (int, bool) {
	for _, p := range c.ExchangePriorities {
		if p.ExchangeID == exchangeID && p.Enabled {
			return p.Priority, true
		}
	}
	return 0, false
}
