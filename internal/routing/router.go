package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/venue-gateway/internal/exchange"
	"github.com/rickgao/venue-gateway/internal/model"
)

// Failure reasons reported to an Observer.
const (
	FailureNoExchangeAvailable = "no_exchange_available"
	FailureOrderSizeConstraint = "order_size_constraint"
	FailureInternal            = "internal"
)

// BookProvider supplies order book snapshots. orderbook.Cache implements it.
type BookProvider interface {
	Snapshot(exchangeID, assetID string) model.OrderBookSummary
}

// Observer receives routing outcomes, e.g. for metrics.
type Observer interface {
	RouteSucceeded(d *RoutingDecision, elapsed time.Duration)
	RouteFailed(reason string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RouteSucceeded(*RoutingDecision, time.Duration) {}
func (nopObserver) RouteFailed(string, time.Duration)              {}

// Router picks execution venues for orders.
type Router interface {
	// RouteOrder selects an exchange, or a split, for order and persists
	// the decision.
	RouteOrder(ctx context.Context, order Order) (*RoutingDecision, error)

	// RoutingConfig returns the tenant's policy, or the default if none is stored.
	RoutingConfig(ctx context.Context, tenantID string) (model.RoutingConfig, error)

	// SetRoutingConfig validates and stores a tenant policy.
	SetRoutingConfig(ctx context.Context, tenantID string, cfg model.RoutingConfig) error

	Decision(ctx context.Context, decisionID string) (*RoutingDecision, error)

	// RecordOutcome appends an execution result to a stored decision.
	RecordOutcome(ctx context.Context, o Outcome) error
	Outcomes(ctx context.Context, decisionID string) ([]Outcome, error)
}

// Option configures a Router.
type Option func(*router)

// WithObserver reports routing results to o.
func WithObserver(o Observer) Option {
	return func(r *router) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *router) { r.now = now }
}

// WithIDGenerator overrides decision id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *router) { r.newID = gen }
}

// router implements the Router interface.
type router struct {
	registry  exchange.Registry
	books     BookProvider
	configs   ConfigStore
	decisions DecisionStore
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewRouter creates an Order Router. Nil stores default to in-memory ones.
func NewRouter(registry exchange.Registry, books BookProvider, configs ConfigStore, decisions DecisionStore, logger *slog.Logger, opts ...Option) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if configs == nil {
		configs = NewMemoryConfigStore()
	}
	if decisions == nil {
		decisions = NewMemoryDecisionStore()
	}

	r := &router{
		registry:  registry,
		books:     books,
		configs:   configs,
		decisions: decisions,
		observer:  nopObserver{},
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *router) RoutingConfig(ctx context.Context, tenantID string) (model.RoutingConfig, error) {
	cfg, ok, err := r.configs.RoutingConfig(ctx, tenantID)
	if err != nil {
		return model.RoutingConfig{}, fmt.Errorf("load routing config for %s: %w", tenantID, err)
	}
	if !ok {
		return model.DefaultRoutingConfig(tenantID), nil
	}
	return cfg, nil
}

func (r *router) SetRoutingConfig(ctx context.Context, tenantID string, cfg model.RoutingConfig) error {
	cfg.TenantID = tenantID
	if err := ValidateRoutingConfig(cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = r.now().UTC()

	if err := r.configs.PutRoutingConfig(ctx, cfg); err != nil {
		return fmt.Errorf("store routing config for %s: %w", tenantID, err)
	}

	r.logger.Info("routing config updated",
		"tenant", tenantID,
		"criteria", cfg.DefaultCriteria,
		"splitting", cfg.EnableOrderSplitting,
	)
	return nil
}

func (r *router) Decision(ctx context.Context, decisionID string) (*RoutingDecision, error) {
	return r.decisions.Decision(ctx, decisionID)
}

func (r *router) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = r.now().UTC()
	}
	if err := r.decisions.AppendOutcome(ctx, o); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (r *router) Outcomes(ctx context.Context, decisionID string) ([]Outcome, error) {
	return r.decisions.Outcomes(ctx, decisionID)
}

func (r *router) RouteOrder(ctx context.Context, order Order) (*RoutingDecision, error) {
	start := r.now()

	d, err := r.route(ctx, order)
	elapsed := r.now().Sub(start)
	if err != nil {
		r.observer.RouteFailed(failureReason(err), elapsed)
		r.logger.Debug("order routing failed",
			"order", order.OrderID,
			"tenant", order.TenantID,
			"asset", order.AssetID,
			"err", err,
		)
		return nil, err
	}

	r.observer.RouteSucceeded(d, elapsed)
	r.logger.Debug("order routed",
		"order", order.OrderID,
		"decision", d.DecisionID,
		"exchange", d.SelectedExchange,
		"criteria", d.Criteria,
		"legs", len(d.SplitOrders),
	)
	return d, nil
}

func (r *router) route(ctx context.Context, order Order) (*RoutingDecision, error) {
	if order.Quantity <= 0 {
		return nil, &OrderSizeConstraintError{
			OrderID:    order.OrderID,
			Constraint: ConstraintQuantity,
			Value:      order.Quantity,
		}
	}

	cfg, err := r.RoutingConfig(ctx, order.TenantID)
	if err != nil {
		return nil, err
	}

	exchanges, err := r.registry.AvailableExchanges(ctx, order.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list exchanges for %s: %w", order.TenantID, err)
	}

	checks, eligible := checkAvailability(order, exchanges)
	if len(eligible) == 0 {
		return nil, &NoExchangeAvailableError{
			OrderID: order.OrderID,
			AssetID: order.AssetID,
			Reason:  "no active exchange supports the asset",
			Checks:  checks,
		}
	}

	var violations []*OrderSizeConstraintError
	candidates := make([]Candidate, 0, len(eligible))
	for _, e := range eligible {
		if cerr := checkOrderSize(order, e); cerr != nil {
			violations = append(violations, cerr)
			markUnavailable(checks, e.ExchangeID, cerr.Error())
			continue
		}
		candidates = append(candidates, Candidate{
			Exchange: e,
			Book:     r.books.Snapshot(e.ExchangeID, order.AssetID),
		})
	}
	if len(candidates) == 0 {
		return nil, &NoExchangeAvailableError{
			OrderID:     order.OrderID,
			AssetID:     order.AssetID,
			Reason:      "order size violates every exchange's constraints",
			Checks:      checks,
			Constraints: violations,
		}
	}

	selector, err := SelectorFor(cfg.DefaultCriteria)
	if err != nil {
		r.logger.Warn("stored routing criteria invalid, using user preference",
			"tenant", order.TenantID,
			"criteria", cfg.DefaultCriteria,
		)
		selector = UserPreference{}
	}

	sel := selector.Select(order, candidates, cfg)
	sel.Reasoning.AvailabilityCheck = checks

	d := &RoutingDecision{
		DecisionID:           r.newID(),
		OrderID:              order.OrderID,
		TenantID:             order.TenantID,
		AssetID:              order.AssetID,
		Side:                 order.Side,
		Quantity:             order.Quantity,
		Criteria:             selector.Criteria(),
		SelectedExchange:     sel.Selected(),
		AlternativeExchanges: sel.Alternatives(),
		Reasoning:            sel.Reasoning,
		CreatedAt:            r.now().UTC(),
	}

	if cfg.EnableOrderSplitting && order.Quantity >= cfg.MinSplitSize {
		splits := ComputeSplits(order, candidates, cfg.MaxSplitExchanges)
		if len(splits) > 0 && !VerifySplitQuantities(order.Quantity, splits) {
			r.logger.Error("split legs do not sum to order quantity, dropping split",
				"order", order.OrderID,
				"quantity", order.Quantity,
				"legs", len(splits),
			)
			splits = nil
		}
		d.SplitOrders = splits
	}

	if err := r.decisions.SaveDecision(ctx, d); err != nil {
		return nil, fmt.Errorf("save decision %s: %w", d.DecisionID, err)
	}
	return d, nil
}

// checkAvailability returns a verdict per exchange and the exchanges that
// are ACTIVE and list the asset, in registry order.
func checkAvailability(order Order, exchanges []model.ExchangeConfig) ([]AvailabilityCheck, []model.ExchangeConfig) {
	checks := make([]AvailabilityCheck, 0, len(exchanges))
	eligible := make([]model.ExchangeConfig, 0, len(exchanges))

	for _, e := range exchanges {
		switch {
		case !e.IsActive():
			checks = append(checks, AvailabilityCheck{ExchangeID: e.ExchangeID, Reason: "Exchange is not active"})
		case !e.SupportsAsset(order.AssetID):
			checks = append(checks, AvailabilityCheck{
				ExchangeID: e.ExchangeID,
				Reason:     fmt.Sprintf("Asset '%s' not supported", order.AssetID),
			})
		default:
			checks = append(checks, AvailabilityCheck{ExchangeID: e.ExchangeID, Available: true})
			eligible = append(eligible, e)
		}
	}
	return checks, eligible
}

func markUnavailable(checks []AvailabilityCheck, exchangeID, reason string) {
	for i := range checks {
		if checks[i].ExchangeID == exchangeID {
			checks[i].Available = false
			checks[i].Reason = reason
			return
		}
	}
}

func failureReason(err error) string {
	switch err.(type) {
	case *NoExchangeAvailableError:
		return FailureNoExchangeAvailable
	case *OrderSizeConstraintError:
		return FailureOrderSizeConstraint
	default:
		return FailureInternal
	}
}
