package routing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rickgao/venue-gateway/internal/model"
)

// ConfigStore persists tenant routing policies.
type ConfigStore interface {
	// RoutingConfig returns the tenant's stored config; ok is false if none.
	RoutingConfig(ctx context.Context, tenantID string) (cfg model.RoutingConfig, ok bool, err error)
	PutRoutingConfig(ctx context.Context, cfg model.RoutingConfig) error
}

// DecisionStore persists routing decisions and their outcomes.
type DecisionStore interface {
	// SaveDecision stores d; ErrDuplicateDecision if its id already exists.
	SaveDecision(ctx context.Context, d *RoutingDecision) error
	Decision(ctx context.Context, decisionID string) (*RoutingDecision, error)
	AppendOutcome(ctx context.Context, o Outcome) error
	Outcomes(ctx context.Context, decisionID string) ([]Outcome, error)
}

// MemoryConfigStore is an in-process ConfigStore.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]model.RoutingConfig
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]model.RoutingConfig)}
}

func (s *MemoryConfigStore) RoutingConfig(_ context.Context, tenantID string) (model.RoutingConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[tenantID]
	if ok {
		cfg.ExchangePriorities = slices.Clone(cfg.ExchangePriorities)
	}
	return cfg, ok, nil
}

func (s *MemoryConfigStore) PutRoutingConfig(_ context.Context, cfg model.RoutingConfig) error {
	cfg.ExchangePriorities = slices.Clone(cfg.ExchangePriorities)
	s.mu.Lock()
	s.configs[cfg.TenantID] = cfg
	s.mu.Unlock()
	return nil
}

// MemoryDecisionStore is an in-process DecisionStore.
type MemoryDecisionStore struct {
	mu        sync.RWMutex
	decisions map[string]*RoutingDecision
	outcomes  map[string][]Outcome
}

func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{
		decisions: make(map[string]*RoutingDecision),
		outcomes:  make(map[string][]Outcome),
	}
}

func (s *MemoryDecisionStore) SaveDecision(_ context.Context, d *RoutingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[d.DecisionID]; exists {
		return fmt.Errorf("%s: %w", d.DecisionID, ErrDuplicateDecision)
	}
	s.decisions[d.DecisionID] = d.clone()
	return nil
}

func (s *MemoryDecisionStore) Decision(_ context.Context, decisionID string) (*RoutingDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[decisionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", decisionID, ErrDecisionNotFound)
	}
	return d.clone(), nil
}

func (s *MemoryDecisionStore) AppendOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[o.DecisionID]; !ok {
		return fmt.Errorf("%s: %w", o.DecisionID, ErrDecisionNotFound)
	}
	s.outcomes[o.DecisionID] = append(s.outcomes[o.DecisionID], o)
	return nil
}

func (s *MemoryDecisionStore) Outcomes(_ context.Context, decisionID string) ([]Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.decisions[decisionID]; !ok {
		return nil, fmt.Errorf("%s: %w", decisionID, ErrDecisionNotFound)
	}
	return slices.Clone(s.outcomes[decisionID]), nil
}

// Len returns the number of stored decisions.
func (s *MemoryDecisionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

func (d *RoutingDecision) clone() *RoutingDecision {
	c := *d
	c.AlternativeExchanges = slices.Clone(d.AlternativeExchanges)
	c.SplitOrders = slices.Clone(d.SplitOrders)
	c.Reasoning = Reasoning{
		AvailabilityCheck: slices.Clone(d.Reasoning.AvailabilityCheck),
		PriceComparison:   slices.Clone(d.Reasoning.PriceComparison),
		FeeComparison:     slices.Clone(d.Reasoning.FeeComparison),
		LiquidityAnalysis: slices.Clone(d.Reasoning.LiquidityAnalysis),
		PreferenceRanking: slices.Clone(d.Reasoning.PreferenceRanking),
	}
	return &c
}
