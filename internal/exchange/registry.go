package exchange

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rickgao/venue-gateway/internal/model"
)

// ErrExchangeNotFound is returned when a tenant has no such exchange configured.
var ErrExchangeNotFound = errors.New("exchange not found")

// Registry answers which exchanges a tenant may route to.
type Registry interface {
	// AvailableExchanges returns the tenant's ACTIVE exchanges ordered by
	// priority, then exchange id.
	AvailableExchanges(ctx context.Context, tenantID string) ([]model.ExchangeConfig, error)

	// IsExchangeAvailable reports whether the exchange is configured and ACTIVE.
	IsExchangeAvailable(ctx context.Context, tenantID, exchangeID string) (bool, error)

	// Exchange returns one exchange regardless of status.
	Exchange(ctx context.Context, tenantID, exchangeID string) (model.ExchangeConfig, error)
}

// sortByPriority orders exchanges by priority, then id, in place.
func sortByPriority(exchanges []model.ExchangeConfig) {
	slices.SortStableFunc(exchanges, func(a, b model.ExchangeConfig) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.ExchangeID, b.ExchangeID)
	})
}

// activeOnly returns the ACTIVE subset, sorted.
func activeOnly(all []model.ExchangeConfig) []model.ExchangeConfig {
	out := make([]model.ExchangeConfig, 0, len(all))
	for _, e := range all {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	sortByPriority(out)
	return out
}

// StaticRegistry is an in-memory registry loaded from configuration.
// Operators may change an exchange's status at runtime.
type StaticRegistry struct {
	mu      sync.RWMutex
	tenants map[string]map[string]model.ExchangeConfig
}

// NewStaticRegistry creates a registry from a tenant → exchanges map.
func NewStaticRegistry(tenants map[string][]model.ExchangeConfig) *StaticRegistry {
	r := &StaticRegistry{tenants: make(map[string]map[string]model.ExchangeConfig, len(tenants))}
	for tenantID, exchanges := range tenants {
		for _, e := range exchanges {
			r.upsertLocked(tenantID, e)
		}
	}
	return r
}

func (r *StaticRegistry) upsertLocked(tenantID string, e model.ExchangeConfig) {
	byID, ok := r.tenants[tenantID]
	if !ok {
		byID = make(map[string]model.ExchangeConfig)
		r.tenants[tenantID] = byID
	}
	if e.Status == "" {
		e.Status = model.ExchangeActive
	}
	byID[e.ExchangeID] = e
}

// Upsert adds or replaces an exchange for a tenant.
func (r *StaticRegistry) Upsert(tenantID string, e model.ExchangeConfig) {
	r.mu.Lock()
	r.upsertLocked(tenantID, e)
	r.mu.Unlock()
}

// SetStatus changes the status of a configured exchange.
func (r *StaticRegistry) SetStatus(tenantID, exchangeID string, status model.ExchangeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tenants[tenantID][exchangeID]
	if !ok {
		return fmt.Errorf("%s/%s: %w", tenantID, exchangeID, ErrExchangeNotFound)
	}
	e.Status = status
	r.tenants[tenantID][exchangeID] = e
	return nil
}

// Tenants returns the configured tenant ids, sorted.
func (r *StaticRegistry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AvailableExchanges implements Registry.
func (r *StaticRegistry) AvailableExchanges(_ context.Context, tenantID string) ([]model.ExchangeConfig, error) {
	r.mu.RLock()
	all := make([]model.ExchangeConfig, 0, len(r.tenants[tenantID]))
	for _, e := range r.tenants[tenantID] {
		all = append(all, e)
	}
	r.mu.RUnlock()

	return activeOnly(all), nil
}

// IsExchangeAvailable implements Registry.
func (r *StaticRegistry) IsExchangeAvailable(_ context.Context, tenantID, exchangeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tenants[tenantID][exchangeID]
	return ok && e.IsActive(), nil
}

// Exchange implements Registry.
func (r *StaticRegistry) Exchange(_ context.Context, tenantID, exchangeID string) (model.ExchangeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tenants[tenantID][exchangeID]
	if !ok {
		return model.ExchangeConfig{}, fmt.Errorf("%s/%s: %w", tenantID, exchangeID, ErrExchangeNotFound)
	}
	return e, nil
}
