package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// InFlight is a pending unit of work registered against a connection.
type InFlight struct {
	ConnectionID string

	pool *pool
	once sync.Once
}

// Complete reports the work finished. Calls after the first are no-ops.
func (f *InFlight) Complete() {
	f.once.Do(f.pool.completeInFlight)
}

// RegisterInFlightRequest implements Manager.
func (m *manager) RegisterInFlightRequest(connectionID string) (*InFlight, error) {
	r := m.record(connectionID)
	if r == nil {
		return nil, notFound(connectionID)
	}

	p := r.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	// Same lock as the shutdown flag: a registration either lands before
	// shutdown counts outstanding work or is rejected.
	if p.shuttingDown {
		return nil, p.shuttingDownError()
	}
	present := false
	for _, c := range p.conns {
		if c == r {
			present = true
			break
		}
	}
	if !present {
		return nil, notFound(connectionID)
	}

	p.inflight++
	return &InFlight{ConnectionID: connectionID, pool: p}, nil
}

// GracefulShutdown implements Manager.
func (m *manager) GracefulShutdown(ctx context.Context, tenantID, exchangeID string, timeout time.Duration) (ShutdownResult, error) {
	start := time.Now()
	key := poolKey{tenantID, exchangeID}
	result := ShutdownResult{TenantID: tenantID, ExchangeID: exchangeID}

	p := m.existingPool(key)
	if p == nil {
		return result, nil
	}
	if timeout < 0 {
		timeout = m.cfg.ShutdownTimeout
	}

	p.mu.Lock()
	if p.shuttingDown || p.retired {
		p.mu.Unlock()
		return result, p.shuttingDownError()
	}
	p.shuttingDown = true
	result.ConnectionsClosedCount = len(p.conns)
	outstanding := p.inflight
	var drained chan struct{}
	if outstanding > 0 {
		drained = make(chan struct{})
		p.drained = drained
	}
	p.mu.Unlock()

	m.logger.Info("pool shutdown started",
		"tenant", tenantID,
		"exchange", exchangeID,
		"connections", result.ConnectionsClosedCount,
		"in_flight", outstanding,
		"timeout", timeout,
	)

	// A zero timeout cancels outstanding work without waiting.
	if drained != nil && timeout > 0 {
		timer := time.NewTimer(timeout)
		select {
		case <-drained:
		case <-timer.C:
			m.logger.Warn("pool shutdown timeout, cancelling in-flight requests",
				"tenant", tenantID,
				"exchange", exchangeID,
			)
		case <-ctx.Done():
			m.logger.Warn("pool shutdown interrupted, cancelling in-flight requests",
				"tenant", tenantID,
				"exchange", exchangeID,
				"error", ctx.Err(),
			)
		}
		timer.Stop()
	}

	p.mu.Lock()
	remaining := p.inflight
	p.drained = nil
	conns := p.conns
	p.conns = nil
	p.retired = true
	p.mu.Unlock()

	if remaining > outstanding {
		remaining = outstanding
	}
	result.PendingRequestsCompleted = outstanding - remaining
	result.PendingRequestsCancelled = remaining

	for _, r := range conns {
		r.setStatus(StatusDisconnected)
		if err := r.transport.Close(); err != nil {
			m.logger.Debug("connection close failed", "connection", r.id, "error", err)
		}
	}

	m.mu.Lock()
	for _, r := range conns {
		delete(m.index, r.id)
	}
	if m.pools[key] == p {
		delete(m.pools, key)
	}
	m.mu.Unlock()

	result.ShutdownTimeMs = time.Since(start).Milliseconds()

	m.observer.PoolSizeChanged(tenantID, exchangeID, 0)
	m.observer.PoolShutdown(result)
	m.logger.Info("pool shutdown complete",
		"tenant", tenantID,
		"exchange", exchangeID,
		"closed", result.ConnectionsClosedCount,
		"completed", result.PendingRequestsCompleted,
		"cancelled", result.PendingRequestsCancelled,
		"duration_ms", result.ShutdownTimeMs,
	)
	return result, nil
}

// ShutdownAll implements Manager.
func (m *manager) ShutdownAll(ctx context.Context, timeout time.Duration) []ShutdownResult {
	keys := m.poolKeys()
	results := make([]ShutdownResult, len(keys))

	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			res, err := m.GracefulShutdown(ctx, key.tenantID, key.exchangeID, timeout)
			if err != nil {
				// Already draining elsewhere.
				m.logger.Debug("pool shutdown skipped", "tenant", key.tenantID, "exchange", key.exchangeID, "error", err)
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TenantID != results[j].TenantID {
			return results[i].TenantID < results[j].TenantID
		}
		return results[i].ExchangeID < results[j].ExchangeID
	})
	return results
}
