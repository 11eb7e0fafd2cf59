package connection

import "sync"

type poolKey struct {
	tenantID   string
	exchangeID string
}

// pool is the bounded set of connections for one (tenant, exchange).
// len(conns) + reserved never exceeds the manager's MaxConnections.
type pool struct {
	tenantID   string
	exchangeID string

	mu           sync.Mutex
	conns        []*record
	reserved     int
	dialing      map[ConnectionType]chan struct{}
	shuttingDown bool
	retired      bool // removed from the manager; callers must look up a fresh pool

	inflight int
	drained  chan struct{} // closed when inflight reaches zero during shutdown
}

func newPool(key poolKey) *pool {
	return &pool{
		tenantID:   key.tenantID,
		exchangeID: key.exchangeID,
		dialing:    make(map[ConnectionType]chan struct{}),
	}
}

func (p *pool) key() poolKey {
	return poolKey{tenantID: p.tenantID, exchangeID: p.exchangeID}
}

func (p *pool) shuttingDownError() error {
	return &ShuttingDownError{TenantID: p.tenantID, ExchangeID: p.exchangeID}
}

// reserveLocked claims a slot for a dial in progress. Caller holds mu.
func (p *pool) reserveLocked(max int) error {
	if p.shuttingDown {
		return p.shuttingDownError()
	}
	if len(p.conns)+p.reserved >= max {
		return &PoolExhaustedError{TenantID: p.tenantID, ExchangeID: p.exchangeID, MaxConnections: max}
	}
	p.reserved++
	return nil
}

// commit turns a reservation into a pooled record. It fails if shutdown
// began while the dial was in flight; the reservation is released either way.
func (p *pool) commit(r *record) (size int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reserved--
	if p.shuttingDown {
		return len(p.conns), p.shuttingDownError()
	}
	p.conns = append(p.conns, r)
	return len(p.conns), nil
}

func (p *pool) release() {
	p.mu.Lock()
	p.reserved--
	p.mu.Unlock()
}

// findLocked returns a connection of type t, preferring a CONNECTED one.
// Caller holds mu.
func (p *pool) findLocked(t ConnectionType) *record {
	var fallback *record
	for _, r := range p.conns {
		if r.connType != t {
			continue
		}
		if r.currentStatus() == StatusConnected {
			return r
		}
		if fallback == nil {
			fallback = r
		}
	}
	return fallback
}

// remove drops r from the pool and reports whether it was present.
func (p *pool) remove(r *record) (size int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.conns {
		if c == r {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return len(p.conns), true
		}
	}
	return len(p.conns), false
}

func (p *pool) completeInFlight() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight > 0 {
		p.inflight--
	}
	if p.inflight == 0 && p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}

func (p *pool) stats(max int) PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	connected := 0
	for _, r := range p.conns {
		if r.currentStatus() == StatusConnected {
			connected++
		}
	}
	return PoolStats{
		TenantID:       p.tenantID,
		ExchangeID:     p.exchangeID,
		Connections:    len(p.conns),
		Connected:      connected,
		Reserved:       p.reserved,
		InFlight:       p.inflight,
		MaxConnections: max,
		ShuttingDown:   p.shuttingDown,
	}
}

func (p *pool) records() []*record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*record, len(p.conns))
	copy(out, p.conns)
	return out
}
