package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/venue-gateway/internal/alert"
)

// Manager owns connection pools, their quality metrics and their shutdown.
type Manager interface {
	// Start launches the periodic health sweep.
	Start(ctx context.Context) error

	// Stop halts the health sweep. Pools are left open; use ShutdownAll.
	Stop(ctx context.Context) error

	// CreateConnection opens a new connection in the (tenant, exchange) pool.
	CreateConnection(ctx context.Context, tenantID, exchangeID string, t ConnectionType, endpoint string) (Snapshot, error)

	// GetConnection returns a pooled connection of type t, creating one only
	// if none of that type exists.
	GetConnection(ctx context.Context, tenantID, exchangeID string, t ConnectionType) (Snapshot, error)

	// CloseConnection closes and removes one connection.
	CloseConnection(ctx context.Context, connectionID string) error

	Connection(connectionID string) (Snapshot, error)

	// Send writes payload on the connection's transport and counts it as a
	// sent message. Logical connections return ErrSendUnsupported.
	Send(connectionID string, payload []byte) error

	GetConnectionMetrics(connectionID string) (Metrics, error)

	// Metric recording. Unknown ids are ignored.
	RecordSuccess(connectionID string, latencyMs float64)
	RecordError(connectionID string, message string)
	RecordReconnection(connectionID string)
	MarkReconnected(connectionID string)
	MarkDisconnected(connectionID string, reason string)

	// UpdateConnectionMetrics merges u and evaluates quality thresholds.
	UpdateConnectionMetrics(connectionID string, u MetricsUpdate) error

	SetQualityConfig(exchangeID string, cfg QualityConfig)
	SetTenantQualityConfig(tenantID, exchangeID string, cfg QualityConfig)
	QualityConfig(tenantID, exchangeID string) QualityConfig

	// MonitorHealth evaluates every connection in the pool and pauses
	// trading when configured to and any connection is degraded.
	MonitorHealth(tenantID, exchangeID string) HealthReport
	IsTradingPaused(tenantID, exchangeID string) bool
	ResumeTrading(tenantID, exchangeID string) bool
	PausedPairs() []string

	// RegisterInFlightRequest tracks a unit of work that graceful shutdown waits for.
	RegisterInFlightRequest(connectionID string) (*InFlight, error)

	// GracefulShutdown drains and closes one pool. A negative timeout uses
	// the configured default; zero cancels in-flight work immediately.
	GracefulShutdown(ctx context.Context, tenantID, exchangeID string, timeout time.Duration) (ShutdownResult, error)

	// ShutdownAll drains every pool concurrently.
	ShutdownAll(ctx context.Context, timeout time.Duration) []ShutdownResult

	PoolStats(tenantID, exchangeID string) (PoolStats, bool)
	Stats() ManagerStats
}

// Option configures a Manager.
type Option func(*manager)

// WithObserver reports pool size, shutdown and pause changes to o.
func WithObserver(o PoolObserver) Option {
	return func(m *manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *manager) { m.now = now }
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *manager) { m.newID = gen }
}

// manager implements the Manager interface.
type manager struct {
	cfg      Config
	dialer   Dialer
	monitor  *QualityMonitor
	observer PoolObserver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu    sync.RWMutex
	pools map[poolKey]*pool
	index map[string]*record

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Connection Manager. A nil dialer opens logical
// connections only; a nil emitter discards alerts.
func NewManager(cfg Config, dialer Dialer, emitter alert.Emitter, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if dialer == nil {
		dialer = NopDialer{}
	}
	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = DefaultConfig().MaxConnections
	}
	if cfg.LatencyWindow < 1 {
		cfg.LatencyWindow = DefaultConfig().LatencyWindow
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	m := &manager{
		cfg:      cfg,
		dialer:   dialer,
		observer: nopObserver{},
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		pools:    make(map[poolKey]*pool),
		index:    make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.monitor = NewQualityMonitor(cfg.DefaultQuality, emitter, logger)
	m.monitor.observer = m.observer
	m.monitor.now = m.now
	return m
}

// Start begins the periodic health sweep.
func (m *manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	if m.cfg.HealthCheckInterval > 0 {
		m.wg.Add(1)
		go m.healthLoop(ctx)
	}

	m.logger.Info("connection manager started",
		"max_per_pool", m.cfg.MaxConnections,
		"health_check_interval", m.cfg.HealthCheckInterval,
	)
	return nil
}

// Stop halts the health sweep.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, health sweep still running")
		return ctx.Err()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

func (m *manager) healthLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, key := range m.poolKeys() {
				report := m.MonitorHealth(key.tenantID, key.exchangeID)
				if !report.Healthy {
					m.logger.Warn("pool degraded",
						"tenant", key.tenantID,
						"exchange", key.exchangeID,
						"paused", report.TradingPaused,
					)
				}
			}
		}
	}
}

func (m *manager) poolKeys() []poolKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]poolKey, 0, len(m.pools))
	for k := range m.pools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tenantID != keys[j].tenantID {
			return keys[i].tenantID < keys[j].tenantID
		}
		return keys[i].exchangeID < keys[j].exchangeID
	})
	return keys
}

// acquirePool returns the live pool for key, creating it if absent.
// The returned pool is locked and not retired.
func (m *manager) acquirePool(key poolKey) *pool {
	for {
		m.mu.Lock()
		p, ok := m.pools[key]
		if !ok {
			p = newPool(key)
			m.pools[key] = p
		}
		m.mu.Unlock()

		p.mu.Lock()
		if !p.retired {
			return p
		}
		p.mu.Unlock()

		m.mu.Lock()
		if m.pools[key] == p {
			delete(m.pools, key)
		}
		m.mu.Unlock()
	}
}

func (m *manager) existingPool(key poolKey) *pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[key]
}

func (m *manager) record(connectionID string) *record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index[connectionID]
}

// CreateConnection implements Manager.
func (m *manager) CreateConnection(ctx context.Context, tenantID, exchangeID string, t ConnectionType, endpoint string) (Snapshot, error) {
	if !t.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidConnectionType, t)
	}

	p := m.acquirePool(poolKey{tenantID, exchangeID})
	err := p.reserveLocked(m.cfg.MaxConnections)
	p.mu.Unlock()
	if err != nil {
		m.logger.Debug("create connection rejected",
			"tenant", tenantID,
			"exchange", exchangeID,
			"error", err,
		)
		return Snapshot{}, err
	}

	return m.open(ctx, p, t, endpoint)
}

// GetConnection implements Manager.
func (m *manager) GetConnection(ctx context.Context, tenantID, exchangeID string, t ConnectionType) (Snapshot, error) {
	if !t.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidConnectionType, t)
	}

	key := poolKey{tenantID, exchangeID}
	for {
		p := m.acquirePool(key)

		if p.shuttingDown {
			p.mu.Unlock()
			return Snapshot{}, p.shuttingDownError()
		}
		if r := p.findLocked(t); r != nil {
			p.mu.Unlock()
			return r.snapshot(m.now()), nil
		}

		// Another caller is opening this type; wait and re-check so the
		// pool never holds two connections of a type through this path.
		if wait, ok := p.dialing[t]; ok {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return Snapshot{}, ctx.Err()
			}
		}

		if err := p.reserveLocked(m.cfg.MaxConnections); err != nil {
			p.mu.Unlock()
			return Snapshot{}, err
		}
		wait := make(chan struct{})
		p.dialing[t] = wait
		p.mu.Unlock()

		snap, err := m.open(ctx, p, t, "")

		p.mu.Lock()
		delete(p.dialing, t)
		close(wait)
		p.mu.Unlock()

		return snap, err
	}
}

// open dials outside the pool lock and commits the reserved slot.
func (m *manager) open(ctx context.Context, p *pool, t ConnectionType, endpoint string) (Snapshot, error) {
	r := newRecord(m.newID(), p, t, endpoint, m.now(), m.cfg.LatencyWindow)

	transport, err := m.dialer.Dial(ctx, DialRequest{
		TenantID:   p.tenantID,
		ExchangeID: p.exchangeID,
		Type:       t,
		Endpoint:   endpoint,
	})
	if err != nil {
		p.release()
		m.logger.Warn("connection dial failed",
			"tenant", p.tenantID,
			"exchange", p.exchangeID,
			"type", t,
			"error", err,
		)
		return Snapshot{}, fmt.Errorf("dial %s connection to %s: %w", t, p.exchangeID, err)
	}
	r.transport = transport
	r.setStatus(StatusConnected)

	// Index before commit so the id resolves as soon as it is visible in the pool.
	m.mu.Lock()
	m.index[r.id] = r
	m.mu.Unlock()

	size, err := p.commit(r)
	if err != nil {
		m.unindex(r.id)
		if cerr := transport.Close(); cerr != nil {
			m.logger.Debug("close after aborted create failed", "error", cerr)
		}
		return Snapshot{}, err
	}

	if mt, ok := transport.(monitoredTransport); ok {
		go m.watch(r, mt)
	}

	m.observer.PoolSizeChanged(p.tenantID, p.exchangeID, size)
	m.logger.Info("connection created",
		"tenant", p.tenantID,
		"exchange", p.exchangeID,
		"connection", r.id,
		"type", t,
		"pool_size", size,
	)
	return r.snapshot(m.now()), nil
}

func (m *manager) unindex(id string) {
	m.mu.Lock()
	delete(m.index, id)
	m.mu.Unlock()
}

// watch marks r disconnected when its transport reports a failure.
func (m *manager) watch(r *record, mt monitoredTransport) {
	select {
	case err := <-mt.Errors():
		if err != nil {
			m.MarkDisconnected(r.id, err.Error())
		}
	case <-mt.Done():
	}
}

// CloseConnection implements Manager.
func (m *manager) CloseConnection(ctx context.Context, connectionID string) error {
	r := m.record(connectionID)
	if r == nil {
		return notFound(connectionID)
	}

	size, ok := r.pool.remove(r)
	m.unindex(connectionID)
	if !ok {
		return notFound(connectionID)
	}

	r.setStatus(StatusDisconnected)
	if err := r.transport.Close(); err != nil {
		m.logger.Warn("connection close failed", "connection", connectionID, "error", err)
	}

	m.observer.PoolSizeChanged(r.tenantID, r.exchangeID, size)
	m.logger.Info("connection closed",
		"tenant", r.tenantID,
		"exchange", r.exchangeID,
		"connection", connectionID,
		"pool_size", size,
	)
	return nil
}

// Connection implements Manager.
func (m *manager) Connection(connectionID string) (Snapshot, error) {
	r := m.record(connectionID)
	if r == nil {
		return Snapshot{}, notFound(connectionID)
	}
	return r.snapshot(m.now()), nil
}

// Send implements Manager.
func (m *manager) Send(connectionID string, payload []byte) error {
	r := m.record(connectionID)
	if r == nil {
		return notFound(connectionID)
	}
	s, ok := r.transport.(Sender)
	if !ok {
		return fmt.Errorf("%w: %s (%s)", ErrSendUnsupported, connectionID, r.connType)
	}

	if err := s.Send(payload); err != nil {
		r.recordError(err.Error(), m.now().UTC())
		m.monitor.evaluate(r.snapshot(m.now()))
		return fmt.Errorf("send on %s: %w", connectionID, err)
	}
	r.recordSent()
	return nil
}

// GetConnectionMetrics implements Manager.
func (m *manager) GetConnectionMetrics(connectionID string) (Metrics, error) {
	s, err := m.Connection(connectionID)
	if err != nil {
		return Metrics{}, err
	}
	return s.Metrics, nil
}

func (m *manager) RecordSuccess(connectionID string, latencyMs float64) {
	r := m.record(connectionID)
	if r == nil {
		return
	}
	r.recordSuccess(latencyMs)
	m.monitor.evaluate(r.snapshot(m.now()))
}

func (m *manager) RecordError(connectionID string, message string) {
	r := m.record(connectionID)
	if r == nil {
		return
	}
	r.recordError(message, m.now().UTC())
	m.monitor.evaluate(r.snapshot(m.now()))
}

func (m *manager) RecordReconnection(connectionID string) {
	r := m.record(connectionID)
	if r == nil {
		return
	}
	r.recordReconnection()
	m.logger.Info("connection reconnecting", "connection", connectionID, "exchange", r.exchangeID)
}

func (m *manager) MarkReconnected(connectionID string) {
	if r := m.record(connectionID); r != nil {
		r.setStatus(StatusConnected)
	}
}

func (m *manager) MarkDisconnected(connectionID string, reason string) {
	r := m.record(connectionID)
	if r == nil {
		return
	}
	if reason == "" {
		r.setStatus(StatusDisconnected)
		return
	}
	r.fail(reason, m.now().UTC())
	m.logger.Warn("connection failed",
		"tenant", r.tenantID,
		"exchange", r.exchangeID,
		"connection", connectionID,
		"reason", reason,
	)
}

// UpdateConnectionMetrics implements Manager.
func (m *manager) UpdateConnectionMetrics(connectionID string, u MetricsUpdate) error {
	r := m.record(connectionID)
	if r == nil {
		return notFound(connectionID)
	}
	r.apply(u, m.now().UTC())
	m.monitor.evaluate(r.snapshot(m.now()))
	return nil
}

func (m *manager) SetQualityConfig(exchangeID string, cfg QualityConfig) {
	m.monitor.SetQualityConfig(exchangeID, cfg)
}

func (m *manager) SetTenantQualityConfig(tenantID, exchangeID string, cfg QualityConfig) {
	m.monitor.SetTenantQualityConfig(tenantID, exchangeID, cfg)
}

func (m *manager) QualityConfig(tenantID, exchangeID string) QualityConfig {
	return m.monitor.QualityConfig(tenantID, exchangeID)
}

// MonitorHealth implements Manager.
func (m *manager) MonitorHealth(tenantID, exchangeID string) HealthReport {
	now := m.now()
	report := HealthReport{
		TenantID:   tenantID,
		ExchangeID: exchangeID,
		Healthy:    true,
		CheckedAt:  now.UTC(),
	}

	var records []*record
	if p := m.existingPool(poolKey{tenantID, exchangeID}); p != nil {
		records = p.records()
	}

	for _, r := range records {
		s := r.snapshot(now)
		reasons := m.monitor.evaluate(s)
		report.Connections = append(report.Connections, ConnectionHealth{
			ConnectionID: s.ConnectionID,
			Type:         s.Type,
			Status:       s.Status,
			LatencyMs:    s.Metrics.LatencyMs,
			ErrorRate:    s.Metrics.ErrorRate,
			Degraded:     len(reasons) > 0,
			Reasons:      reasons,
		})
		if len(reasons) > 0 {
			report.Healthy = false
		}
	}

	if !report.Healthy && m.monitor.QualityConfig(tenantID, exchangeID).PauseTradingOnDegraded {
		m.monitor.pause(tenantID, exchangeID, "connection quality degraded")
	}
	report.TradingPaused = m.monitor.IsTradingPaused(tenantID, exchangeID)
	return report
}

func (m *manager) IsTradingPaused(tenantID, exchangeID string) bool {
	return m.monitor.IsTradingPaused(tenantID, exchangeID)
}

func (m *manager) ResumeTrading(tenantID, exchangeID string) bool {
	return m.monitor.ResumeTrading(tenantID, exchangeID)
}

func (m *manager) PausedPairs() []string {
	return m.monitor.PausedPairs()
}

// PoolStats implements Manager.
func (m *manager) PoolStats(tenantID, exchangeID string) (PoolStats, bool) {
	p := m.existingPool(poolKey{tenantID, exchangeID})
	if p == nil {
		return PoolStats{}, false
	}
	return p.stats(m.cfg.MaxConnections), true
}

// Stats implements Manager.
func (m *manager) Stats() ManagerStats {
	var stats ManagerStats
	for _, key := range m.poolKeys() {
		ps, ok := m.PoolStats(key.tenantID, key.exchangeID)
		if !ok {
			continue
		}
		stats.Pools = append(stats.Pools, ps)
		stats.ConnectionCount += ps.Connections
	}
	stats.PoolCount = len(stats.Pools)
	stats.PausedPairs = len(m.monitor.PausedPairs())
	return stats
}
