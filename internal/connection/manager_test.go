package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/venue-gateway/internal/alert"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *alertRecorder) Emit(a alert.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *alertRecorder) ofType(t alert.Type) []alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []alert.Alert
	for _, a := range r.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type countingTransport struct {
	closes *atomic.Int32
}

func (t countingTransport) Close() error {
	t.closes.Add(1)
	return nil
}

type observerRecorder struct {
	mu        sync.Mutex
	sizes     []int
	shutdowns []ShutdownResult
	pauses    []bool
}

func (o *observerRecorder) PoolSizeChanged(_, _ string, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sizes = append(o.sizes, size)
}

func (o *observerRecorder) PoolShutdown(r ShutdownResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shutdowns = append(o.shutdowns, r)
}

func (o *observerRecorder) TradingPauseChanged(_, _ string, paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pauses = append(o.pauses, paused)
}

func newTestManager(t *testing.T, maxConns int, opts ...Option) (Manager, *alertRecorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxConnections = maxConns
	cfg.HealthCheckInterval = 0
	rec := &alertRecorder{}
	return NewManager(cfg, nil, rec, nil, opts...), rec
}

func ptr[T any](v T) *T { return &v }

func TestManager_PoolBound(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 3)

	for i := 0; i < 3; i++ {
		_, err := m.CreateConnection(ctx, "tenant-a", "binance", TypeREST, "")
		require.NoError(t, err)
	}

	_, err := m.CreateConnection(ctx, "tenant-a", "binance", TypeREST, "")
	require.ErrorIs(t, err, ErrPoolExhausted)

	var exhausted *PoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.MaxConnections)
	assert.Equal(t, "tenant-a", exhausted.TenantID)

	stats, ok := m.PoolStats("tenant-a", "binance")
	require.True(t, ok)
	assert.Equal(t, 3, stats.Connections)
	assert.Equal(t, 0, stats.Reserved)
}

func TestManager_ConcurrentCreateNeverExceedsBound(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 5)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		exhausted atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateConnection(ctx, "t", "kraken", TypeWebSocket, "")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrPoolExhausted):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, successes.Load())
	assert.EqualValues(t, 45, exhausted.Load())
	stats, _ := m.PoolStats("t", "kraken")
	assert.Equal(t, 5, stats.Connections)
}

func TestManager_GetConnectionReusesSameType(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 5)

	created, err := m.CreateConnection(ctx, "t", "binance", TypeWebSocket, "")
	require.NoError(t, err)

	got, err := m.GetConnection(ctx, "t", "binance", TypeWebSocket)
	require.NoError(t, err)
	assert.Equal(t, created.ConnectionID, got.ConnectionID)

	stats, _ := m.PoolStats("t", "binance")
	assert.Equal(t, 1, stats.Connections)

	rest, err := m.GetConnection(ctx, "t", "binance", TypeREST)
	require.NoError(t, err)
	assert.NotEqual(t, created.ConnectionID, rest.ConnectionID)

	stats, _ = m.PoolStats("t", "binance")
	assert.Equal(t, 2, stats.Connections)
}

func TestManager_GetConnectionPrefersConnected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 5)

	first, err := m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)
	second, err := m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)

	m.MarkDisconnected(first.ConnectionID, "")

	got, err := m.GetConnection(ctx, "t", "binance", TypeREST)
	require.NoError(t, err)
	assert.Equal(t, second.ConnectionID, got.ConnectionID)

	m.MarkDisconnected(second.ConnectionID, "")
	got, err = m.GetConnection(ctx, "t", "binance", TypeREST)
	require.NoError(t, err)
	assert.Equal(t, first.ConnectionID, got.ConnectionID, "falls back to first record of the type")
}

func TestManager_ConcurrentGetConnectionCreatesOnce(t *testing.T) {
	ctx := context.Background()
	var dials atomic.Int32
	dialer := DialerFunc(func(ctx context.Context, req DialRequest) (Transport, error) {
		dials.Add(1)
		time.Sleep(20 * time.Millisecond)
		return nopTransport{}, nil
	})
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0
	m := NewManager(cfg, dialer, nil, nil)

	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.GetConnection(ctx, "t", "okx", TypeWebSocket)
			if err == nil {
				ids[i] = s.ConnectionID
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, dials.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestManager_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 5)

	a, err := m.CreateConnection(ctx, "tenant-a", "binance", TypeREST, "")
	require.NoError(t, err)
	b, err := m.CreateConnection(ctx, "tenant-b", "binance", TypeREST, "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ConnectionID, b.ConnectionID)
	assert.Equal(t, "tenant-a", a.TenantID)
	assert.Equal(t, "tenant-b", b.TenantID)

	sa, _ := m.PoolStats("tenant-a", "binance")
	sb, _ := m.PoolStats("tenant-b", "binance")
	assert.Equal(t, 1, sa.Connections)
	assert.Equal(t, 1, sb.Connections)
	assert.Equal(t, 2, m.Stats().PoolCount)
}

func TestManager_MetricsPresentAfterCreate(t *testing.T) {
	m, _ := newTestManager(t, 5)

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeFIX, "fix://example")
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, s.Status)
	assert.Equal(t, "fix://example", s.Endpoint)

	metrics, err := m.GetConnectionMetrics(s.ConnectionID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, metrics.UptimeMs, int64(0))
	assert.Zero(t, metrics.LatencyMs)
	assert.Zero(t, metrics.LatencyP95Ms)
	assert.Zero(t, metrics.ErrorRate)
	assert.Zero(t, metrics.ReconnectionCount)
	assert.Zero(t, metrics.MessagesSent)
	assert.Zero(t, metrics.MessagesReceived)
}

func TestManager_InvalidType(t *testing.T) {
	m, _ := newTestManager(t, 5)
	_, err := m.CreateConnection(context.Background(), "t", "x", ConnectionType("GRPC"), "")
	assert.ErrorIs(t, err, ErrInvalidConnectionType)
}

func TestManager_UnknownConnection(t *testing.T) {
	m, _ := newTestManager(t, 5)

	_, err := m.GetConnectionMetrics("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	_, err = m.Connection("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.ErrorIs(t, m.UpdateConnectionMetrics("missing", MetricsUpdate{}), ErrConnectionNotFound)
	assert.ErrorIs(t, m.CloseConnection(context.Background(), "missing"), ErrConnectionNotFound)
	_, err = m.RegisterInFlightRequest("missing")
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	assert.NotPanics(t, func() {
		m.RecordSuccess("missing", 10)
		m.RecordError("missing", "boom")
		m.RecordReconnection("missing")
		m.MarkReconnected("missing")
		m.MarkDisconnected("missing", "gone")
	})
}

func TestManager_RecordSuccessAndError(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, 5, WithClock(func() time.Time { return at }))

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	m.RecordSuccess(s.ConnectionID, 20)
	m.RecordSuccess(s.ConnectionID, 30)
	m.RecordSuccess(s.ConnectionID, 25)
	m.RecordError(s.ConnectionID, "timeout")

	metrics, err := m.GetConnectionMetrics(s.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, metrics.LatencyMs)
	assert.InDelta(t, 0.25, metrics.ErrorRate, 1e-9)
	assert.EqualValues(t, 4, metrics.MessagesSent)
	assert.EqualValues(t, 3, metrics.MessagesReceived)
	assert.Equal(t, "timeout", metrics.LastError)
	assert.Equal(t, at, metrics.LastErrorAt)
}

func TestManager_LatencyP95(t *testing.T) {
	m, _ := newTestManager(t, 5)
	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	for i := 100; i >= 1; i-- {
		m.RecordSuccess(s.ConnectionID, float64(i))
	}

	metrics, _ := m.GetConnectionMetrics(s.ConnectionID)
	assert.Equal(t, 95.0, metrics.LatencyP95Ms)
	assert.Equal(t, 1.0, metrics.LatencyMs)
}

func TestManager_LatencyWindowRolls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LatencyWindow = 4
	cfg.HealthCheckInterval = 0
	m := NewManager(cfg, nil, nil, nil)
	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	for _, v := range []float64{1000, 1000, 1000, 1000, 10, 10, 10, 10} {
		m.RecordSuccess(s.ConnectionID, v)
	}

	metrics, _ := m.GetConnectionMetrics(s.ConnectionID)
	assert.Equal(t, 10.0, metrics.LatencyP95Ms)
}

func TestManager_ReconnectionIsMonotonic(t *testing.T) {
	m, _ := newTestManager(t, 5)
	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeWebSocket, "")
	require.NoError(t, err)

	m.RecordReconnection(s.ConnectionID)
	m.RecordReconnection(s.ConnectionID)

	snap, _ := m.Connection(s.ConnectionID)
	assert.Equal(t, StatusReconnecting, snap.Status)
	assert.EqualValues(t, 2, snap.Metrics.ReconnectionCount)

	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{ReconnectionCount: ptr[int64](1)}))
	m.MarkReconnected(s.ConnectionID)

	snap, _ = m.Connection(s.ConnectionID)
	assert.Equal(t, StatusConnected, snap.Status)
	assert.EqualValues(t, 2, snap.Metrics.ReconnectionCount)
}

func TestManager_MarkDisconnected(t *testing.T) {
	m, _ := newTestManager(t, 5)
	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeWebSocket, "")
	require.NoError(t, err)

	m.MarkDisconnected(s.ConnectionID, "")
	snap, _ := m.Connection(s.ConnectionID)
	assert.Equal(t, StatusDisconnected, snap.Status)

	m.MarkDisconnected(s.ConnectionID, "read: connection reset")
	snap, _ = m.Connection(s.ConnectionID)
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "read: connection reset", snap.Metrics.LastError)
	assert.Zero(t, snap.Metrics.MessagesSent)
}

func TestManager_HighLatencyAlert(t *testing.T) {
	m, rec := newTestManager(t, 5)
	m.SetQualityConfig("binance", QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1})

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{LatencyMs: ptr(150.0)}))

	alerts := rec.ofType(alert.TypeHighLatency)
	require.Len(t, alerts, 1)
	assert.Equal(t, 150.0, alerts[0].Value)
	assert.Equal(t, 100.0, alerts[0].Threshold)
	assert.Equal(t, "binance", alerts[0].ExchangeID)
	assert.Equal(t, s.ConnectionID, alerts[0].ConnectionID)
	assert.Empty(t, rec.ofType(alert.TypeHighErrorRate))

	// No debouncing: crossing again emits again.
	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{LatencyMs: ptr(200.0)}))
	assert.Len(t, rec.ofType(alert.TypeHighLatency), 2)

	// At the threshold is not a breach.
	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{LatencyMs: ptr(100.0)}))
	assert.Len(t, rec.ofType(alert.TypeHighLatency), 2)
}

func TestManager_HighErrorRateAlert(t *testing.T) {
	m, rec := newTestManager(t, 5)
	m.SetQualityConfig("binance", QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1})

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{ErrorRate: ptr(0.3)}))

	alerts := rec.ofType(alert.TypeHighErrorRate)
	require.Len(t, alerts, 1)
	assert.Equal(t, 0.3, alerts[0].Value)
	assert.Equal(t, 0.1, alerts[0].Threshold)
	assert.Empty(t, rec.ofType(alert.TypeHighLatency))
}

func TestManager_ErrorRateIsClamped(t *testing.T) {
	m, _ := newTestManager(t, 5)
	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{ErrorRate: ptr(1.7)}))
	metrics, _ := m.GetConnectionMetrics(s.ConnectionID)
	assert.Equal(t, 1.0, metrics.ErrorRate)

	require.NoError(t, m.UpdateConnectionMetrics(s.ConnectionID, MetricsUpdate{ErrorRate: ptr(-0.2)}))
	metrics, _ = m.GetConnectionMetrics(s.ConnectionID)
	assert.Equal(t, 0.0, metrics.ErrorRate)
}

func TestManager_QualityConfigLookupOrder(t *testing.T) {
	m, _ := newTestManager(t, 5)

	assert.Equal(t, DefaultQualityConfig(), m.QualityConfig("t", "binance"))

	exchangeCfg := QualityConfig{MaxLatencyMs: 500, MaxErrorRate: 0.02}
	m.SetQualityConfig("binance", exchangeCfg)
	assert.Equal(t, exchangeCfg, m.QualityConfig("t", "binance"))

	tenantCfg := QualityConfig{MaxLatencyMs: 200, MaxErrorRate: 0.01, PauseTradingOnDegraded: true}
	m.SetTenantQualityConfig("t", "binance", tenantCfg)
	assert.Equal(t, tenantCfg, m.QualityConfig("t", "binance"))
	assert.Equal(t, exchangeCfg, m.QualityConfig("other", "binance"))
}

func TestManager_MonitorHealthPausesOnce(t *testing.T) {
	obs := &observerRecorder{}
	m, rec := newTestManager(t, 5, WithObserver(obs))
	m.SetQualityConfig("binance", QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1, PauseTradingOnDegraded: true})

	healthy, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)
	slow, err := m.CreateConnection(context.Background(), "t", "binance", TypeWebSocket, "")
	require.NoError(t, err)
	m.RecordSuccess(healthy.ConnectionID, 10)
	m.RecordSuccess(slow.ConnectionID, 500)

	report := m.MonitorHealth("t", "binance")
	assert.False(t, report.Healthy)
	assert.True(t, report.TradingPaused)
	require.Len(t, report.Connections, 2)
	assert.False(t, report.Connections[0].Degraded)
	assert.True(t, report.Connections[1].Degraded)
	assert.NotEmpty(t, report.Connections[1].Reasons)
	assert.True(t, m.IsTradingPaused("t", "binance"))

	m.MonitorHealth("t", "binance")
	paused := rec.ofType(alert.TypeTradingPaused)
	require.Len(t, paused, 1)
	assert.Equal(t, "t", paused[0].TenantID)
	assert.Equal(t, []string{"t/binance"}, m.PausedPairs())

	// Recording never pauses; only MonitorHealth does.
	assert.False(t, m.IsTradingPaused("t", "kraken"))

	assert.True(t, m.ResumeTrading("t", "binance"))
	assert.False(t, m.IsTradingPaused("t", "binance"))
	assert.Len(t, rec.ofType(alert.TypeTradingResumed), 1)
	assert.False(t, m.ResumeTrading("t", "binance"))

	obs.mu.Lock()
	assert.Equal(t, []bool{true, false}, obs.pauses)
	obs.mu.Unlock()
}

func TestManager_MonitorHealthWithoutPauseConfig(t *testing.T) {
	m, rec := newTestManager(t, 5)
	m.SetQualityConfig("binance", QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1})

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)
	m.RecordSuccess(s.ConnectionID, 500)

	report := m.MonitorHealth("t", "binance")
	assert.False(t, report.Healthy)
	assert.False(t, report.TradingPaused)
	assert.Empty(t, rec.ofType(alert.TypeTradingPaused))
}

func TestManager_MonitorHealthUnknownPool(t *testing.T) {
	m, _ := newTestManager(t, 5)
	report := m.MonitorHealth("t", "nowhere")
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Connections)
}

func TestManager_PauseSurvivesPoolShutdown(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 5)
	m.SetQualityConfig("binance", QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1, PauseTradingOnDegraded: true})

	s, err := m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)
	m.RecordSuccess(s.ConnectionID, 500)
	m.MonitorHealth("t", "binance")

	_, err = m.GracefulShutdown(ctx, "t", "binance", time.Second)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)

	assert.True(t, m.IsTradingPaused("t", "binance"))
}

func TestManager_CloseConnectionFreesSlot(t *testing.T) {
	ctx := context.Background()
	var closes atomic.Int32
	dialer := DialerFunc(func(context.Context, DialRequest) (Transport, error) {
		return countingTransport{closes: &closes}, nil
	})
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.HealthCheckInterval = 0
	m := NewManager(cfg, dialer, nil, nil)

	s, err := m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, m.CloseConnection(ctx, s.ConnectionID))
	assert.EqualValues(t, 1, closes.Load())

	_, err = m.Connection(s.ConnectionID)
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	assert.NoError(t, err)
}

func TestManager_DialFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	dialer := DialerFunc(func(context.Context, DialRequest) (Transport, error) {
		if fail.Load() {
			return nil, errors.New("connection refused")
		}
		return nopTransport{}, nil
	})
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.HealthCheckInterval = 0
	m := NewManager(cfg, dialer, nil, nil)

	_, err := m.CreateConnection(ctx, "t", "binance", TypeWebSocket, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	stats, ok := m.PoolStats("t", "binance")
	require.True(t, ok)
	assert.Equal(t, 0, stats.Reserved)
	assert.Equal(t, 0, stats.Connections)

	fail.Store(false)
	_, err = m.CreateConnection(ctx, "t", "binance", TypeWebSocket, "")
	assert.NoError(t, err)
}

func TestManager_ObserverSeesPoolSize(t *testing.T) {
	ctx := context.Background()
	obs := &observerRecorder{}
	m, _ := newTestManager(t, 5, WithObserver(obs))

	_, err := m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, "t", "binance", TypeREST, "")
	require.NoError(t, err)
	_, err = m.GracefulShutdown(ctx, "t", "binance", time.Second)
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []int{1, 2, 0}, obs.sizes)
	require.Len(t, obs.shutdowns, 1)
	assert.Equal(t, 2, obs.shutdowns[0].ConnectionsClosedCount)
}

func TestManager_IDGenerator(t *testing.T) {
	var n atomic.Int32
	m, _ := newTestManager(t, 5, WithIDGenerator(func() string {
		return fmt.Sprintf("conn-%d", n.Add(1))
	}))

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", s.ConnectionID)
}

func TestManager_HealthSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 10 * time.Millisecond
	cfg.DefaultQuality = QualityConfig{MaxLatencyMs: 100, MaxErrorRate: 0.1, PauseTradingOnDegraded: true}
	rec := &alertRecorder{}
	m := NewManager(cfg, nil, rec, nil)

	s, err := m.CreateConnection(context.Background(), "t", "binance", TypeREST, "")
	require.NoError(t, err)
	m.RecordSuccess(s.ConnectionID, 500)
	assert.False(t, m.IsTradingPaused("t", "binance"))

	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return m.IsTradingPaused("t", "binance") }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
}
