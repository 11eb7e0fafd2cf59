package connection

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/venue-gateway/internal/alert"
)

// QualityMonitor holds quality thresholds and per-pair trading pause state.
// Pause state outlives pools: a pool may be shut down and recreated while
// its pair stays paused.
type QualityMonitor struct {
	logger   *slog.Logger
	emitter  alert.Emitter
	observer PoolObserver
	now      func() time.Time

	mu       sync.RWMutex
	defaults QualityConfig
	exchange map[string]QualityConfig
	tenant   map[poolKey]QualityConfig
	paused   map[poolKey]bool
}

// NewQualityMonitor creates a monitor with the given system defaults.
func NewQualityMonitor(defaults QualityConfig, emitter alert.Emitter, logger *slog.Logger) *QualityMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = alert.Discard
	}
	return &QualityMonitor{
		logger:   logger,
		emitter:  emitter,
		observer: nopObserver{},
		now:      time.Now,
		defaults: defaults,
		exchange: make(map[string]QualityConfig),
		tenant:   make(map[poolKey]QualityConfig),
		paused:   make(map[poolKey]bool),
	}
}

// SetQualityConfig sets exchange-scope thresholds. Last write wins.
func (q *QualityMonitor) SetQualityConfig(exchangeID string, cfg QualityConfig) {
	q.mu.Lock()
	q.exchange[exchangeID] = cfg
	q.mu.Unlock()
}

// SetTenantQualityConfig sets thresholds for one tenant on one exchange.
func (q *QualityMonitor) SetTenantQualityConfig(tenantID, exchangeID string, cfg QualityConfig) {
	q.mu.Lock()
	q.tenant[poolKey{tenantID, exchangeID}] = cfg
	q.mu.Unlock()
}

// QualityConfig resolves thresholds: tenant override, then exchange scope,
// then the system default.
func (q *QualityMonitor) QualityConfig(tenantID, exchangeID string) QualityConfig {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if cfg, ok := q.tenant[poolKey{tenantID, exchangeID}]; ok {
		return cfg
	}
	if cfg, ok := q.exchange[exchangeID]; ok {
		return cfg
	}
	return q.defaults
}

// IsTradingPaused reports the pause flag for a pair.
func (q *QualityMonitor) IsTradingPaused(tenantID, exchangeID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.paused[poolKey{tenantID, exchangeID}]
}

// ResumeTrading clears the pause flag. It returns false if the pair was not paused.
func (q *QualityMonitor) ResumeTrading(tenantID, exchangeID string) bool {
	key := poolKey{tenantID, exchangeID}

	q.mu.Lock()
	was := q.paused[key]
	delete(q.paused, key)
	q.mu.Unlock()

	if !was {
		return false
	}

	q.logger.Info("trading resumed", "tenant", tenantID, "exchange", exchangeID)
	q.observer.TradingPauseChanged(tenantID, exchangeID, false)
	q.emitter.Emit(alert.Alert{
		Type:       alert.TypeTradingResumed,
		TenantID:   tenantID,
		ExchangeID: exchangeID,
		Message:    "trading resumed",
		At:         q.now().UTC(),
	})
	return true
}

// PausedPairs returns every paused (tenant, exchange) as "tenant/exchange".
func (q *QualityMonitor) PausedPairs() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]string, 0, len(q.paused))
	for k := range q.paused {
		out = append(out, k.tenantID+"/"+k.exchangeID)
	}
	sort.Strings(out)
	return out
}

// pause sets the flag and emits TRADING_PAUSED on the false to true transition.
func (q *QualityMonitor) pause(tenantID, exchangeID, reason string) {
	key := poolKey{tenantID, exchangeID}

	q.mu.Lock()
	was := q.paused[key]
	q.paused[key] = true
	q.mu.Unlock()

	if was {
		return
	}

	q.logger.Warn("trading paused", "tenant", tenantID, "exchange", exchangeID, "reason", reason)
	q.observer.TradingPauseChanged(tenantID, exchangeID, true)
	q.emitter.Emit(alert.Alert{
		Type:       alert.TypeTradingPaused,
		TenantID:   tenantID,
		ExchangeID: exchangeID,
		Message:    reason,
		At:         q.now().UTC(),
	})
}

// evaluate checks one connection against its thresholds, emitting an alert
// per breached condition. It returns the breach reasons.
func (q *QualityMonitor) evaluate(s Snapshot) []string {
	cfg := q.QualityConfig(s.TenantID, s.ExchangeID)
	at := q.now().UTC()

	var reasons []string
	if s.Metrics.LatencyMs > cfg.MaxLatencyMs {
		reasons = append(reasons, fmt.Sprintf("latency %.0fms exceeds %.0fms", s.Metrics.LatencyMs, cfg.MaxLatencyMs))
		q.emitter.Emit(alert.Alert{
			Type:         alert.TypeHighLatency,
			TenantID:     s.TenantID,
			ExchangeID:   s.ExchangeID,
			ConnectionID: s.ConnectionID,
			Value:        s.Metrics.LatencyMs,
			Threshold:    cfg.MaxLatencyMs,
			At:           at,
		})
	}
	if s.Metrics.ErrorRate > cfg.MaxErrorRate {
		reasons = append(reasons, fmt.Sprintf("error rate %.4f exceeds %.4f", s.Metrics.ErrorRate, cfg.MaxErrorRate))
		q.emitter.Emit(alert.Alert{
			Type:         alert.TypeHighErrorRate,
			TenantID:     s.TenantID,
			ExchangeID:   s.ExchangeID,
			ConnectionID: s.ConnectionID,
			Value:        s.Metrics.ErrorRate,
			Threshold:    cfg.MaxErrorRate,
			At:           at,
		})
	}

	if len(reasons) > 0 {
		q.logger.Debug("connection degraded",
			"tenant", s.TenantID,
			"exchange", s.ExchangeID,
			"connection", s.ConnectionID,
			"reasons", reasons,
		)
	}
	return reasons
}
