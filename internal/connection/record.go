package connection

import (
	"math"
	"slices"
	"sync"
	"time"
)

// record is a pooled logical connection. Identity fields are immutable;
// everything below mu is guarded by it.
type record struct {
	id         string
	tenantID   string
	exchangeID string
	connType   ConnectionType
	endpoint   string
	createdAt  time.Time
	pool       *pool
	transport  Transport

	mu                sync.Mutex
	status            Status
	latencyMs         float64
	latencyP95Ms      float64
	window            []float64 // ring of recent latency samples
	windowNext        int
	errorRate         float64
	successes         int64
	errors            int64
	reconnectionCount int64
	messagesSent      int64
	messagesReceived  int64
	lastError         string
	lastErrorAt       time.Time
}

func newRecord(id string, p *pool, connType ConnectionType, endpoint string, now time.Time, windowSize int) *record {
	if windowSize < 1 {
		windowSize = 1
	}
	return &record{
		id:         id,
		tenantID:   p.tenantID,
		exchangeID: p.exchangeID,
		connType:   connType,
		endpoint:   endpoint,
		createdAt:  now,
		pool:       p,
		status:     StatusConnecting,
		window:     make([]float64, 0, windowSize),
	}
}

func (r *record) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *record) currentStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *record) recordSuccess(latencyMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observeLatency(latencyMs)
	r.successes++
	r.messagesSent++
	r.messagesReceived++
	r.recomputeErrorRate()
}

func (r *record) recordError(message string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors++
	r.messagesSent++
	r.lastError = message
	r.lastErrorAt = at
	r.recomputeErrorRate()
}

func (r *record) recordSent() {
	r.mu.Lock()
	r.messagesSent++
	r.mu.Unlock()
}

// fail moves the record to ERROR without touching message counters.
func (r *record) fail(reason string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = StatusError
	r.lastError = reason
	r.lastErrorAt = at
}

func (r *record) recordReconnection() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconnectionCount++
	r.status = StatusReconnecting
}

func (r *record) apply(u MetricsUpdate, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.LatencyMs != nil {
		r.observeLatency(*u.LatencyMs)
	}
	if u.LatencyP95Ms != nil {
		r.latencyP95Ms = math.Max(0, *u.LatencyP95Ms)
	}
	if u.ErrorRate != nil {
		r.errorRate = clamp01(*u.ErrorRate)
	}
	if u.ReconnectionCount != nil && *u.ReconnectionCount > r.reconnectionCount {
		r.reconnectionCount = *u.ReconnectionCount
	}
	if u.MessagesSent != nil {
		r.messagesSent = *u.MessagesSent
	}
	if u.MessagesReceived != nil {
		r.messagesReceived = *u.MessagesReceived
	}
	if u.LastError != nil {
		r.lastError = *u.LastError
		r.lastErrorAt = now
	}
}

// observeLatency records the latest sample and refreshes the P95. Caller holds mu.
func (r *record) observeLatency(latencyMs float64) {
	if latencyMs < 0 {
		latencyMs = 0
	}
	r.latencyMs = latencyMs

	if len(r.window) < cap(r.window) {
		r.window = append(r.window, latencyMs)
	} else {
		r.window[r.windowNext] = latencyMs
		r.windowNext = (r.windowNext + 1) % len(r.window)
	}
	r.latencyP95Ms = percentile(r.window, 95)
}

// recomputeErrorRate derives errors / (errors + successes). Caller holds mu.
func (r *record) recomputeErrorRate() {
	total := r.errors + r.successes
	if total == 0 {
		r.errorRate = 0
		return
	}
	r.errorRate = clamp01(float64(r.errors) / float64(total))
}

func (r *record) snapshot(now time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	uptime := now.Sub(r.createdAt).Milliseconds()
	if uptime < 0 {
		uptime = 0
	}

	return Snapshot{
		ConnectionID: r.id,
		TenantID:     r.tenantID,
		ExchangeID:   r.exchangeID,
		Type:         r.connType,
		Endpoint:     r.endpoint,
		Status:       r.status,
		CreatedAt:    r.createdAt,
		Metrics: Metrics{
			UptimeMs:          uptime,
			LatencyMs:         r.latencyMs,
			LatencyP95Ms:      r.latencyP95Ms,
			ErrorRate:         r.errorRate,
			ReconnectionCount: r.reconnectionCount,
			MessagesSent:      r.messagesSent,
			MessagesReceived:  r.messagesReceived,
			LastError:         r.lastError,
			LastErrorAt:       r.lastErrorAt,
		},
	}
}

// percentile returns the nearest-rank p-th percentile of samples.
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
