package connection

import (
	"time"
)

// ConnectionType is the transport a logical connection uses.
type ConnectionType string

const (
	TypeREST      ConnectionType = "REST"
	TypeWebSocket ConnectionType = "WEBSOCKET"
	TypeFIX       ConnectionType = "FIX"
)

// Valid reports whether t is a known connection type.
func (t ConnectionType) Valid() bool {
	switch t {
	case TypeREST, TypeWebSocket, TypeFIX:
		return true
	}
	return false
}

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusReconnecting Status = "RECONNECTING"
	StatusDisconnected Status = "DISCONNECTED"
	StatusError        Status = "ERROR"
)

// Metrics is a point-in-time copy of a connection's quality metrics.
type Metrics struct {
	UptimeMs          int64     `json:"uptimeMs"`
	LatencyMs         float64   `json:"latencyMs"`
	LatencyP95Ms      float64   `json:"latencyP95Ms"`
	ErrorRate         float64   `json:"errorRate"` // [0,1]
	ReconnectionCount int64     `json:"reconnectionCount"`
	MessagesSent      int64     `json:"messagesSent"`
	MessagesReceived  int64     `json:"messagesReceived"`
	LastError         string    `json:"lastError,omitempty"`
	LastErrorAt       time.Time `json:"lastErrorAt,omitempty"`
}

// MetricsUpdate carries optional fields merged by UpdateConnectionMetrics.
// Nil fields are left unchanged. ReconnectionCount is applied only when it
// is larger than the current count.
type MetricsUpdate struct {
	LatencyMs         *float64
	LatencyP95Ms      *float64
	ErrorRate         *float64
	ReconnectionCount *int64
	MessagesSent      *int64
	MessagesReceived  *int64
	LastError         *string
}

// Snapshot is an immutable copy of a connection record.
type Snapshot struct {
	ConnectionID string         `json:"connectionId"`
	TenantID     string         `json:"tenantId"`
	ExchangeID   string         `json:"exchangeId"`
	Type         ConnectionType `json:"type"`
	Endpoint     string         `json:"endpoint,omitempty"`
	Status       Status         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	Metrics      Metrics        `json:"metrics"`
}

// QualityConfig holds the thresholds a connection is held to.
type QualityConfig struct {
	MaxLatencyMs           float64 `json:"maxLatencyMs" yaml:"max_latency_ms"`
	MaxErrorRate           float64 `json:"maxErrorRate" yaml:"max_error_rate"`
	PauseTradingOnDegraded bool    `json:"pauseTradingOnDegraded" yaml:"pause_trading_on_degraded"`
}

// DefaultQualityConfig returns the system-wide thresholds used when no
// tenant or exchange override exists.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MaxLatencyMs:           1000,
		MaxErrorRate:           0.05,
		PauseTradingOnDegraded: false,
	}
}

// ConnectionHealth is one connection's entry in a HealthReport.
type ConnectionHealth struct {
	ConnectionID string         `json:"connectionId"`
	Type         ConnectionType `json:"type"`
	Status       Status         `json:"status"`
	LatencyMs    float64        `json:"latencyMs"`
	ErrorRate    float64        `json:"errorRate"`
	Degraded     bool           `json:"degraded"`
	Reasons      []string       `json:"reasons,omitempty"`
}

// HealthReport is the result of MonitorHealth for one pool.
type HealthReport struct {
	TenantID      string             `json:"tenantId"`
	ExchangeID    string             `json:"exchangeId"`
	Healthy       bool               `json:"healthy"`
	TradingPaused bool               `json:"tradingPaused"`
	Connections   []ConnectionHealth `json:"connections"`
	CheckedAt     time.Time          `json:"checkedAt"`
}

// ShutdownResult reports what a graceful shutdown did. Completed plus
// cancelled equals the in-flight registrations outstanding when it began.
type ShutdownResult struct {
	TenantID                 string `json:"tenantId"`
	ExchangeID               string `json:"exchangeId"`
	ConnectionsClosedCount   int    `json:"connectionsClosedCount"`
	PendingRequestsCompleted int    `json:"pendingRequestsCompleted"`
	PendingRequestsCancelled int    `json:"pendingRequestsCancelled"`
	ShutdownTimeMs           int64  `json:"shutdownTimeMs"`
}

// PoolStats describes one pool.
type PoolStats struct {
	TenantID       string `json:"tenantId"`
	ExchangeID     string `json:"exchangeId"`
	Connections    int    `json:"connections"`
	Connected      int    `json:"connected"`
	Reserved       int    `json:"reserved"` // slots held by dials in progress
	InFlight       int    `json:"inFlight"`
	MaxConnections int    `json:"maxConnections"`
	ShuttingDown   bool   `json:"shuttingDown"`
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	PoolCount       int         `json:"poolCount"`
	ConnectionCount int         `json:"connectionCount"`
	PausedPairs     int         `json:"pausedPairs"`
	Pools           []PoolStats `json:"pools"`
}

// Config configures the Connection Manager.
type Config struct {
	MaxConnections      int           // Per (tenant, exchange) pool
	ShutdownTimeout     time.Duration // Default wait for in-flight work
	HealthCheckInterval time.Duration // Period of the background health sweep (0 disables)
	LatencyWindow       int           // Samples kept for latencyP95Ms
	DefaultQuality      QualityConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:      10,
		ShutdownTimeout:     30 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		LatencyWindow:       100,
		DefaultQuality:      DefaultQualityConfig(),
	}
}

// PoolObserver receives pool lifecycle events. Implementations must not block.
type PoolObserver interface {
	PoolSizeChanged(tenantID, exchangeID string, size int)
	PoolShutdown(result ShutdownResult)
	TradingPauseChanged(tenantID, exchangeID string, paused bool)
}

type nopObserver struct{}

func (nopObserver) PoolSizeChanged(string, string, int)      {}
func (nopObserver) PoolShutdown(ShutdownResult)              {}
func (nopObserver) TradingPauseChanged(string, string, bool) {}
