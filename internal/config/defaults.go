package config

import (
	"time"

	"github.com/rickgao/venue-gateway/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultLogOutput           = "stdout"
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxAgeDays       = 7
	DefaultLogMaxBackups       = 5
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultMaxPerPool          = 10
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultLatencyWindow       = 100
	DefaultDialTimeout         = 10 * time.Second
	DefaultDialRatePerSecond   = 5.0
	DefaultDialBurst           = 5
	DefaultPingInterval        = 15 * time.Second
	DefaultMaxLatencyMs        = 1000.0
	DefaultMaxErrorRate        = 0.05
	DefaultMaxSplitExchanges   = 3
	DefaultPollInterval        = 5 * time.Second
	DefaultPollConcurrency     = 16
	DefaultPollTimeout         = 3 * time.Second
	DefaultReferencePrice      = 50000.0
	DefaultPlaceholderDepth    = 10.0
	DefaultRegistryTimeout     = 10 * time.Second
	DefaultRegistryMaxRetries  = 3
	DefaultRedisChannel        = "venue-gateway:alerts"
	DefaultKafkaTopic          = "venue-gateway.alerts"
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
)

func (c *GatewayConfig) applyDefaults() {
	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Connections defaults
	if c.Connections.MaxPerPool == 0 {
		c.Connections.MaxPerPool = DefaultMaxPerPool
	}
	if c.Connections.ShutdownTimeout == 0 {
		c.Connections.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Connections.HealthCheckInterval == 0 {
		c.Connections.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.Connections.LatencyWindow == 0 {
		c.Connections.LatencyWindow = DefaultLatencyWindow
	}
	if c.Connections.DialTimeout == 0 {
		c.Connections.DialTimeout = DefaultDialTimeout
	}
	if c.Connections.DialRatePerSecond == 0 {
		c.Connections.DialRatePerSecond = DefaultDialRatePerSecond
	}
	if c.Connections.DialBurst == 0 {
		c.Connections.DialBurst = DefaultDialBurst
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}

	// Quality defaults
	applyQualityDefaults(&c.Quality.Default, QualityConfig{
		MaxLatencyMs: DefaultMaxLatencyMs,
		MaxErrorRate: DefaultMaxErrorRate,
	})
	for id, q := range c.Quality.Exchanges {
		applyQualityDefaults(&q, c.Quality.Default)
		c.Quality.Exchanges[id] = q
	}

	// Routing defaults
	applyRoutingDefaults(&c.Routing.Default)
	for id, r := range c.Routing.Tenants {
		applyRoutingDefaults(&r)
		c.Routing.Tenants[id] = r
	}

	// Order book defaults
	if c.OrderBook.PollInterval == 0 {
		c.OrderBook.PollInterval = DefaultPollInterval
	}
	if c.OrderBook.Concurrency == 0 {
		c.OrderBook.Concurrency = DefaultPollConcurrency
	}
	if c.OrderBook.Timeout == 0 {
		c.OrderBook.Timeout = DefaultPollTimeout
	}
	if c.OrderBook.ReferencePrice == 0 {
		c.OrderBook.ReferencePrice = DefaultReferencePrice
	}
	if c.OrderBook.Depth == 0 {
		c.OrderBook.Depth = DefaultPlaceholderDepth
	}

	// Registry defaults
	if c.Registry.Timeout == 0 {
		c.Registry.Timeout = DefaultRegistryTimeout
	}
	if c.Registry.MaxRetries == 0 {
		c.Registry.MaxRetries = DefaultRegistryMaxRetries
	}

	// Alert sink defaults
	if c.Alerts.Redis.Channel == "" {
		c.Alerts.Redis.Channel = DefaultRedisChannel
	}
	if c.Alerts.Kafka.Topic == "" {
		c.Alerts.Kafka.Topic = DefaultKafkaTopic
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// applyQualityDefaults fills unset thresholds from base.
func applyQualityDefaults(q *QualityConfig, base QualityConfig) {
	if q.MaxLatencyMs == 0 {
		q.MaxLatencyMs = base.MaxLatencyMs
	}
	if q.MaxErrorRate == 0 {
		q.MaxErrorRate = base.MaxErrorRate
	}
}

func applyRoutingDefaults(r *model.RoutingConfig) {
	if r.DefaultCriteria == "" {
		r.DefaultCriteria = model.CriteriaUserPreference
	}
	if r.MaxSplitExchanges == 0 {
		r.MaxSplitExchanges = DefaultMaxSplitExchanges
	}
}
