package config

import (
	"time"

	"github.com/rickgao/venue-gateway/internal/model"
)

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Database    DatabaseConfig    `yaml:"database"`
	Connections ConnectionsConfig `yaml:"connections"`
	Quality     QualitySection    `yaml:"quality"`
	Routing     RoutingSection    `yaml:"routing"`
	OrderBook   OrderBookConfig   `yaml:"orderbook"`
	Registry    RegistryConfig    `yaml:"registry"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	// Tenants lists each tenant's exchanges for the static registry.
	// Ignored when registry.url is set.
	Tenants map[string][]model.ExchangeConfig `yaml:"tenants"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LoggingConfig controls the zap-backed slog handler.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, stderr, or a file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// DatabaseConfig holds the PostgreSQL store for routing configs and decisions.
// When disabled, in-memory stores are used.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConnectionsConfig holds Connection Manager settings.
type ConnectionsConfig struct {
	MaxPerPool          int               `yaml:"max_per_pool"`
	ShutdownTimeout     time.Duration     `yaml:"shutdown_timeout"`
	HealthCheckInterval time.Duration     `yaml:"health_check_interval"`
	LatencyWindow       int               `yaml:"latency_window"`
	DialTimeout         time.Duration     `yaml:"dial_timeout"`
	DialRatePerSecond   float64           `yaml:"dial_rate_per_second"`
	DialBurst           int               `yaml:"dial_burst"`
	PingInterval        time.Duration     `yaml:"ping_interval"`
	Endpoints           map[string]string `yaml:"endpoints"`  // exchange id -> WebSocket URL
	OnConnect           map[string]string `yaml:"on_connect"` // exchange id -> first frame sent after warm-up
}

// QualitySection holds connection quality thresholds.
type QualitySection struct {
	Default   QualityConfig            `yaml:"default"`
	Exchanges map[string]QualityConfig `yaml:"exchanges"`
}

// QualityConfig holds thresholds for one exchange.
type QualityConfig struct {
	MaxLatencyMs           float64 `yaml:"max_latency_ms"`
	MaxErrorRate           float64 `yaml:"max_error_rate"`
	PauseTradingOnDegraded bool    `yaml:"pause_trading_on_degraded"`
}

// RoutingSection holds routing policies seeded at startup.
type RoutingSection struct {
	Default model.RoutingConfig            `yaml:"default"`
	Tenants map[string]model.RoutingConfig `yaml:"tenants"`
}

// OrderBookConfig holds order book poller and placeholder settings.
type OrderBookConfig struct {
	PollInterval    time.Duration      `yaml:"poll_interval"`
	Concurrency     int                `yaml:"concurrency"`
	Timeout         time.Duration      `yaml:"timeout"`
	ReferencePrice  float64            `yaml:"placeholder_reference_price"`
	ReferencePrices map[string]float64 `yaml:"placeholder_reference_prices"`
	Depth           float64            `yaml:"placeholder_depth"`
}

// RegistryConfig points at an external exchange registry service.
type RegistryConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	KeyID          string        `yaml:"key_id"`           // Optional RSA-PSS request signing
	PrivateKeyPath string        `yaml:"private_key_path"` // PEM, PKCS#8 or PKCS#1
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// AlertsConfig holds optional alert sinks.
type AlertsConfig struct {
	Redis RedisConfig `yaml:"redis"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
