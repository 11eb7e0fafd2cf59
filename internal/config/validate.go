package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/rickgao/venue-gateway/internal/model"
)

var logLevels = []string{"debug", "info", "warn", "error"}

var exchangeStatuses = []model.ExchangeStatus{
	model.ExchangeActive,
	model.ExchangeInactive,
	model.ExchangeMaintenance,
	model.ExchangeError,
}

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %v, got %q", logLevels, c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Connections.MaxPerPool < 1 {
		return errors.New("connections.max_per_pool must be >= 1")
	}
	if c.Connections.LatencyWindow < 1 {
		return errors.New("connections.latency_window must be >= 1")
	}
	if c.Connections.ShutdownTimeout < 0 {
		return errors.New("connections.shutdown_timeout must be >= 0")
	}
	if c.Connections.DialRatePerSecond < 0 {
		return errors.New("connections.dial_rate_per_second must be >= 0")
	}

	if err := c.Quality.Default.validate("quality.default"); err != nil {
		return err
	}
	for _, id := range sortedKeys(c.Quality.Exchanges) {
		q := c.Quality.Exchanges[id]
		if err := q.validate("quality.exchanges." + id); err != nil {
			return err
		}
	}

	if !c.Routing.Default.DefaultCriteria.Valid() {
		return fmt.Errorf("routing.default.default_criteria %q is not a known criteria", c.Routing.Default.DefaultCriteria)
	}
	for _, id := range sortedKeys(c.Routing.Tenants) {
		if !c.Routing.Tenants[id].DefaultCriteria.Valid() {
			return fmt.Errorf("routing.tenants.%s.default_criteria %q is not a known criteria", id, c.Routing.Tenants[id].DefaultCriteria)
		}
	}

	if c.OrderBook.Concurrency < 1 {
		return errors.New("orderbook.concurrency must be >= 1")
	}
	if c.OrderBook.ReferencePrice <= 0 {
		return errors.New("orderbook.placeholder_reference_price must be > 0")
	}

	if c.Registry.URL == "" {
		if len(c.Tenants) == 0 {
			return errors.New("tenants must list at least one tenant when registry.url is unset")
		}
		for _, tenant := range sortedKeys(c.Tenants) {
			for i, e := range c.Tenants[tenant] {
				if e.ExchangeID == "" {
					return fmt.Errorf("tenants.%s[%d].exchange_id is required", tenant, i)
				}
				if e.Status != "" && !slices.Contains(exchangeStatuses, e.Status) {
					return fmt.Errorf("tenants.%s[%d].status %q is not a known status", tenant, i, e.Status)
				}
			}
		}
	}

	if (c.Registry.KeyID == "") != (c.Registry.PrivateKeyPath == "") {
		return errors.New("registry.key_id and registry.private_key_path must be set together")
	}

	if c.Alerts.Redis.Enabled && c.Alerts.Redis.Addr == "" {
		return errors.New("alerts.redis.addr is required when redis is enabled")
	}
	if c.Alerts.Kafka.Enabled && len(c.Alerts.Kafka.Brokers) == 0 {
		return errors.New("alerts.kafka.brokers is required when kafka is enabled")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (q *QualityConfig) validate(prefix string) error {
	if q.MaxLatencyMs <= 0 {
		return fmt.Errorf("%s.max_latency_ms must be > 0", prefix)
	}
	if q.MaxErrorRate <= 0 || q.MaxErrorRate > 1 {
		return fmt.Errorf("%s.max_error_rate must be in (0, 1], got %v", prefix, q.MaxErrorRate)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
