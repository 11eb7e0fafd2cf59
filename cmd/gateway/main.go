package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/venue-gateway/internal/alert"
	"github.com/rickgao/venue-gateway/internal/auth"
	"github.com/rickgao/venue-gateway/internal/config"
	"github.com/rickgao/venue-gateway/internal/connection"
	"github.com/rickgao/venue-gateway/internal/exchange"
	"github.com/rickgao/venue-gateway/internal/logging"
	"github.com/rickgao/venue-gateway/internal/metrics"
	"github.com/rickgao/venue-gateway/internal/orderbook"
	"github.com/rickgao/venue-gateway/internal/routing"
	"github.com/rickgao/venue-gateway/internal/version"
)

// lifecycle is a started component that must be stopped on exit.
type lifecycle struct {
	name string
	stop func(context.Context) error
}

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, syncLogs, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLogs()
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.String(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway failed", "error", err)
		syncLogs()
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func run(cfg *config.GatewayConfig, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var started []lifecycle
	defer func() {
		stopAll(started, cfg.Connections.ShutdownTimeout, logger)
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Alerts
	bus := alert.NewBus(logger)
	bus.Subscribe(alert.NewLogHandler(logger))
	bus.Subscribe(collector)
	if err := metrics.RegisterQueueDepth(reg, "alerts", func() float64 {
		return float64(bus.Stats().Pending)
	}); err != nil {
		return fmt.Errorf("register alert queue metric: %w", err)
	}
	if cfg.Alerts.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Alerts.Redis.Addr,
			Password: cfg.Alerts.Redis.Password,
			DB:       cfg.Alerts.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis alert sink unreachable, publishing anyway", "addr", cfg.Alerts.Redis.Addr, "error", err)
		}
		bus.Subscribe(alert.NewRedisPublisher(rdb, cfg.Alerts.Redis.Channel, logger))
		started = append(started, lifecycle{"redis", func(context.Context) error { return rdb.Close() }})
	}
	if cfg.Alerts.Kafka.Enabled {
		kp := alert.NewKafkaPublisher(alert.NewKafkaWriter(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic), logger)
		bus.Subscribe(kp)
		started = append(started, lifecycle{"kafka", func(context.Context) error { return kp.Close() }})
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start alert bus: %w", err)
	}
	started = append(started, lifecycle{"alert bus", bus.Stop})

	// Exchange registry and order books
	registry, client, tenants, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	cache := orderbook.NewCache(orderbook.PlaceholderConfig{
		ReferencePrice:  cfg.OrderBook.ReferencePrice,
		ReferencePrices: cfg.OrderBook.ReferencePrices,
		Depth:           cfg.OrderBook.Depth,
	})
	var poller *orderbook.Poller
	if client != nil {
		poller = orderbook.NewPoller(orderbook.PollerConfig{
			Interval:    cfg.OrderBook.PollInterval,
			Concurrency: cfg.OrderBook.Concurrency,
			Timeout:     cfg.OrderBook.Timeout,
		}, cache, client, logger)
		tracked := trackPairs(ctx, registry, tenants, poller, logger)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("start order book poller: %w", err)
		}
		started = append(started, lifecycle{"order book poller", poller.Stop})
		logger.Info("order book polling enabled", "pairs", tracked)
	} else {
		logger.Info("no registry url configured, routing on placeholder order books")
	}

	// Connection manager
	manager := connection.NewManager(
		connectionConfig(cfg),
		connection.NewWebSocketDialer(webSocketConfig(cfg), logger),
		bus,
		logger,
		connection.WithObserver(collector),
	)
	for exchangeID, q := range cfg.Quality.Exchanges {
		manager.SetQualityConfig(exchangeID, qualityConfig(q))
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}
	started = append(started, lifecycle{"connection manager", func(stopCtx context.Context) error {
		results := manager.ShutdownAll(stopCtx, cfg.Connections.ShutdownTimeout)
		for _, r := range results {
			logger.Info("pool shut down",
				"tenant", r.TenantID,
				"exchange", r.ExchangeID,
				"closed", r.ConnectionsClosedCount,
				"completed", r.PendingRequestsCompleted,
				"cancelled", r.PendingRequestsCancelled,
				"duration_ms", r.ShutdownTimeMs,
			)
		}
		return manager.Stop(stopCtx)
	}})
	warmPools(ctx, cfg, registry, tenants, manager, logger)

	// Router
	configs, decisions, storeLifecycles, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	started = append(started, storeLifecycles...)
	router := routing.NewRouter(registry, cache, configs, decisions, logger, routing.WithObserver(collector))
	if err := seedRoutingConfigs(ctx, cfg, router, configs, tenants); err != nil {
		return err
	}

	// HTTP
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(manager, cache, poller, bus))
	mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting http server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()
	started = append(started, lifecycle{"http server", server.Shutdown})

	logger.Info("gateway running",
		"instance_id", cfg.Instance.ID,
		"tenants", len(tenants),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down...")
	return nil
}

// stopAll stops components in reverse start order. The connection manager
// drains within shutdownTimeout; everything else shares a short grace period.
func stopAll(started []lifecycle, shutdownTimeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+10*time.Second)
	defer cancel()

	for i := len(started) - 1; i >= 0; i-- {
		c := started[i]
		if err := c.stop(ctx); err != nil {
			logger.Warn("component stop failed", "component", c.name, "error", err)
		}
	}
}

func buildRegistry(cfg *config.GatewayConfig, logger *slog.Logger) (exchange.Registry, *exchange.Client, []string, error) {
	if cfg.Registry.URL == "" {
		static := exchange.NewStaticRegistry(cfg.Tenants)
		return static, nil, static.Tenants(), nil
	}

	opts := []exchange.ClientOption{
		exchange.WithLogger(logger),
		exchange.WithTimeout(cfg.Registry.Timeout),
		exchange.WithRetries(cfg.Registry.MaxRetries, exchange.DefaultRetryBackoff),
	}
	if cfg.Registry.PrivateKeyPath != "" {
		signer, err := auth.LoadSigner(cfg.Registry.KeyID, cfg.Registry.PrivateKeyPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load registry signing key: %w", err)
		}
		opts = append(opts, exchange.WithSigner(signer))
	}
	client := exchange.NewClient(cfg.Registry.URL, cfg.Registry.APIKey, opts...)
	tenants := make([]string, 0, len(cfg.Routing.Tenants))
	for id := range cfg.Routing.Tenants {
		tenants = append(tenants, id)
	}
	logger.Info("using remote exchange registry",
		"url", cfg.Registry.URL,
		"signed", cfg.Registry.PrivateKeyPath != "",
	)
	return exchange.NewRemoteRegistry(client), client, tenants, nil
}

// trackPairs registers every (exchange, supported asset) pair of the known
// tenants with the poller and returns how many were added.
func trackPairs(ctx context.Context, registry exchange.Registry, tenants []string, poller *orderbook.Poller, logger *slog.Logger) int {
	seen := make(map[orderbook.Key]struct{})
	for _, tenantID := range tenants {
		exchanges, err := registry.AvailableExchanges(ctx, tenantID)
		if err != nil {
			logger.Warn("failed to list exchanges for tenant", "tenant", tenantID, "error", err)
			continue
		}
		for _, e := range exchanges {
			for _, asset := range e.SupportedFeatures.SupportedAssets {
				k := orderbook.Key{ExchangeID: e.ExchangeID, AssetID: asset}
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				poller.Track(e.ExchangeID, asset)
			}
		}
	}
	return len(seen)
}

// warmPools opens one WebSocket connection per tenant exchange that has a
// configured endpoint and sends its on-connect frame, if any. Failures are
// logged; pools grow on demand later.
func warmPools(ctx context.Context, cfg *config.GatewayConfig, registry exchange.Registry, tenants []string, manager connection.Manager, logger *slog.Logger) {
	if len(cfg.Connections.Endpoints) == 0 {
		return
	}
	for _, tenantID := range tenants {
		exchanges, err := registry.AvailableExchanges(ctx, tenantID)
		if err != nil {
			continue
		}
		for _, e := range exchanges {
			if _, ok := cfg.Connections.Endpoints[e.ExchangeID]; !ok {
				continue
			}
			snap, err := manager.GetConnection(ctx, tenantID, e.ExchangeID, connection.TypeWebSocket)
			if err != nil {
				logger.Warn("failed to open initial connection",
					"tenant", tenantID,
					"exchange", e.ExchangeID,
					"error", err,
				)
				continue
			}
			if frame, ok := cfg.Connections.OnConnect[e.ExchangeID]; ok && frame != "" {
				if err := manager.Send(snap.ConnectionID, []byte(frame)); err != nil {
					logger.Warn("failed to send on-connect frame",
						"tenant", tenantID,
						"exchange", e.ExchangeID,
						"connection", snap.ConnectionID,
						"error", err,
					)
				}
			}
		}
	}
}

func connectionConfig(cfg *config.GatewayConfig) connection.Config {
	return connection.Config{
		MaxConnections:      cfg.Connections.MaxPerPool,
		ShutdownTimeout:     cfg.Connections.ShutdownTimeout,
		HealthCheckInterval: cfg.Connections.HealthCheckInterval,
		LatencyWindow:       cfg.Connections.LatencyWindow,
		DefaultQuality:      qualityConfig(cfg.Quality.Default),
	}
}

func webSocketConfig(cfg *config.GatewayConfig) connection.WebSocketConfig {
	ws := connection.DefaultWebSocketConfig()
	ws.Endpoints = cfg.Connections.Endpoints
	if cfg.Connections.DialTimeout > 0 {
		ws.HandshakeTimeout = cfg.Connections.DialTimeout
	}
	if cfg.Connections.PingInterval > 0 {
		ws.PingInterval = cfg.Connections.PingInterval
	}
	ws.RatePerSecond = cfg.Connections.DialRatePerSecond
	ws.Burst = cfg.Connections.DialBurst
	return ws
}

func qualityConfig(q config.QualityConfig) connection.QualityConfig {
	return connection.QualityConfig{
		MaxLatencyMs:           q.MaxLatencyMs,
		MaxErrorRate:           q.MaxErrorRate,
		PauseTradingOnDegraded: q.PauseTradingOnDegraded,
	}
}
