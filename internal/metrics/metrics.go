package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/venue-gateway/internal/alert"
	"github.com/rickgao/venue-gateway/internal/connection"
	"github.com/rickgao/venue-gateway/internal/routing"
)

const namespace = "venue_gateway"

// Collector owns the gateway's Prometheus collectors.
type Collector struct {
	poolConnections  *prometheus.GaugeVec
	tradingPaused    *prometheus.GaugeVec
	alerts           *prometheus.CounterVec
	shutdownDuration prometheus.Histogram
	shutdownRequests *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	failures         *prometheus.CounterVec
	routeDuration    prometheus.Histogram
}

var (
	_ connection.PoolObserver = (*Collector)(nil)
	_ routing.Observer        = (*Collector)(nil)
	_ alert.Handler           = (*Collector)(nil)
)

// New creates a Collector and registers it on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		poolConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections",
			Help:      "Open connections per (tenant, exchange) pool.",
		}, []string{"tenant", "exchange"}),
		tradingPaused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trading_paused",
			Help:      "1 while trading is paused for a (tenant, exchange) pair.",
		}, []string{"tenant", "exchange"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_alerts_total",
			Help:      "Connection quality alerts emitted, by type.",
		}, []string{"type", "exchange"}),
		shutdownDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_shutdown_duration_seconds",
			Help:      "Time taken to drain and close a pool.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		shutdownRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_shutdown_requests_total",
			Help:      "In-flight requests seen by pool shutdowns, by result.",
		}, []string{"result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions made.",
		}, []string{"criteria", "exchange", "split"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_failures_total",
			Help:      "Orders that could not be routed, by reason.",
		}, []string{"reason"}),
		routeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_duration_seconds",
			Help:      "Time spent routing one order.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, col := range []prometheus.Collector{
		c.poolConnections,
		c.tradingPaused,
		c.alerts,
		c.shutdownDuration,
		c.shutdownRequests,
		c.decisions,
		c.failures,
		c.routeDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RegisterQueueDepth exposes a queue length read on every scrape.
func RegisterQueueDepth(reg prometheus.Registerer, name string, depth func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_pending",
		Help:        "Items waiting in an internal queue.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, depth))
}

// Handler serves metrics from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// PoolSizeChanged implements connection.PoolObserver.
func (c *Collector) PoolSizeChanged(tenantID, exchangeID string, size int) {
	c.poolConnections.WithLabelValues(tenantID, exchangeID).Set(float64(size))
}

// PoolShutdown implements connection.PoolObserver.
func (c *Collector) PoolShutdown(r connection.ShutdownResult) {
	c.poolConnections.DeleteLabelValues(r.TenantID, r.ExchangeID)
	c.shutdownDuration.Observe(float64(r.ShutdownTimeMs) / 1000)
	c.shutdownRequests.WithLabelValues("completed").Add(float64(r.PendingRequestsCompleted))
	c.shutdownRequests.WithLabelValues("cancelled").Add(float64(r.PendingRequestsCancelled))
}

// TradingPauseChanged implements connection.PoolObserver.
func (c *Collector) TradingPauseChanged(tenantID, exchangeID string, paused bool) {
	v := 0.0
	if paused {
		v = 1
	}
	c.tradingPaused.WithLabelValues(tenantID, exchangeID).Set(v)
}

// RouteSucceeded implements routing.Observer.
func (c *Collector) RouteSucceeded(d *routing.RoutingDecision, elapsed time.Duration) {
	split := strconv.FormatBool(len(d.SplitOrders) > 0)
	c.decisions.WithLabelValues(string(d.Criteria), d.SelectedExchange, split).Inc()
	c.routeDuration.Observe(elapsed.Seconds())
}

// RouteFailed implements routing.Observer.
func (c *Collector) RouteFailed(reason string, elapsed time.Duration) {
	c.failures.WithLabelValues(reason).Inc()
	c.routeDuration.Observe(elapsed.Seconds())
}

// HandleAlert implements alert.Handler.
func (c *Collector) HandleAlert(_ context.Context, a alert.Alert) {
	c.alerts.WithLabelValues(string(a.Type), a.ExchangeID).Inc()
}
