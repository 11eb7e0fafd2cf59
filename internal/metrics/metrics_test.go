package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/venue-gateway/internal/alert"
	"github.com/rickgao/venue-gateway/internal/connection"
	"github.com/rickgao/venue-gateway/internal/model"
	"github.com/rickgao/venue-gateway/internal/routing"
)

func newCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	return c, reg
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestCollector_PoolObserver(t *testing.T) {
	c, _ := newCollector(t)

	c.PoolSizeChanged("acme", "binance", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.poolConnections.WithLabelValues("acme", "binance")))

	c.TradingPauseChanged("acme", "binance", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tradingPaused.WithLabelValues("acme", "binance")))
	c.TradingPauseChanged("acme", "binance", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.tradingPaused.WithLabelValues("acme", "binance")))

	c.PoolShutdown(connection.ShutdownResult{
		TenantID:                 "acme",
		ExchangeID:               "binance",
		ConnectionsClosedCount:   3,
		PendingRequestsCompleted: 2,
		PendingRequestsCancelled: 1,
		ShutdownTimeMs:           1500,
	})
	assert.Equal(t, 0, testutil.CollectAndCount(c.poolConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.shutdownRequests.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shutdownRequests.WithLabelValues("cancelled")))
}

func TestCollector_RoutingObserver(t *testing.T) {
	c, _ := newCollector(t)

	c.RouteSucceeded(&routing.RoutingDecision{
		Criteria:         model.CriteriaBestPrice,
		SelectedExchange: "kraken",
		SplitOrders:      []routing.SplitOrder{{ExchangeID: "kraken", Quantity: 1}},
	}, time.Millisecond)
	c.RouteFailed(routing.FailureNoExchangeAvailable, time.Millisecond)
	c.RouteFailed(routing.FailureNoExchangeAvailable, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisions.WithLabelValues("BEST_PRICE", "kraken", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.failures.WithLabelValues("no_exchange_available")))
}

func TestCollector_AlertHandler(t *testing.T) {
	c, _ := newCollector(t)

	c.HandleAlert(context.Background(), alert.Alert{Type: alert.TypeHighLatency, ExchangeID: "binance"})
	c.HandleAlert(context.Background(), alert.Alert{Type: alert.TypeHighLatency, ExchangeID: "binance"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.alerts.WithLabelValues("HIGH_LATENCY", "binance")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	c, reg := newCollector(t)
	require.NoError(t, RegisterQueueDepth(reg, "alerts", func() float64 { return 7 }))
	c.PoolSizeChanged("acme", "binance", 2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, `venue_gateway_pool_connections{exchange="binance",tenant="acme"} 2`), out)
	assert.True(t, strings.Contains(out, `venue_gateway_queue_pending{queue="alerts"} 7`), out)
}
