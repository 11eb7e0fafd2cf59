package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ErrStaleConnection is reported when a WebSocket stops answering pings.
var ErrStaleConnection = errors.New("connection stale (no ping)")

// Transport is the network resource behind a pooled connection.
type Transport interface {
	Close() error
}

// Sender is a Transport that writes outbound frames.
type Sender interface {
	Transport
	Send(data []byte) error
}

// monitoredTransport reports asynchronous failures. The manager marks the
// connection disconnected when one arrives.
type monitoredTransport interface {
	Errors() <-chan error
	Done() <-chan struct{}
}

// DialRequest identifies the connection being opened.
type DialRequest struct {
	TenantID   string
	ExchangeID string
	Type       ConnectionType
	Endpoint   string
}

// Dialer opens transports. It is called outside any pool lock.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, req DialRequest) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, req DialRequest) (Transport, error) { return f(ctx, req) }

// NopDialer returns logical transports with nothing to close. It is the
// default when the owning service performs its own network I/O.
type NopDialer struct{}

func (NopDialer) Dial(context.Context, DialRequest) (Transport, error) { return nopTransport{}, nil }

type nopTransport struct{}

func (nopTransport) Close() error { return nil }

// WebSocketConfig configures WebSocketDialer.
type WebSocketConfig struct {
	Endpoints        map[string]string // exchange id -> default URL
	Header           http.Header       // extra handshake headers
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PingTimeout      time.Duration // Max time without ping/pong before the connection is stale
	WriteTimeout     time.Duration
	RatePerSecond    float64 // Per-exchange dial rate; 0 disables limiting
	Burst            int
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		RatePerSecond:    5,
		Burst:            5,
	}
}

// WebSocketDialer opens WEBSOCKET connections with gorilla/websocket and
// returns logical transports for REST and FIX, whose wire handling lives
// in the exchange adapters. Dials are rate limited per exchange.
type WebSocketDialer struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewWebSocketDialer creates a dialer.
func NewWebSocketDialer(cfg WebSocketConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *WebSocketDialer) limiter(exchangeID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[exchangeID]
	if !ok {
		limit := rate.Inf
		if d.cfg.RatePerSecond > 0 {
			limit = rate.Limit(d.cfg.RatePerSecond)
		}
		burst := d.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		d.limiters[exchangeID] = l
	}
	return l
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, req DialRequest) (Transport, error) {
	if req.Type != TypeWebSocket {
		return nopTransport{}, nil
	}

	url := req.Endpoint
	if url == "" {
		url = d.cfg.Endpoints[req.ExchangeID]
	}
	if url == "" {
		return nil, fmt.Errorf("no websocket endpoint for exchange %s", req.ExchangeID)
	}

	if err := d.limiter(req.ExchangeID).Wait(ctx); err != nil {
		return nil, fmt.Errorf("dial rate limit: %w", err)
	}

	t := newWSTransport(d.cfg, d.logger.With("exchange", req.ExchangeID, "tenant", req.TenantID))
	if err := t.connect(ctx, url); err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return t, nil
}

// wsTransport keeps a WebSocket alive: it answers pings, sends keepalive
// pings and reports the first read failure or staleness on errs.
type wsTransport struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	conn *websocket.Conn
	errs chan error
	done chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	lastPingAt time.Time
	closed     bool
}

func newWSTransport(cfg WebSocketConfig, logger *slog.Logger) *wsTransport {
	return &wsTransport{
		cfg:    cfg,
		logger: logger,
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (t *wsTransport) connect(ctx context.Context, url string) error {
	header := http.Header{}
	for k, v := range t.cfg.Header {
		header[k] = v
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return err
	}

	t.conn = conn
	t.touch()

	conn.SetPingHandler(func(data string) error {
		t.touch()
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	go t.readLoop()
	go t.heartbeatLoop()

	t.logger.Debug("websocket connected", "url", url)
	return nil
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastPingAt = time.Now()
	t.mu.Unlock()
}

func (t *wsTransport) Errors() <-chan error  { return t.errs }
func (t *wsTransport) Done() <-chan struct{} { return t.done }

// Send writes a text frame.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. Safe to call twice.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)

	t.writeMu.Lock()
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	return t.conn.Close()
}

func (t *wsTransport) fail(err error) {
	select {
	case <-t.done:
	case t.errs <- err:
	default:
	}
}

// readLoop drains frames so control handlers run; payloads belong to the
// exchange adapters.
func (t *wsTransport) readLoop() {
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			t.fail(err)
			return
		}
	}
}

func (t *wsTransport) heartbeatLoop() {
	interval := t.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(t.cfg.WriteTimeout))
			t.writeMu.Unlock()
			if err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			last := t.lastPingAt
			t.mu.RUnlock()

			if t.cfg.PingTimeout > 0 && time.Since(last) > t.cfg.PingTimeout {
				t.logger.Warn("no ping received, connection stale",
					"last_ping", last,
					"timeout", t.cfg.PingTimeout,
				)
				t.fail(ErrStaleConnection)
				return
			}
		}
	}
}
