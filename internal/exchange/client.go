package exchange

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/venue-gateway/internal/version"
)

// Registry client defaults.
const (
	DefaultRegistryTimeout = 10 * time.Second
	DefaultRegistryRetries = 3
	DefaultRetryBackoff    = 500 * time.Millisecond
)

// Client talks to the exchange registry service: per-tenant exchange
// listings and per-exchange order books.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	signer     RequestSigner
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// RequestSigner produces authentication headers for a registry request
// from its method and URL path.
type RequestSigner interface {
	SignRequest(method, path string) (map[string]string, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a registry client rooted at baseURL. An empty apiKey
// sends no bearer token.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		userAgent:    "venue-gateway/" + version.Version,
		httpClient:   &http.Client{Timeout: DefaultRegistryTimeout},
		logger:       slog.Default(),
		maxRetries:   DefaultRegistryRetries,
		retryBackoff: DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout bounds each registry request, retries excluded.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried and the
// initial backoff. Negative counts mean no retries.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(n, 0)
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSigner signs every request in addition to the bearer token.
func WithSigner(s RequestSigner) ClientOption {
	return func(c *Client) {
		c.signer = s
	}
}
