package exchange

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://registry.example.com", "test-key")

		if c.baseURL != "https://registry.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://registry.example.com")
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		c := NewClient("https://registry.example.com/", "")
		if c.baseURL != "https://registry.example.com" {
			t.Errorf("baseURL = %q, want no trailing slash", c.baseURL)
		}
	})

	t.Run("negative retries clamp to zero", func(t *testing.T) {
		c := NewClient("https://registry.example.com", "", WithRetries(-1, 0))
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want 0", c.maxRetries)
		}
		if c.retryBackoff != DefaultRetryBackoff {
			t.Errorf("retryBackoff = %v, want default %v", c.retryBackoff, DefaultRetryBackoff)
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://registry.example.com", "",
			WithTimeout(2*time.Second),
			WithRetries(5, time.Second),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 2*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 2*time.Second)
		}
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("nil logger ignored", func(t *testing.T) {
		c := NewClient("https://registry.example.com", "", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		hc := &http.Client{}
		c := NewClient("https://registry.example.com", "", WithHTTPClient(hc))
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Not Found"}
	if got, want := err.Error(), "registry api error 404: Not Found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !err.NotFound() {
		t.Error("NotFound() = false for 404")
	}

	coded := &APIError{StatusCode: 403, Code: "TENANT_SUSPENDED", Message: "tenant acme is suspended"}
	if got, want := coded.Error(), "registry api error 403 (TENANT_SUSPENDED): tenant acme is suspended"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	tests := []struct {
		code int
		want bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{404, false},
		{499, false},
	}
	for _, tt := range tests {
		if got := (&APIError{StatusCode: tt.code}).IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDoRequest(t *testing.T) {
	t.Run("sends auth and accept headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "venue-gateway/") {
				t.Errorf("User-Agent = %q, want venue-gateway/ prefix", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization header = %q, want %q", got, "Bearer test-key")
			}
			if got := r.Header.Get("Accept"); got != "application/json" {
				t.Errorf("Accept header = %q, want %q", got, "application/json")
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-key")
		body, err := c.doRequest(context.Background(), http.MethodGet, "/x", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok":true}` {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("error status returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"nope"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/x", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusForbidden)
		}
		if string(apiErr.Body) != `{"error":"nope"}` {
			t.Errorf("Body = %q", apiErr.Body)
		}
		if apiErr.Message != "nope" {
			t.Errorf("Message = %q, want registry error text", apiErr.Message)
		}
	})

	t.Run("registry error document is decoded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"tenant quota exhausted","code":"RATE_LIMITED"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/tenants/acme/exchanges", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.Code != "RATE_LIMITED" || apiErr.Message != "tenant quota exhausted" {
			t.Errorf("Code, Message = %q, %q", apiErr.Code, apiErr.Message)
		}
		if apiErr.RetryAfter != 7*time.Second {
			t.Errorf("RetryAfter = %v, want 7s", apiErr.RetryAfter)
		}
	})

	t.Run("plain text error keeps status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		_, err := c.doRequest(context.Background(), http.MethodGet, "/x", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.Message != http.StatusText(http.StatusBadGateway) || apiErr.Code != "" {
			t.Errorf("Message, Code = %q, %q", apiErr.Message, apiErr.Code)
		}
	})
	t.Run("signer headers are attached", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-Test-Sig"); got != "GET /tenants/acme/exchanges" {
				t.Errorf("X-Test-Sig = %q, want signed method and path", got)
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		signer := signerFunc(func(method, path string) (map[string]string, error) {
			return map[string]string{"X-Test-Sig": method + " " + path}, nil
		})
		c := NewClient(server.URL, "", WithSigner(signer))
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/tenants/acme/exchanges", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("signer error aborts request", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		signer := signerFunc(func(string, string) (map[string]string, error) {
			return nil, errors.New("no key")
		})
		c := NewClient(server.URL, "", WithSigner(signer))
		if _, err := c.doRequest(context.Background(), http.MethodGet, "/x", nil); err == nil {
			t.Error("expected error from failing signer")
		}
		if hits.Load() != 0 {
			t.Errorf("server hits = %d, want 0", hits.Load())
		}
	})
}

type signerFunc func(method, path string) (map[string]string, error)

func (f signerFunc) SignRequest(method, path string) (map[string]string, error) {
	return f(method, path)
}

func TestDoWithRetry(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/x", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/x", nil); err == nil {
			t.Fatal("expected error")
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(2, time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/x", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("error = %v, want wrapped 429", err)
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("retry-after longer than backoff is honored", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/x", nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want %v", err, context.DeadlineExceeded)
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("attempts = %d, want 1 while waiting out Retry-After", got)
		}
	})

	t.Run("context cancellation stops backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "", WithRetries(5, time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/x", nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want %v", err, context.DeadlineExceeded)
		}
	})
}
