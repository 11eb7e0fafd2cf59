package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rickgao/venue-gateway/internal/model"
)

// ListExchanges fetches every exchange configured for a tenant, any status.
func (c *Client) ListExchanges(ctx context.Context, tenantID string) ([]model.ExchangeConfig, error) {
	var resp ExchangesResponse
	path := "/tenants/" + url.PathEscape(tenantID) + "/exchanges"
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list exchanges for %s: %w", tenantID, err)
	}

	out := make([]model.ExchangeConfig, 0, len(resp.Exchanges))
	for _, e := range resp.Exchanges {
		out = append(out, ToExchangeConfig(e))
	}
	return out, nil
}

// FetchOrderBook fetches the top of book for one asset on one exchange.
// It satisfies orderbook.Source.
func (c *Client) FetchOrderBook(ctx context.Context, exchangeID, assetID string) (model.OrderBookSummary, error) {
	var resp OrderBookResponse
	path := "/exchanges/" + url.PathEscape(exchangeID) + "/orderbooks/" + url.PathEscape(assetID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return model.OrderBookSummary{}, fmt.Errorf("fetch order book %s/%s: %w", exchangeID, assetID, err)
	}

	book := ToOrderBookSummary(*resp.OrderBook)
	if book.ExchangeID == "" {
		book.ExchangeID = exchangeID
	}
	if book.AssetID == "" {
		book.AssetID = assetID
	}
	return book, nil
}

// RemoteRegistry implements Registry against the registry service.
// Every call goes to the service; there is no local cache.
type RemoteRegistry struct {
	client *Client
}

// NewRemoteRegistry creates a registry backed by client.
func NewRemoteRegistry(client *Client) *RemoteRegistry {
	return &RemoteRegistry{client: client}
}

// AvailableExchanges implements Registry.
func (r *RemoteRegistry) AvailableExchanges(ctx context.Context, tenantID string) ([]model.ExchangeConfig, error) {
	all, err := r.client.ListExchanges(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return activeOnly(all), nil
}

// IsExchangeAvailable implements Registry.
func (r *RemoteRegistry) IsExchangeAvailable(ctx context.Context, tenantID, exchangeID string) (bool, error) {
	e, err := r.Exchange(ctx, tenantID, exchangeID)
	if errors.Is(err, ErrExchangeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.IsActive(), nil
}

// Exchange implements Registry.
func (r *RemoteRegistry) Exchange(ctx context.Context, tenantID, exchangeID string) (model.ExchangeConfig, error) {
	all, err := r.client.ListExchanges(ctx, tenantID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return model.ExchangeConfig{}, fmt.Errorf("%s/%s: %w", tenantID, exchangeID, ErrExchangeNotFound)
		}
		return model.ExchangeConfig{}, err
	}
	for _, e := range all {
		if e.ExchangeID == exchangeID {
			return e, nil
		}
	}
	return model.ExchangeConfig{}, fmt.Errorf("%s/%s: %w", tenantID, exchangeID, ErrExchangeNotFound)
}
