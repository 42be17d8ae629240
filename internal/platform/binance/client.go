// Package binance implements domain.OrderBookSource against the Binance spot
// REST API.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/platform/httpbook"
)

const (
	// Name is the exchange identifier used in keys and rows.
	Name = "binance"

	DefaultBaseURL = "https://api.binance.com"
	// DefaultLimit is the deepest book the depth endpoint serves.
	DefaultLimit = 5000
)

// Config configures a Client. Proxy is required from origins Binance blocks.
type Config struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
	Proxy   *domain.ProxyCredentials
}

// Client fetches depth snapshots from /api/v3/depth. Binance returns bids
// highest price first and asks lowest price first; the client keeps that
// order.
type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Binance REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	hc, err := httpbook.NewClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		limit:      cfg.Limit,
		httpClient: hc,
		now:        time.Now,
	}, nil
}

// Name returns "binance".
func (c *Client) Name() string { return Name }

// Fetch returns the depth snapshot for symbol, e.g. "BTCUSDT".
func (c *Client) Fetch(ctx context.Context, symbol string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(c.limit))

	fetchedAt := c.now()
	body, err := httpbook.Get(ctx, c.httpClient, Name, c.baseURL+"/api/v3/depth?"+params.Encode())
	if err != nil {
		return domain.OrderBook{}, err
	}
	return httpbook.Book(Name, symbol, body, fetchedAt)
}

var _ domain.OrderBookSource = (*Client)(nil)
