// Package coinbase implements domain.OrderBookSource against the Coinbase
// Exchange REST API.
package coinbase

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
	Name = "coinbase"

	DefaultBaseURL = "https://api.exchange.coinbase.com"
	// DefaultLevel requests the full, non-aggregated book.
	DefaultLevel = 3
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Level   int
	Timeout time.Duration
	Proxy   *domain.ProxyCredentials
}

// Client fetches product books. Coinbase returns bids highest price first
// and asks lowest price first; at level 3 each entry is one order
// ([price, size, order_id]) and the order id is dropped.
type Client struct {
	baseURL    string
	level      int
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a Coinbase REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Level <= 0 {
		cfg.Level = DefaultLevel
	}
	hc, err := httpbook.NewClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("coinbase: %w", err)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		level:      cfg.Level,
		httpClient: hc,
		now:        time.Now,
	}, nil
}

// Name returns "coinbase".
func (c *Client) Name() string { return Name }

// Fetch returns the book for a product id such as "BTC-USD".
func (c *Client) Fetch(ctx context.Context, symbol string) (domain.OrderBook, error) {
	endpoint := fmt.Sprintf("%s/products/%s/book?level=%s",
		c.baseURL, url.PathEscape(symbol), strconv.Itoa(c.level))

	fetchedAt := c.now()
	body, err := httpbook.Get(ctx, c.httpClient, Name, endpoint)
	if err != nil {
		return domain.OrderBook{}, err
	}
	return httpbook.Book(Name, symbol, body, fetchedAt)
}

var _ domain.OrderBookSource = (*Client)(nil)
