// Package platform maps exchange names to their orderbook adapters.
package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/platform/binance"
	"github.com/alanyoungcy/booksampler/internal/platform/coinbase"
)

// SourceConfig is the adapter-agnostic view of one exchange's settings.
// Depth is the Coinbase book level or the Binance depth limit.
type SourceConfig struct {
	BaseURL string
	Depth   int
	Timeout time.Duration
	Proxy   *domain.ProxyCredentials
}

// Names lists the supported exchanges.
func Names() []string { return []string{coinbase.Name, binance.Name} }

// NewSource builds the adapter registered under name.
func NewSource(name string, cfg SourceConfig) (domain.OrderBookSource, error) {
	switch strings.ToLower(name) {
	case coinbase.Name:
		return coinbase.NewClient(coinbase.Config{
			BaseURL: cfg.BaseURL,
			Level:   cfg.Depth,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})
	case binance.Name:
		return binance.NewClient(binance.Config{
			BaseURL: cfg.BaseURL,
			Limit:   cfg.Depth,
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})
	default:
		return nil, fmt.Errorf("platform: %q: %w", name, domain.ErrUnknownExchange)
	}
}
