package domain

import "context"

// OrderBookSource fetches a full orderbook for a symbol from one exchange.
type OrderBookSource interface {
	// Name returns the exchange identifier, e.g. "binance".
	Name() string
	// Fetch returns the current book for symbol. A non-success upstream
	// status is reported as a *SourceUnavailableError.
	Fetch(ctx context.Context, symbol string) (OrderBook, error)
}
