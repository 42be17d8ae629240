package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Cost returns price*size rounded to cents.
func (l PriceLevel) Cost() decimal.Decimal {
	return l.Price.Mul(l.Size).Round(2)
}

// MarshalJSON encodes the level as a ["price","size"] pair, the shape both
// supported exchanges use on the wire.
func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Size.String()})
}

// UnmarshalJSON accepts a ["price","size", ...] array; trailing fields are
// ignored.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("price level: want at least 2 fields, got %d", len(raw))
	}
	price, err := decodeDecimal(raw[0])
	if err != nil {
		return fmt.Errorf("price level: price: %w", err)
	}
	size, err := decodeDecimal(raw[1])
	if err != nil {
		return fmt.Errorf("price level: size: %w", err)
	}
	l.Price, l.Size = price, size
	return nil
}

func decodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}
	return decimal.NewFromString(string(raw))
}

// OrderBook is a full point-in-time book for one symbol on one exchange.
// Bids are ordered highest price first, asks lowest price first, exactly as
// the exchange returned them.
type OrderBook struct {
	Exchange  string       `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Side identifies one side of an orderbook.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)
