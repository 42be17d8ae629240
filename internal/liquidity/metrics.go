package liquidity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

var two = decimal.NewFromInt(2)

// Metrics are the reported values derived from one book.
type Metrics struct {
	MidPrice          decimal.Decimal
	ProfitOpportunity decimal.Decimal
}

// Derive computes the mid price from the top of each raw side and prices the
// size imbalance between the accumulated sides at that mid. Both outputs are
// rounded to cents; the profit uses the unrounded mid.
//
// The profit figure is a heuristic: each side spends its own budget, so it is
// not an executable arbitrage.
func Derive(bids, asks []domain.PriceLevel, accBids, accAsks []domain.AccumulatedTransaction) (Metrics, error) {
	if len(bids) == 0 || len(asks) == 0 {
		return Metrics{}, fmt.Errorf("liquidity: derive (%d bids, %d asks): %w", len(bids), len(asks), domain.ErrEmptyBook)
	}
	mid := bids[0].Price.Add(asks[0].Price).Div(two)
	imbalance := TotalSize(accBids).Sub(TotalSize(accAsks))
	return Metrics{
		MidPrice:          mid.Round(2),
		ProfitOpportunity: imbalance.Mul(mid).Round(2),
	}, nil
}
