// Package liquidity walks one side of an orderbook against a notional budget
// and derives the mid price and volume-imbalance signal from the result.
package liquidity

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// Tolerance is how far past the budget a single terminating level may go.
var Tolerance = decimal.NewFromInt(1)

// Decision is the outcome for one level of the walk.
type Decision int

const (
	// DecisionFits records the level and keeps walking.
	DecisionFits Decision = iota
	// DecisionSkip drops a level that would overshoot by more than Tolerance.
	DecisionSkip
	// DecisionTerminate records the level and ends the walk.
	DecisionTerminate
)

func (d Decision) String() string {
	switch d {
	case DecisionFits:
		return "fits"
	case DecisionSkip:
		return "skip"
	case DecisionTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Classify maps the budget left after taking a level to a Decision.
//
//	slack > 0                     -> fits
//	slack < -Tolerance            -> skip
//	-Tolerance <= slack <= 0      -> terminate
func Classify(slack decimal.Decimal) Decision {
	switch {
	case slack.IsPositive():
		return DecisionFits
	case slack.LessThan(Tolerance.Neg()):
		return DecisionSkip
	default:
		return DecisionTerminate
	}
}

// Step records how a single level was treated.
type Step struct {
	Index    int
	Level    domain.PriceLevel
	Cost     decimal.Decimal
	Slack    decimal.Decimal
	Decision Decision
}

// Walk classifies levels in input order until one terminates the walk or the
// input runs out. Levels after a terminating level are not visited.
func Walk(levels []domain.PriceLevel, budget decimal.Decimal) []Step {
	remaining := budget
	steps := make([]Step, 0, len(levels))
	for i, lvl := range levels {
		cost := lvl.Cost()
		slack := remaining.Sub(cost)
		d := Classify(slack)
		steps = append(steps, Step{Index: i, Level: lvl, Cost: cost, Slack: slack, Decision: d})
		switch d {
		case DecisionFits:
			remaining = slack
		case DecisionTerminate:
			return steps
		}
	}
	return steps
}

// Accumulate returns the levels consumed when spending budget on one side of
// a book, each as a full-level transaction. The result never costs more than
// budget+Tolerance in total.
func Accumulate(levels []domain.PriceLevel, budget decimal.Decimal, side domain.Side) []domain.AccumulatedTransaction {
	var out []domain.AccumulatedTransaction
	for _, st := range Walk(levels, budget) {
		if st.Decision == DecisionSkip {
			continue
		}
		out = append(out, domain.AccumulatedTransaction{
			CoinPrice:       st.Level.Price,
			AmountRequested: st.Level.Size,
			TransactionCost: st.Cost,
			Side:            side,
		})
	}
	return out
}

// TotalCost sums TransactionCost over txs.
func TotalCost(txs []domain.AccumulatedTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.TransactionCost)
	}
	return sum
}

// TotalSize sums AmountRequested over txs.
func TotalSize(txs []domain.AccumulatedTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.AmountRequested)
	}
	return sum
}
