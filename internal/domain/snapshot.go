package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccumulatedTransaction is one price level consumed while walking a side of
// the book against a notional budget.
type AccumulatedTransaction struct {
	CoinPrice       decimal.Decimal `json:"coin_price"`
	AmountRequested decimal.Decimal `json:"amount_requested"`
	TransactionCost decimal.Decimal `json:"transaction_cost"`
	Side            Side            `json:"transaction_type"`
}

// Snapshot is the derived liquidity sample for one (exchange, symbol) pair in
// one run.
type Snapshot struct {
	RunID             string                   `json:"run_id"`
	TransactionID     string                   `json:"coin_transaction_id"`
	Exchange          string                   `json:"exchange"`
	Symbol            string                   `json:"coin"`
	Budget            decimal.Decimal          `json:"budget"`
	MidPrice          decimal.Decimal          `json:"mid_price"`
	ProfitOpportunity decimal.Decimal          `json:"profit_opportunity"`
	PullTimestamp     time.Time                `json:"pull_timestamp"`
	RunLength         time.Duration            `json:"run_length"`
	Bids              []AccumulatedTransaction `json:"bids,omitempty"`
	Asks              []AccumulatedTransaction `json:"asks,omitempty"`
}

// Summary is the scalar part of a Snapshot, one row of transactions_summary.
type Summary struct {
	RunID             string          `json:"run_id"`
	TransactionID     string          `json:"coin_transaction_id"`
	Exchange          string          `json:"exchange"`
	Symbol            string          `json:"coin"`
	Budget            decimal.Decimal `json:"budget"`
	MidPrice          decimal.Decimal `json:"mid_price"`
	ProfitOpportunity decimal.Decimal `json:"profit_opportunity"`
	PullTimestamp     time.Time       `json:"pull_timestamp"`
	RunLength         time.Duration   `json:"run_length"`
}

// Summary returns the scalar fields of s.
func (s Snapshot) Summary() Summary {
	return Summary{
		RunID:             s.RunID,
		TransactionID:     s.TransactionID,
		Exchange:          s.Exchange,
		Symbol:            s.Symbol,
		Budget:            s.Budget,
		MidPrice:          s.MidPrice,
		ProfitOpportunity: s.ProfitOpportunity,
		PullTimestamp:     s.PullTimestamp,
		RunLength:         s.RunLength,
	}
}

// TransactionRow is one row of optimal_transactions.
type TransactionRow struct {
	TransactionID string
	RunID         string
	Exchange      string
	Symbol        string
	LevelIndex    int
	PullTimestamp time.Time
	AccumulatedTransaction
}

// Rows flattens both accumulated sides into optimal_transactions rows, bids
// first, each side keeping its walk order.
func (s Snapshot) Rows() []TransactionRow {
	rows := make([]TransactionRow, 0, len(s.Bids)+len(s.Asks))
	for _, side := range [][]AccumulatedTransaction{s.Bids, s.Asks} {
		for i, tx := range side {
			rows = append(rows, TransactionRow{
				TransactionID:          s.TransactionID,
				RunID:                  s.RunID,
				Exchange:               s.Exchange,
				Symbol:                 s.Symbol,
				LevelIndex:             i,
				PullTimestamp:          s.PullTimestamp,
				AccumulatedTransaction: tx,
			})
		}
	}
	return rows
}
