package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// SummaryStore implements domain.SummaryStore on transactions_summary.
type SummaryStore struct {
	db DB
}

// NewSummaryStore creates a SummaryStore on db, a pool or a transaction.
func NewSummaryStore(db DB) *SummaryStore {
	return &SummaryStore{db: db}
}

const summarySelectCols = `coin_transaction_id, run_id, exchange, coin, budget,
	mid_price, profit_opportunity, pull_timestamp, run_length_ms`

// Insert writes one summary row.
func (s *SummaryStore) Insert(ctx context.Context, sum domain.Summary) error {
	const query = `
		INSERT INTO transactions_summary (` + summarySelectCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		sum.TransactionID, sum.RunID, sum.Exchange, sum.Symbol, sum.Budget,
		sum.MidPrice, sum.ProfitOpportunity,
		sum.PullTimestamp.Unix(), sum.RunLength.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert summary %s: %w", sum.TransactionID, err)
	}
	return nil
}

// ListByRun returns the summaries written by one run, ordered by exchange
// and coin.
func (s *SummaryStore) ListByRun(ctx context.Context, runID string) ([]domain.Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+summarySelectCols+` FROM transactions_summary
		 WHERE run_id = $1 ORDER BY exchange, coin`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list summaries for run %s: %w", runID, err)
	}
	defer rows.Close()

	out, err := scanSummaryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan summaries for run %s: %w", runID, err)
	}
	return out, nil
}

func scanSummaryRows(rows pgx.Rows) ([]domain.Summary, error) {
	var out []domain.Summary
	for rows.Next() {
		var (
			sum         domain.Summary
			pulledAt    int64
			runLengthMS int64
		)
		if err := rows.Scan(
			&sum.TransactionID, &sum.RunID, &sum.Exchange, &sum.Symbol, &sum.Budget,
			&sum.MidPrice, &sum.ProfitOpportunity, &pulledAt, &runLengthMS,
		); err != nil {
			return nil, err
		}
		sum.PullTimestamp = time.Unix(pulledAt, 0).UTC()
		sum.RunLength = time.Duration(runLengthMS) * time.Millisecond
		out = append(out, sum)
	}
	return out, rows.Err()
}

var _ domain.SummaryStore = (*SummaryStore)(nil)
