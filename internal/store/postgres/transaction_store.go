package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// TransactionStore implements domain.TransactionStore on optimal_transactions.
type TransactionStore struct {
	db DB
}

// NewTransactionStore creates a TransactionStore on db, a pool or a
// transaction.
func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionSelectCols = `coin_transaction_id, run_id, exchange, symbol,
	transaction_type, coin_price, amount_requested, transaction_cost,
	level_index, pull_timestamp`

// InsertBatch queues every row in a single pgx.Batch.
func (s *TransactionStore) InsertBatch(ctx context.Context, rows []domain.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO optimal_transactions (` + transactionSelectCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			r.TransactionID, r.RunID, r.Exchange, r.Symbol,
			string(r.Side), r.CoinPrice, r.AmountRequested, r.TransactionCost,
			r.LevelIndex, r.PullTimestamp.Unix(),
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert transaction batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByTransactionID returns the rows of one snapshot, bids before asks,
// each in walk order.
func (s *TransactionStore) ListByTransactionID(ctx context.Context, transactionID string) ([]domain.TransactionRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+transactionSelectCols+` FROM optimal_transactions
		 WHERE coin_transaction_id = $1
		 ORDER BY CASE transaction_type WHEN 'bid' THEN 0 ELSE 1 END, level_index`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", transactionID, err)
	}
	defer rows.Close()

	var out []domain.TransactionRow
	for rows.Next() {
		var (
			r        domain.TransactionRow
			side     string
			pulledAt int64
		)
		if err := rows.Scan(
			&r.TransactionID, &r.RunID, &r.Exchange, &r.Symbol,
			&side, &r.CoinPrice, &r.AmountRequested, &r.TransactionCost,
			&r.LevelIndex, &pulledAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		r.Side = domain.Side(side)
		r.PullTimestamp = time.Unix(pulledAt, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", transactionID, err)
	}
	return out, nil
}

var _ domain.TransactionStore = (*TransactionStore)(nil)
