package domain

import (
	"context"
)

// SnapshotRecorder persists a derived snapshot: one transactions_summary row
// plus one optimal_transactions row per accumulated level.
type SnapshotRecorder interface {
	Record(ctx context.Context, snap Snapshot) error
}

// SummaryStore persists and queries transactions_summary rows.
type SummaryStore interface {
	Insert(ctx context.Context, s Summary) error
	ListByRun(ctx context.Context, runID string) ([]Summary, error)
}

// TransactionStore persists and queries optimal_transactions rows.
type TransactionStore interface {
	InsertBatch(ctx context.Context, rows []TransactionRow) error
	ListByTransactionID(ctx context.Context, transactionID string) ([]TransactionRow, error)
}
