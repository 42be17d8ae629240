package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Recorder implements domain.SnapshotRecorder. The summary row and its
// transaction rows commit together or not at all.
type Recorder struct {
	db txBeginner
}

// NewRecorder creates a Recorder on the client's pool.
func NewRecorder(c *Client) *Recorder {
	return &Recorder{db: c.Pool()}
}

// Record writes snap in a single database transaction.
func (r *Recorder) Record(ctx context.Context, snap domain.Snapshot) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := NewSummaryStore(tx).Insert(ctx, snap.Summary()); err != nil {
			return err
		}
		return NewTransactionStore(tx).InsertBatch(ctx, snap.Rows())
	})
	if err != nil {
		return fmt.Errorf("postgres: record %s/%s: %w", snap.Exchange, snap.Symbol, err)
	}
	return nil
}

var _ domain.SnapshotRecorder = (*Recorder)(nil)
