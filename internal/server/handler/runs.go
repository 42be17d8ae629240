package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// RunsHandler serves persisted summaries and transactions.
type RunsHandler struct {
	summaries    domain.SummaryStore
	transactions domain.TransactionStore
	logger       *slog.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(summaries domain.SummaryStore, transactions domain.TransactionStore, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{summaries: summaries, transactions: transactions, logger: logger}
}

// ListSummaries returns the transactions_summary rows of one run.
// GET /api/runs/{id}/summaries
func (h *RunsHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "run id")
	if !ok {
		return
	}

	out, err := h.summaries.ListByRun(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list summaries failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}
	if out == nil {
		out = []domain.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "summaries": out})
}

type transactionJSON struct {
	LevelIndex int `json:"level_index"`
	domain.AccumulatedTransaction
}

// ListTransactions returns the optimal_transactions rows of one snapshot.
// GET /api/transactions/{id}
func (h *RunsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "transaction id")
	if !ok {
		return
	}

	rows, err := h.transactions.ListByTransactionID(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list transactions failed",
			slog.String("coin_transaction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no transactions for id")
		return
	}

	bids := []transactionJSON{}
	asks := []transactionJSON{}
	for _, row := range rows {
		tx := transactionJSON{LevelIndex: row.LevelIndex, AccumulatedTransaction: row.AccumulatedTransaction}
		if row.Side == domain.SideBid {
			bids = append(bids, tx)
		} else {
			asks = append(asks, tx)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coin_transaction_id": id,
		"exchange":            rows[0].Exchange,
		"symbol":              rows[0].Symbol,
		"run_id":              rows[0].RunID,
		"pull_timestamp":      rows[0].PullTimestamp.Unix(),
		"bids":                bids,
		"asks":                asks,
	})
}
