package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/booksampler/internal/pipeline"
)

// ReportSource is satisfied by *pipeline.Orchestrator.
type ReportSource interface {
	LastReport() (pipeline.RunReport, bool)
}

// StatusHandler serves the mode and the outcome of the latest run.
type StatusHandler struct {
	mode    string
	reports ReportSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, reports ReportSource) *StatusHandler {
	return &StatusHandler{mode: mode, reports: reports}
}

type targetStatus struct {
	Exchange      string `json:"exchange"`
	Symbol        string `json:"symbol"`
	Stage         string `json:"stage"`
	FailedAt      string `json:"failed_at,omitempty"`
	TransactionID string `json:"coin_transaction_id,omitempty"`
	MidPrice      string `json:"mid_price,omitempty"`
	Profit        string `json:"profit_opportunity,omitempty"`
	Error         string `json:"error,omitempty"`
}

type runStatus struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Targets  []targetStatus `json:"targets"`
}

// GetStatus responds with the mode and, once a run has completed, its report.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"mode": h.mode}
	if report, ok := h.reports.LastReport(); ok {
		body["last_run"] = toRunStatus(report)
	}
	writeJSON(w, http.StatusOK, body)
}

func toRunStatus(r pipeline.RunReport) runStatus {
	out := runStatus{
		RunID:    r.RunID,
		Started:  r.Started,
		Finished: r.Finished,
		Failed:   r.Failed(),
		Skipped:  r.Skipped,
		Targets:  make([]targetStatus, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		ts := targetStatus{Exchange: res.Exchange, Symbol: res.Symbol, Stage: res.Stage.String()}
		if !res.OK() {
			ts.FailedAt = res.FailedAt.String()
		}
		if res.Snapshot != nil {
			ts.TransactionID = res.Snapshot.TransactionID
			ts.MidPrice = res.Snapshot.MidPrice.String()
			ts.Profit = res.Snapshot.ProfitOpportunity.String()
		}
		switch {
		case res.Err != nil:
			ts.Error = res.Err.Error()
		case res.PersistErr != nil:
			ts.Error = res.PersistErr.Error()
		}
		out.Targets = append(out.Targets, ts)
	}
	return out
}
