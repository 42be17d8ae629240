package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// TriggerHandler asks the run loop for an out-of-schedule run.
type TriggerHandler struct {
	triggerCh chan<- struct{}
	logger    *slog.Logger
}

// NewTriggerHandler creates a TriggerHandler sending on ch.
func NewTriggerHandler(ch chan<- struct{}, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{triggerCh: ch, logger: logger}
}

// TriggerRun enqueues one run. A trigger already pending absorbs this one.
// POST /api/runs/trigger
func (h *TriggerHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	queued := true
	select {
	case h.triggerCh <- struct{}{}:
	default:
		queued = false
	}
	h.logger.InfoContext(r.Context(), "run trigger requested", slog.Bool("queued", queued))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"queued":       queued,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
