package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// StreamHandler relays published summaries as server-sent events.
type StreamHandler struct {
	feed   domain.SummaryFeed
	logger *slog.Logger
}

// NewStreamHandler creates a StreamHandler reading from feed.
func NewStreamHandler(feed domain.SummaryFeed, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{feed: feed, logger: logger}
}

// StreamSummaries writes one "summary" event per persisted snapshot until the
// client disconnects or the feed closes.
// GET /api/summaries/stream
func (h *StreamHandler) StreamSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	summaries, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "summary subscribe failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "summary feed unavailable")
		return
	}

	// The server's write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "summary stream cannot flush", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-summaries:
			if !ok {
				return
			}
			data, err := json.Marshal(s)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: summary\ndata: %s\n\n", s.TransactionID, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
