package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/pipeline"
	"github.com/alanyoungcy/booksampler/internal/server/handler"
)

const (
	runID = "0b8f3c2e-5d1a-4c7e-9f00-1a2b3c4d5e6f"
	txID  = "7d4e1f90-2b3c-4d5e-8f6a-0b1c2d3e4f50"
)

type fakeReports struct{ report *pipeline.RunReport }

func (f fakeReports) LastReport() (pipeline.RunReport, bool) {
	if f.report == nil {
		return pipeline.RunReport{}, false
	}
	return *f.report, true
}

type fakeSummaries struct {
	rows []domain.Summary
	err  error
}

func (f fakeSummaries) Insert(context.Context, domain.Summary) error { return nil }
func (f fakeSummaries) ListByRun(context.Context, string) ([]domain.Summary, error) {
	return f.rows, f.err
}

type fakeTransactions struct{ rows []domain.TransactionRow }

func (f fakeTransactions) InsertBatch(context.Context, []domain.TransactionRow) error { return nil }
func (f fakeTransactions) ListByTransactionID(context.Context, string) ([]domain.TransactionRow, error) {
	return f.rows, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, apiKey string, checks map[string]handler.Check, report *pipeline.RunReport, trigger chan struct{}) http.Handler {
	t.Helper()
	log := discardLogger()
	d := decimal.RequireFromString
	summaries := fakeSummaries{rows: []domain.Summary{{RunID: runID, TransactionID: txID, Exchange: "binance", Symbol: "BTCUSDT", MidPrice: d("100.5")}}}
	transactions := fakeTransactions{rows: []domain.TransactionRow{
		{TransactionID: txID, RunID: runID, Exchange: "binance", Symbol: "BTCUSDT", LevelIndex: 0,
			PullTimestamp:          time.Unix(1_760_000_000, 0),
			AccumulatedTransaction: domain.AccumulatedTransaction{CoinPrice: d("100"), AmountRequested: d("1"), TransactionCost: d("100"), Side: domain.SideBid}},
		{TransactionID: txID, RunID: runID, Exchange: "binance", Symbol: "BTCUSDT", LevelIndex: 0,
			PullTimestamp:          time.Unix(1_760_000_000, 0),
			AccumulatedTransaction: domain.AccumulatedTransaction{CoinPrice: d("101"), AmountRequested: d("1"), TransactionCost: d("101"), Side: domain.SideAsk}},
	}}

	h := Handlers{
		Health:  handler.NewHealthHandler(checks, log),
		Status:  handler.NewStatusHandler("loop", fakeReports{report: report}),
		Runs:    handler.NewRunsHandler(summaries, transactions, log),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	}
	if trigger != nil {
		h.Trigger = handler.NewTriggerHandler(trigger, log)
	}
	return NewServer(Config{Addr: ":0", APIKey: apiKey}, h, log).Handler()
}

func do(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, "secret", map[string]handler.Check{
		"postgres": func(context.Context) error { return nil },
	}, nil, nil)
	rec := do(h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no key")
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

	h = newTestServer(t, "", map[string]handler.Check{
		"s3": func(context.Context) error { return errors.New("bucket missing") },
	}, nil, nil)
	rec = do(h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket missing")
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, "secret", nil, nil, nil)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/status", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/status", map[string]string{"Authorization": "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/status", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", nil).Code)
}

func TestStatusIncludesLastRun(t *testing.T) {
	snap := domain.Snapshot{TransactionID: txID, MidPrice: decimal.RequireFromString("100.5"), ProfitOpportunity: decimal.Zero}
	report := &pipeline.RunReport{RunID: runID, Results: []pipeline.TargetResult{
		{Exchange: "binance", Symbol: "BTCUSDT", Stage: pipeline.StageDone, Snapshot: &snap},
		{Exchange: "coinbase", Symbol: "BTC-USD", Stage: pipeline.StageFailed, FailedAt: pipeline.StageFetching, Err: domain.ErrSourceUnavailable},
	}}
	rec := do(newTestServer(t, "", nil, report, nil), http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mode    string `json:"mode"`
		LastRun struct {
			RunID   string `json:"run_id"`
			Failed  int    `json:"failed"`
			Targets []struct {
				Stage    string `json:"stage"`
				FailedAt string `json:"failed_at"`
				MidPrice string `json:"mid_price"`
				Error    string `json:"error"`
			} `json:"targets"`
		} `json:"last_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "loop", body.Mode)
	assert.Equal(t, runID, body.LastRun.RunID)
	assert.Equal(t, 1, body.LastRun.Failed)
	require.Len(t, body.LastRun.Targets, 2)
	assert.Equal(t, "100.5", body.LastRun.Targets[0].MidPrice)
	assert.Equal(t, "fetching", body.LastRun.Targets[1].FailedAt)
	assert.Contains(t, body.LastRun.Targets[1].Error, "source unavailable")
}

func TestRunsEndpoints(t *testing.T) {
	h := newTestServer(t, "", nil, nil, nil)

	rec := do(h, http.MethodGet, "/api/runs/"+runID+"/summaries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"coin":"BTCUSDT"`)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/runs/not-a-uuid/summaries", nil).Code)

	rec = do(h, http.MethodGet, "/api/transactions/"+txID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"bids":[{"level_index":0,"coin_price":"100"`), body)
	assert.Contains(t, body, `"pull_timestamp":1760000000`)
}

func TestTrigger(t *testing.T) {
	trigger := make(chan struct{}, 1)
	h := newTestServer(t, "", nil, nil, trigger)

	rec := do(h, http.MethodPost, "/api/runs/trigger", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued":true`)

	rec = do(h, http.MethodPost, "/api/runs/trigger", nil)
	assert.Contains(t, rec.Body.String(), `"queued":false`)
	assert.Len(t, trigger, 1)

	assert.Equal(t, http.StatusNotFound, do(newTestServer(t, "", nil, nil, nil), http.MethodPost, "/api/runs/trigger", nil).Code)
}

type fakeFeed struct {
	summaries []domain.Summary
	err       error
}

func (f fakeFeed) Subscribe(context.Context) (<-chan domain.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.Summary, len(f.summaries))
	for _, s := range f.summaries {
		ch <- s
	}
	close(ch)
	return ch, nil
}

func newStreamServer(feed domain.SummaryFeed, apiKey string) http.Handler {
	log := discardLogger()
	return NewServer(Config{Addr: ":0", APIKey: apiKey}, Handlers{
		Health: handler.NewHealthHandler(nil, log),
		Status: handler.NewStatusHandler("loop", fakeReports{}),
		Stream: handler.NewStreamHandler(feed, log),
	}, log).Handler()
}

func TestSummaryStream(t *testing.T) {
	feed := fakeFeed{summaries: []domain.Summary{
		{RunID: runID, TransactionID: txID, Exchange: "binance", Symbol: "BTCUSDT", MidPrice: decimal.RequireFromString("100.5")},
		{RunID: runID, TransactionID: "tx-2", Exchange: "coinbase", Symbol: "BTC-USD"},
	}}
	h := newStreamServer(feed, "secret")

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/summaries/stream", nil).Code)

	rec := do(h, http.MethodGet, "/api/summaries/stream", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, events, 2)
	assert.True(t, strings.HasPrefix(events[0], "id: "+txID+"\nevent: summary\ndata: {"), events[0])
	assert.Contains(t, events[0], `"mid_price":"100.5"`)
	assert.Contains(t, events[1], `"coin":"BTC-USD"`)
}

func TestSummaryStreamUnavailable(t *testing.T) {
	h := newStreamServer(fakeFeed{err: errors.New("redis down")}, "")
	rec := do(h, http.MethodGet, "/api/summaries/stream", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "summary feed unavailable")
}
