package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/metrics"
	"github.com/alanyoungcy/booksampler/internal/notify"
)

func workedExampleBook() domain.OrderBook {
	return domain.OrderBook{
		Bids: []domain.PriceLevel{lvl("100", "1"), lvl("99", "2")},
		Asks: []domain.PriceLevel{lvl("101", "1"), lvl("102", "5")},
	}
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time {
	c.t = c.t.Add(250 * time.Millisecond)
	return c.t
}

func newTestSampler(targets []Target, archive *fakeArchive, recorder *fakeRecorder) *Sampler {
	s := NewSampler(targets, decimal.NewFromInt(150), archive, recorder, discardLogger())
	clock := &testClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	s.now = clock.now
	n := 0
	s.newID = func() string {
		n++
		return []string{"tx-1", "tx-2", "tx-3", "tx-4"}[n-1]
	}
	return s
}

func TestSamplerWorkedExample(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	archive, recorder, pub := &fakeArchive{}, &fakeRecorder{}, &fakePublisher{}
	s := newTestSampler([]Target{{Source: src, Symbol: "BTCUSDT"}}, archive, recorder).WithPublisher(pub)

	report := s.Run(context.Background(), "run-1")

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	require.True(t, res.OK(), "err=%v persist=%v", res.Err, res.PersistErr)
	assert.Equal(t, StageDone, res.Stage)
	assert.Zero(t, report.Failed())

	require.Len(t, recorder.snaps, 1)
	snap := recorder.snaps[0]
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "tx-1", snap.TransactionID)
	assert.True(t, snap.MidPrice.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, snap.ProfitOpportunity.IsZero())
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Bids[0].CoinPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, snap.Asks[0].CoinPrice.Equal(decimal.NewFromInt(101)))

	// Fetch start is the second clock reading; derive end is the third.
	assert.Equal(t, time.Date(2026, 10, 17, 12, 0, 0, 500_000_000, time.UTC), snap.PullTimestamp)
	assert.Equal(t, 250*time.Millisecond, snap.RunLength)

	assert.Equal(t, []string{"run-1"}, archive.runs)
	assert.Equal(t, "order_books/binance/BTCUSDT/run-1.json", res.ArchivePath)
	require.Len(t, pub.summaries, 1)
	assert.Equal(t, "tx-1", pub.summaries[0].TransactionID)
}

func TestSamplerUnavailableSourceDoesNotStopLaterTargets(t *testing.T) {
	down := &fakeSource{name: "coinbase", errs: map[string]error{
		"BTC-USD": &domain.SourceUnavailableError{Exchange: "coinbase", StatusCode: 503},
	}}
	up := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	recorder := &fakeRecorder{}
	s := newTestSampler([]Target{
		{Source: down, Symbol: "BTC-USD"},
		{Source: up, Symbol: "BTCUSDT"},
	}, &fakeArchive{}, recorder)

	report := s.Run(context.Background(), "run-2")

	require.Len(t, report.Results, 2)
	first := report.Results[0]
	assert.Equal(t, StageFailed, first.Stage)
	assert.Equal(t, StageFetching, first.FailedAt)
	assert.ErrorIs(t, first.Err, domain.ErrSourceUnavailable)
	assert.Nil(t, first.Snapshot)

	assert.True(t, report.Results[1].OK())
	assert.Equal(t, 1, report.Failed())
	require.Len(t, recorder.snaps, 1)
	assert.Equal(t, "binance", recorder.snaps[0].Exchange)
}

func TestSamplerMalformedLevelDoesNotStopLaterTargets(t *testing.T) {
	bad := &fakeSource{name: "coinbase", errs: map[string]error{
		"ETH-USD": &domain.MalformedLevelError{
			Side: domain.SideAsk, Index: 2, Field: "price", Value: "n/a", Err: errors.New("can't convert n/a to decimal"),
		},
	}}
	good := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"ETHUSDT": workedExampleBook()}}
	archive, recorder := &fakeArchive{}, &fakeRecorder{}
	s := newTestSampler([]Target{
		{Source: bad, Symbol: "ETH-USD"},
		{Source: good, Symbol: "ETHUSDT"},
	}, archive, recorder)

	report := s.Run(context.Background(), "run-malformed")

	require.Len(t, report.Results, 2)
	first := report.Results[0]
	assert.Equal(t, StageFailed, first.Stage)
	assert.Equal(t, StageFetching, first.FailedAt)
	assert.ErrorIs(t, first.Err, domain.ErrMalformedLevel)
	var mle *domain.MalformedLevelError
	require.ErrorAs(t, first.Err, &mle)
	assert.Equal(t, 2, mle.Index)
	assert.Nil(t, first.Snapshot)

	assert.True(t, report.Results[1].OK())
	assert.Equal(t, []string{"run-malformed"}, archive.runs)
	require.Len(t, recorder.snaps, 1)
	assert.Equal(t, "ETHUSDT", recorder.snaps[0].Symbol)
}

func TestSamplerEmptyBookFailsAtDerive(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{
		"DEADUSDT": {Bids: []domain.PriceLevel{lvl("1", "1")}},
	}}
	archive, recorder := &fakeArchive{}, &fakeRecorder{}
	s := newTestSampler([]Target{{Source: src, Symbol: "DEADUSDT"}}, archive, recorder)

	res := s.Run(context.Background(), "run-3").Results[0]

	assert.Equal(t, StageDeriving, res.FailedAt)
	assert.ErrorIs(t, res.Err, domain.ErrEmptyBook)
	assert.Empty(t, archive.runs)
	assert.Empty(t, recorder.snaps)
}

func TestSamplerPersistFailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	archive := &fakeArchive{err: errors.New("bucket gone")}
	recorder := &fakeRecorder{}
	pub := &fakePublisher{}
	s := newTestSampler([]Target{{Source: src, Symbol: "BTCUSDT"}}, archive, recorder).WithPublisher(pub)

	res := s.Run(context.Background(), "run-4").Results[0]

	assert.Equal(t, StageFailed, res.Stage)
	assert.Equal(t, StagePersisting, res.FailedAt)
	assert.NoError(t, res.Err)
	require.Error(t, res.PersistErr)
	assert.Contains(t, res.PersistErr.Error(), "bucket gone")
	require.NotNil(t, res.Snapshot)
	assert.True(t, res.Snapshot.MidPrice.Equal(decimal.RequireFromString("100.5")))

	// The relational write is still attempted after an archive failure.
	assert.Len(t, recorder.snaps, 1)
	assert.Empty(t, pub.summaries)
}

func TestSamplerPublishFailureIsNotAFailure(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	s := newTestSampler([]Target{{Source: src, Symbol: "BTCUSDT"}}, &fakeArchive{}, &fakeRecorder{}).
		WithPublisher(&fakePublisher{err: errors.New("redis down")})

	assert.Zero(t, s.Run(context.Background(), "run-5").Failed())
}

func TestSamplerCancellationBetweenTargets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}, hook: cancel}
	second := &fakeSource{name: "coinbase", books: map[string]domain.OrderBook{"BTC-USD": workedExampleBook()}}
	recorder := &fakeRecorder{}
	s := newTestSampler([]Target{
		{Source: first, Symbol: "BTCUSDT"},
		{Source: second, Symbol: "BTC-USD"},
	}, &fakeArchive{}, recorder)

	report := s.Run(ctx, "run-6")

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].OK(), "a started target completes despite cancellation")
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, second.calls)
	assert.Len(t, recorder.snaps, 1)
}

type countingSender struct{ titles []string }

func (c *countingSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return nil
}

func (c *countingSender) Name() string { return "counting" }

func TestSamplerNotifiesAndCounts(t *testing.T) {
	down := &fakeSource{name: "coinbase", errs: map[string]error{"ETH-USD": domain.ErrSourceUnavailable}}
	up := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	sender := &countingSender{}
	collector := metrics.New()
	s := newTestSampler([]Target{
		{Source: down, Symbol: "ETH-USD"},
		{Source: up, Symbol: "BTCUSDT"},
	}, &fakeArchive{}, &fakeRecorder{}).
		WithNotifier(notify.NewNotifier([]notify.Sender{sender}, nil, discardLogger())).
		WithMetrics(collector)

	s.Run(context.Background(), "run-7")

	assert.Equal(t, []string{"Sample failed: coinbase ETH-USD", "Run run-7 complete"}, sender.titles)
}

func TestRunReportSnapshots(t *testing.T) {
	snap := domain.Snapshot{TransactionID: "a"}
	r := RunReport{Results: []TargetResult{
		{Stage: StageDone, Snapshot: &snap},
		{Stage: StageFailed},
	}}
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, []domain.Snapshot{snap}, r.Snapshots())
	assert.Equal(t, "persisting", StagePersisting.String())
	assert.Equal(t, "unknown", Stage(99).String())
}

type fakeLimiter struct {
	keys []string
	err  error
	hook func()
}

func (f *fakeLimiter) Wait(_ context.Context, key string) error {
	f.keys = append(f.keys, key)
	if f.hook != nil {
		f.hook()
	}
	return f.err
}

func TestSamplerWaitsOnLimiterBeforeFetch(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{
		"BTCUSDT": workedExampleBook(),
		"ETHUSDT": workedExampleBook(),
	}}
	limiter := &fakeLimiter{}
	s := newTestSampler([]Target{
		{Source: src, Symbol: "BTCUSDT", Limiter: limiter},
		{Source: src, Symbol: "ETHUSDT", Limiter: limiter},
	}, &fakeArchive{}, &fakeRecorder{})

	report := s.Run(context.Background(), "run-rl")

	assert.Zero(t, report.Failed())
	assert.Equal(t, []string{"binance", "binance"}, limiter.keys)
}

func TestSamplerLimiterFailureIsFetchFailure(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	limiter := &fakeLimiter{err: errors.New("redis down")}
	s := newTestSampler([]Target{{Source: src, Symbol: "BTCUSDT", Limiter: limiter}}, &fakeArchive{}, &fakeRecorder{})

	res := s.Run(context.Background(), "run-rl2").Results[0]

	assert.Equal(t, StageFetching, res.FailedAt)
	assert.ErrorContains(t, res.Err, "rate limit: redis down")
	assert.Empty(t, src.calls)
}

func TestSamplerLimiterWaitExcludedFromTiming(t *testing.T) {
	src := &fakeSource{name: "binance", books: map[string]domain.OrderBook{"BTCUSDT": workedExampleBook()}}
	recorder := &fakeRecorder{}
	clock := &testClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	limiter := &fakeLimiter{hook: func() { clock.t = clock.t.Add(10 * time.Second) }}
	s := newTestSampler([]Target{{Source: src, Symbol: "BTCUSDT", Limiter: limiter}}, &fakeArchive{}, recorder)
	s.now = clock.now

	report := s.Run(context.Background(), "run-rl3")

	require.True(t, report.Results[0].OK())
	require.Len(t, recorder.snaps, 1)
	snap := recorder.snaps[0]
	assert.Equal(t, time.Date(2026, 10, 17, 12, 0, 10, 500_000_000, time.UTC), snap.PullTimestamp)
	assert.Equal(t, 250*time.Millisecond, snap.RunLength)
}
