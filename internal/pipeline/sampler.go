// Package pipeline turns configured targets into persisted liquidity
// snapshots, one run at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/liquidity"
	"github.com/alanyoungcy/booksampler/internal/metrics"
	"github.com/alanyoungcy/booksampler/internal/notify"
)

// Target is one symbol on one exchange. Limiter, when set, is waited on
// before every fetch under the exchange name. Time spent waiting is not part
// of the snapshot's pull timestamp or run length.
type Target struct {
	Source  domain.OrderBookSource
	Symbol  string
	Limiter domain.FetchLimiter
}

// Sampler fetches, accumulates, derives and persists every target in order.
type Sampler struct {
	targets   []Target
	budget    decimal.Decimal
	archive   domain.BookArchive
	recorder  domain.SnapshotRecorder
	publisher domain.SnapshotPublisher
	notifier  *notify.Notifier
	metrics   *metrics.Collector
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewSampler creates a Sampler. archive and recorder are both required.
func NewSampler(
	targets []Target,
	budget decimal.Decimal,
	archive domain.BookArchive,
	recorder domain.SnapshotRecorder,
	logger *slog.Logger,
) *Sampler {
	return &Sampler{
		targets:  targets,
		budget:   budget,
		archive:  archive,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "sampler")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithPublisher broadcasts each persisted summary through p.
func (s *Sampler) WithPublisher(p domain.SnapshotPublisher) *Sampler {
	s.publisher = p
	return s
}

// WithNotifier sends sample_failed and run_complete events through n.
func (s *Sampler) WithNotifier(n *notify.Notifier) *Sampler {
	s.notifier = n
	return s
}

// WithMetrics records outcomes and derived values on c.
func (s *Sampler) WithMetrics(c *metrics.Collector) *Sampler {
	s.metrics = c
	return s
}

// Targets returns the configured targets in run order.
func (s *Sampler) Targets() []Target {
	return s.targets
}

// Run samples every target under runID. A failing target never stops the
// ones after it. ctx is only checked between targets; a target that has
// started runs to completion, bounded by its adapter's timeout.
func (s *Sampler) Run(ctx context.Context, runID string) RunReport {
	report := RunReport{RunID: runID, Started: s.now()}
	log := s.logger.With(slog.String("run_id", runID))
	log.InfoContext(ctx, "run started",
		slog.Int("targets", len(s.targets)),
		slog.String("budget", s.budget.String()),
	)

	work := context.WithoutCancel(ctx)
	for i, t := range s.targets {
		if ctx.Err() != nil {
			report.Skipped = len(s.targets) - i
			log.WarnContext(ctx, "run cancelled",
				slog.Int("skipped", report.Skipped),
				slog.String("error", ctx.Err().Error()),
			)
			break
		}
		report.Results = append(report.Results, s.sample(work, log, runID, t))
	}

	report.Finished = s.now()
	failed := report.Failed()
	log.InfoContext(ctx, "run complete",
		slog.Int("sampled", len(report.Results)-failed),
		slog.Int("failed", failed),
		slog.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	s.notify(work, notify.EventRunComplete,
		fmt.Sprintf("Run %s complete", runID),
		fmt.Sprintf("%d of %d targets sampled, %d failed", len(report.Results)-failed, len(s.targets), failed),
	)
	return report
}

func (s *Sampler) sample(ctx context.Context, log *slog.Logger, runID string, t Target) TargetResult {
	res := TargetResult{Exchange: t.Source.Name(), Symbol: t.Symbol, Stage: StageIdle}
	log = log.With(slog.String("exchange", res.Exchange), slog.String("symbol", res.Symbol))

	res.Stage = StageFetching
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx, res.Exchange); err != nil {
			return s.fail(ctx, log, res, metrics.OutcomeFetchFailed, fmt.Errorf("rate limit: %w", err))
		}
	}
	started := s.now()
	book, err := t.Source.Fetch(ctx, t.Symbol)
	if err != nil {
		return s.fail(ctx, log, res, metrics.OutcomeFetchFailed, fmt.Errorf("fetch: %w", err))
	}

	res.Stage = StageAccumulating
	accBids := liquidity.Accumulate(book.Bids, s.budget, domain.SideBid)
	accAsks := liquidity.Accumulate(book.Asks, s.budget, domain.SideAsk)

	res.Stage = StageDeriving
	m, err := liquidity.Derive(book.Bids, book.Asks, accBids, accAsks)
	if err != nil {
		return s.fail(ctx, log, res, metrics.OutcomeDeriveFailed, err)
	}
	runLength := s.now().Sub(started)

	snap := &domain.Snapshot{
		RunID:             runID,
		TransactionID:     s.newID(),
		Exchange:          res.Exchange,
		Symbol:            res.Symbol,
		Budget:            s.budget,
		MidPrice:          m.MidPrice,
		ProfitOpportunity: m.ProfitOpportunity,
		PullTimestamp:     started,
		RunLength:         runLength,
		Bids:              accBids,
		Asks:              accAsks,
	}
	res.Snapshot = snap
	if s.metrics != nil {
		s.metrics.ObserveSnapshot(res.Exchange, res.Symbol, runLength, m.MidPrice, m.ProfitOpportunity)
	}

	res.Stage = StagePersisting
	path, archiveErr := s.archive.Archive(ctx, runID, book)
	res.ArchivePath = path
	recordErr := s.recorder.Record(ctx, *snap)
	if err := errors.Join(archiveErr, recordErr); err != nil {
		res.PersistErr = err
		return s.fail(ctx, log, res, metrics.OutcomePersistFailed, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSummary(ctx, snap.Summary()); err != nil {
			log.WarnContext(ctx, "publish summary failed", slog.String("error", err.Error()))
		}
	}

	res.Stage = StageDone
	if s.metrics != nil {
		s.metrics.ObserveOutcome(res.Exchange, res.Symbol, metrics.OutcomeOK)
	}
	log.InfoContext(ctx, "sampled",
		slog.String("transaction_id", snap.TransactionID),
		slog.String("mid_price", snap.MidPrice.String()),
		slog.String("profit_opportunity", snap.ProfitOpportunity.String()),
		slog.Int("bid_levels", len(accBids)),
		slog.Int("ask_levels", len(accAsks)),
		slog.String("bid_cost", liquidity.TotalCost(accBids).String()),
		slog.String("ask_cost", liquidity.TotalCost(accAsks).String()),
		slog.Duration("run_length", runLength),
		slog.String("archive_path", path),
	)
	return res
}

func (s *Sampler) fail(ctx context.Context, log *slog.Logger, res TargetResult, outcome string, err error) TargetResult {
	res.FailedAt = res.Stage
	res.Stage = StageFailed
	if res.PersistErr == nil {
		res.Err = err
	}
	if s.metrics != nil {
		s.metrics.ObserveOutcome(res.Exchange, res.Symbol, outcome)
	}

	log.ErrorContext(ctx, "sample failed",
		slog.String("stage", res.FailedAt.String()),
		slog.String("error", err.Error()),
	)
	s.notify(ctx, notify.EventSampleFailed,
		fmt.Sprintf("Sample failed: %s %s", res.Exchange, res.Symbol),
		fmt.Sprintf("stage %s: %v", res.FailedAt, err),
	)
	return res
}

func (s *Sampler) notify(ctx context.Context, event, title, message string) {
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
