package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/liquidity"
)

// DefaultReplayConcurrency bounds simultaneous blob decodes.
const DefaultReplayConcurrency = 4

// ReplayResult is the re-derived snapshot of one archived book.
type ReplayResult struct {
	Path     string
	Exchange string
	Symbol   string
	Bids     []domain.AccumulatedTransaction
	Asks     []domain.AccumulatedTransaction
	Metrics  liquidity.Metrics
	Err      error
}

// Replayer re-derives snapshots from archived raw books.
type Replayer struct {
	reader      domain.BlobReader
	budget      decimal.Decimal
	concurrency int
	logger      *slog.Logger
}

// NewReplayer creates a Replayer. concurrency <= 0 means
// DefaultReplayConcurrency.
func NewReplayer(reader domain.BlobReader, budget decimal.Decimal, concurrency int, logger *slog.Logger) *Replayer {
	if concurrency <= 0 {
		concurrency = DefaultReplayConcurrency
	}
	return &Replayer{
		reader:      reader,
		budget:      budget,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "replayer")),
	}
}

// Replay re-derives every .json book under prefix. Results keep listing
// order. A bad blob is reported in its result; only a listing failure or
// cancellation fails the whole replay.
//
// A prefix naming a single .json key replays just that book, and fails with
// domain.ErrNotFound when it is absent.
func (r *Replayer) Replay(ctx context.Context, prefix string) ([]ReplayResult, error) {
	paths, err := r.paths(ctx, prefix)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "replay started",
		slog.String("prefix", prefix),
		slog.Int("books", len(paths)),
		slog.Int("concurrency", r.concurrency),
	)

	results := make([]ReplayResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.replayOne(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("pipeline: replay %s: %w", prefix, err)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.InfoContext(ctx, "replay complete",
		slog.Int("books", len(results)),
		slog.Int("failed", failed),
	)
	return results, nil
}

func (r *Replayer) paths(ctx context.Context, prefix string) ([]string, error) {
	if strings.HasSuffix(prefix, ".json") {
		ok, err := r.reader.Exists(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("pipeline: replay stat %s: %w", prefix, err)
		}
		if !ok {
			return nil, fmt.Errorf("pipeline: replay %s: %w", prefix, domain.ErrNotFound)
		}
		return []string{prefix}, nil
	}

	infos, err := r.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("pipeline: replay list %s: %w", prefix, err)
	}
	var paths []string
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".json") {
			paths = append(paths, info.Path)
		}
	}
	return paths, nil
}

func (r *Replayer) replayOne(ctx context.Context, path string) ReplayResult {
	res := ReplayResult{Path: path}
	book, err := r.load(ctx, path)
	if err != nil {
		res.Err = err
		r.logger.WarnContext(ctx, "replay book failed", slog.String("path", path), slog.String("error", err.Error()))
		return res
	}
	res.Exchange, res.Symbol = book.Exchange, book.Symbol

	res.Bids = liquidity.Accumulate(book.Bids, r.budget, domain.SideBid)
	res.Asks = liquidity.Accumulate(book.Asks, r.budget, domain.SideAsk)
	res.Metrics, res.Err = liquidity.Derive(book.Bids, book.Asks, res.Bids, res.Asks)
	if res.Err != nil {
		r.logger.WarnContext(ctx, "replay book failed", slog.String("path", path), slog.String("error", res.Err.Error()))
		return res
	}

	r.logger.InfoContext(ctx, "replayed",
		slog.String("path", path),
		slog.String("exchange", book.Exchange),
		slog.String("symbol", book.Symbol),
		slog.String("mid_price", res.Metrics.MidPrice.String()),
		slog.String("profit_opportunity", res.Metrics.ProfitOpportunity.String()),
	)
	return res
}

func (r *Replayer) load(ctx context.Context, path string) (domain.OrderBook, error) {
	body, err := r.reader.Get(ctx, path)
	if err != nil {
		return domain.OrderBook{}, err
	}
	defer body.Close()

	var book domain.OrderBook
	if err := json.NewDecoder(body).Decode(&book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return book, nil
}
