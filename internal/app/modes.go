package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/booksampler/internal/domain"
	"github.com/alanyoungcy/booksampler/internal/pipeline"
	"github.com/alanyoungcy/booksampler/internal/server"
	"github.com/alanyoungcy/booksampler/internal/server/handler"
)

func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	sampler := pipeline.NewSampler(deps.Targets, a.cfg.Sampler.Budget, deps.Archive, deps.Recorder, a.logger).
		WithNotifier(deps.Notifier)
	if deps.Publisher != nil {
		sampler.WithPublisher(deps.Publisher)
	}
	if deps.Metrics != nil {
		sampler.WithMetrics(deps.Metrics)
	}
	return pipeline.NewOrchestrator(sampler, deps.LockManager, a.logger)
}

// OnceMode performs a single run and returns. Per-target failures are in the
// logs, not the exit status.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	report, err := a.newOrchestrator(deps).RunOnce(ctx)
	if errors.Is(err, domain.ErrLockHeld) {
		a.logger.WarnContext(ctx, "another instance is mid-run, nothing sampled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("app: once: %w", err)
	}
	a.logger.InfoContext(ctx, "once mode finished",
		slog.String("run_id", report.RunID),
		slog.Int("results", len(report.Results)),
		slog.Int("snapshots", len(report.Snapshots())),
		slog.Int("failed", report.Failed()),
	)
	return nil
}

// LoopMode runs the sampler every sampler.interval, alongside the metrics
// endpoint and the inspection API when enabled, until ctx is cancelled.
func (a *App) LoopMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	orch := a.newOrchestrator(deps)
	if a.cfg.Server.Enabled {
		trigger := make(chan struct{}, 1)
		orch.WithTrigger(trigger)
		srv := a.newServer(deps, orch, trigger)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	}

	g.Go(func() error {
		err := orch.RunLoop(ctx, a.cfg.Sampler.Interval.Duration)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run loop: %w", err)
	})

	if deps.Metrics != nil {
		g.Go(func() error {
			a.logger.InfoContext(ctx, "metrics server listening", slog.String("addr", a.cfg.Metrics.Addr))
			return deps.Metrics.Serve(ctx, a.cfg.Metrics.Addr)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: loop: %w", err)
	}
	return nil
}

func (a *App) newServer(deps *Dependencies, orch *pipeline.Orchestrator, trigger chan<- struct{}) *server.Server {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, orch),
		Trigger: handler.NewTriggerHandler(trigger, a.logger),
	}
	if deps.SummaryStore != nil && deps.TransactionStore != nil {
		handlers.Runs = handler.NewRunsHandler(deps.SummaryStore, deps.TransactionStore, a.logger)
	}
	if deps.SummaryFeed != nil {
		handlers.Stream = handler.NewStreamHandler(deps.SummaryFeed, a.logger)
	}
	if deps.Metrics != nil {
		handlers.Metrics = deps.Metrics.Handler()
	}
	return server.NewServer(server.Config{
		Addr:   a.cfg.Server.Addr,
		APIKey: a.cfg.Server.APIKey,
	}, handlers, a.logger)
}

// ReplayMode re-derives every archived book under replay.prefix.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	replayer := pipeline.NewReplayer(deps.BlobReader, a.cfg.Sampler.Budget, a.cfg.Replay.Concurrency, a.logger)
	results, err := replayer.Replay(ctx, a.cfg.Replay.Prefix)
	if err != nil {
		return fmt.Errorf("app: replay: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.logger.InfoContext(ctx, "replay mode finished",
		slog.String("prefix", a.cfg.Replay.Prefix),
		slog.Int("books", len(results)),
		slog.Int("failed", failed),
	)
	return nil
}
