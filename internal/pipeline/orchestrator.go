package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// RunLockKey serialises runs across instances.
const RunLockKey = "booksampler:run"

// DefaultLockTTL bounds a single run's lock when no interval applies.
const DefaultLockTTL = 5 * time.Minute

// runner is satisfied by *Sampler.
type runner interface {
	Run(ctx context.Context, runID string) RunReport
}

// Orchestrator assigns run ids and drives the sampler once or on an interval,
// optionally holding a distributed lock for the duration of each run.
type Orchestrator struct {
	sampler runner
	locks   domain.LockManager
	trigger <-chan struct{}
	logger  *slog.Logger
	newID   func() string

	mu   sync.RWMutex
	last *RunReport
}

// NewOrchestrator creates an Orchestrator. locks may be nil, in which case
// runs are not serialised across instances.
func NewOrchestrator(sampler *Sampler, locks domain.LockManager, logger *slog.Logger) *Orchestrator {
	return newOrchestrator(sampler, locks, logger)
}

func newOrchestrator(r runner, locks domain.LockManager, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sampler: r,
		locks:   locks,
		logger:  logger.With(slog.String("component", "orchestrator")),
		newID:   uuid.NewString,
	}
}

// WithTrigger makes RunLoop start an extra run whenever ch receives.
func (o *Orchestrator) WithTrigger(ch <-chan struct{}) *Orchestrator {
	o.trigger = ch
	return o
}

// LastReport returns the report of the most recent completed run.
func (o *Orchestrator) LastReport() (RunReport, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return RunReport{}, false
	}
	return *o.last, true
}

// RunOnce executes a single run under a fresh run id. It returns
// domain.ErrLockHeld when another instance is mid-run.
func (o *Orchestrator) RunOnce(ctx context.Context) (RunReport, error) {
	return o.run(ctx, DefaultLockTTL)
}

// RunLoop runs immediately and then every interval until ctx is cancelled,
// which is only observed between runs. A run skipped because the lock is held
// is logged and the loop carries on.
func (o *Orchestrator) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("pipeline: run loop: interval must be positive, got %s", interval)
	}
	o.logger.InfoContext(ctx, "run loop started", slog.Duration("interval", interval))

	o.runLogged(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.InfoContext(ctx, "run loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.runLogged(ctx, interval)
		case <-o.trigger:
			o.logger.InfoContext(ctx, "run triggered")
			o.runLogged(ctx, interval)
		}
	}
}

func (o *Orchestrator) runLogged(ctx context.Context, ttl time.Duration) {
	if _, err := o.run(ctx, ttl); err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			o.logger.InfoContext(ctx, "run skipped, another instance holds the lock")
			return
		}
		o.logger.ErrorContext(ctx, "run failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) run(ctx context.Context, ttl time.Duration) (RunReport, error) {
	if o.locks != nil {
		unlock, err := o.locks.Acquire(ctx, RunLockKey, ttl)
		if err != nil {
			return RunReport{}, fmt.Errorf("pipeline: run lock: %w", err)
		}
		defer unlock()
	}
	report := o.sampler.Run(ctx, o.newID())

	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()
	return report, nil
}
