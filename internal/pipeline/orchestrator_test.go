package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

type recordingRunner struct {
	mu     sync.Mutex
	runIDs []string
	onRun  func(n int)
}

func (r *recordingRunner) Run(_ context.Context, runID string) RunReport {
	r.mu.Lock()
	r.runIDs = append(r.runIDs, runID)
	n := len(r.runIDs)
	r.mu.Unlock()
	if r.onRun != nil {
		r.onRun(n)
	}
	return RunReport{RunID: runID}
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runIDs)
}

func TestRunOnceTakesLockAndFreshRunID(t *testing.T) {
	runner := &recordingRunner{}
	locks := &fakeLocks{}
	o := newOrchestrator(runner, locks, discardLogger())

	r1, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	r2, err := o.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, r1.RunID, r2.RunID)
	assert.Len(t, r1.RunID, 36)
	assert.Equal(t, 2, locks.acquired)
	assert.Equal(t, 2, locks.released)
	assert.Equal(t, []time.Duration{DefaultLockTTL, DefaultLockTTL}, locks.ttls)
}

func TestRunOnceLockHeld(t *testing.T) {
	runner := &recordingRunner{}
	o := newOrchestrator(runner, &fakeLocks{held: true}, discardLogger())

	_, err := o.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Zero(t, runner.count())
}

func TestRunOnceWithoutLocks(t *testing.T) {
	runner := &recordingRunner{}
	o := newOrchestrator(runner, nil, discardLogger())
	_, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count())
}

func TestRunLoopRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &recordingRunner{onRun: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	locks := &fakeLocks{}
	o := newOrchestrator(runner, locks, discardLogger())

	err := o.RunLoop(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, runner.count())
	assert.Equal(t, 10*time.Millisecond, locks.ttls[0])
}

func TestRunLoopSkipsWhenLockHeld(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	runner := &recordingRunner{}
	o := newOrchestrator(runner, &fakeLocks{held: true}, discardLogger())

	err := o.RunLoop(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, runner.count())
}

func TestRunLoopRejectsBadInterval(t *testing.T) {
	o := newOrchestrator(&recordingRunner{}, nil, discardLogger())
	assert.Error(t, o.RunLoop(context.Background(), 0))
}

func TestLastReport(t *testing.T) {
	o := newOrchestrator(&recordingRunner{}, nil, discardLogger())
	_, ok := o.LastReport()
	assert.False(t, ok)

	report, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	last, ok := o.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestRunLoopRunsOnTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := make(chan struct{}, 1)
	runner := &recordingRunner{onRun: func(n int) {
		switch n {
		case 1:
			trigger <- struct{}{}
		case 2:
			cancel()
		}
	}}
	o := newOrchestrator(runner, nil, discardLogger()).WithTrigger(trigger)

	// An hour-long interval means the second run can only come from the trigger.
	err := o.RunLoop(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, runner.count())
}
