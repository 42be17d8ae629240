package pipeline

import (
	"time"

	"github.com/alanyoungcy/booksampler/internal/domain"
)

// Stage is where a target is in the sampling sequence.
type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageAccumulating
	StageDeriving
	StagePersisting
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:         "idle",
	StageFetching:     "fetching",
	StageAccumulating: "accumulating",
	StageDeriving:     "deriving",
	StagePersisting:   "persisting",
	StageDone:         "done",
	StageFailed:       "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// TargetResult is the outcome of sampling one (exchange, symbol) pair.
//
// Stage is StageDone or StageFailed once the target has been processed.
// FailedAt names the stage that failed. Snapshot is set whenever derivation
// succeeded, including when persisting it failed, so the caller can retry the
// write.
type TargetResult struct {
	Exchange    string
	Symbol      string
	Stage       Stage
	FailedAt    Stage
	Snapshot    *domain.Snapshot
	ArchivePath string
	Err         error
	PersistErr  error
}

// OK reports whether the target was fully sampled and persisted.
func (r TargetResult) OK() bool {
	return r.Stage == StageDone
}

// RunReport collects the results of one run.
type RunReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []TargetResult
	// Skipped counts targets not attempted because the run was cancelled.
	Skipped int
}

// Failed counts targets that did not reach StageDone.
func (r RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Snapshots returns every derived snapshot, persisted or not.
func (r RunReport) Snapshots() []domain.Snapshot {
	var out []domain.Snapshot
	for _, res := range r.Results {
		if res.Snapshot != nil {
			out = append(out, *res.Snapshot)
		}
	}
	return out
}
