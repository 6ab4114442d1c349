package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/recset/internal/dataset"
)

// Datasets maps snapshot names to datasets.
type Datasets map[string]*dataset.Dataset

// StageFunc transforms a stage's inputs into its outputs. It must not
// modify datasets it does not return.
type StageFunc func(ctx context.Context, sc *StageContext, in Datasets) (Datasets, error)

// CommitFunc runs after a stage's outputs are committed.
type CommitFunc func(ctx context.Context, sc *StageContext, out Datasets) error

// Stage is one node of the pipeline graph.
type Stage struct {
	// Name identifies the stage (e.g. "merge"). Unique within a plan.
	Name string

	// Description is a one-line summary for listings.
	Description string

	// Inputs are the snapshot names the stage reads.
	Inputs []string

	// Outputs are the snapshot names the stage writes. Every output must be
	// present in the StageFunc result.
	Outputs []string

	// Run is the transform.
	Run StageFunc

	// AfterCommit, if set, runs once the outputs are durable. A failure here
	// retracts the stage's snapshots and fails the run, so a resume runs the
	// stage again.
	AfterCommit CommitFunc
}

// Observer receives execution events. Implementations must be cheap; they
// are called synchronously from the engine loop.
type Observer interface {
	StageStarted(stage string)
	StageFinished(stage string, rows int, elapsed time.Duration, err error)
	Count(stage, event string, n int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) StageStarted(string) {}
func (NopObserver) StageFinished(string, int, time.Duration, error) {}
func (NopObserver) Count(string, string, int) {}

// StageContext carries per-stage services.
type StageContext struct {
	RunID    string
	Stage    string
	Logger   *slog.Logger
	Observer Observer
}

// Count reports a routine event count (rows imputed, rows sampled).
// Zero counts are ignored.
func (sc *StageContext) Count(event string, n int) {
	if n == 0 {
		return
	}
	sc.Logger.Info(event, "count", n)
	sc.Observer.Count(sc.Stage, event, n)
}

// Anomaly reports a recovered data-quality anomaly (values clipped, rows
// dropped). Zero counts are ignored.
func (sc *StageContext) Anomaly(event string, n int) {
	if n == 0 {
		return
	}
	sc.Logger.Warn(event, "count", n)
	sc.Observer.Count(sc.Stage, event, n)
}
