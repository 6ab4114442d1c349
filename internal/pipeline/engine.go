package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/store"
)

// SnapshotStore is the persistence the engine needs. *store.Store
// implements it.
type SnapshotStore interface {
	CreateRun(ctx context.Context, id, version string, cfg any, seq int64) error
	ReopenRun(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, status store.RunStatus, cause string, seq int64) error
	GetRunState(ctx context.Context, id string) (store.RunState, error)
	WriteSnapshots(ctx context.Context, runID, stage string, seq int64, snaps []store.NamedDataset) error
	RetractSnapshots(ctx context.Context, runID, stage string) (int, error)
	ReadSnapshot(ctx context.Context, runID, name string) (*dataset.Dataset, store.SnapshotInfo, error)
	MaxSeq(ctx context.Context) (int64, error)
}

// Engine executes a planned stage graph against a snapshot store.
type Engine struct {
	store    SnapshotStore
	stages   []Stage
	clock    *Clock
	runIDs   RunIDGenerator
	logger   *slog.Logger
	observer Observer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the logical clock. Either way the clock is moved past the
// highest seq already in the store before a run starts.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDGenerator sets the run id source (default UUIDv7Generator).
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) { e.runIDs = g }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the execution observer (default NopObserver).
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// New plans stages and returns an engine for them.
func New(st SnapshotStore, stages []Stage, opts ...EngineOption) (*Engine, error) {
	planned, err := Plan(stages)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:    st,
		stages:   planned,
		runIDs:   UUIDv7Generator{},
		logger:   slog.Default(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Stages returns the planned stages in execution order.
func (e *Engine) Stages() []Stage {
	return slices.Clone(e.stages)
}

// Clock returns the engine's logical clock, or nil before the first run.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// RunOptions selects what a run executes.
type RunOptions struct {
	// Version is the dataset version recorded on the run.
	Version string

	// Config is stored with the run as canonical JSON.
	Config any

	// From skips every stage planned before the named one. Their outputs
	// are loaded from the latest committed snapshots.
	From string

	// Until stops after the named stage.
	Until string

	// Resume continues an earlier run: stages whose outputs that run already
	// committed are skipped.
	Resume string
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Executed []string
	Skipped  []string

	// Outputs holds every dataset produced or loaded during the run.
	Outputs Datasets
}

// Run executes the pipeline once.
//
// The run is recorded in the store before the first stage executes. On
// failure it is marked failed with the cause and a *StageError is returned;
// nothing the failing stage produced is committed.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	if err := e.ensureClock(ctx); err != nil {
		return nil, err
	}

	first, last := 0, len(e.stages)-1
	if opts.From != "" {
		i := e.indexOf(opts.From)
		if i < 0 {
			return nil, newStageError(ErrCodeUnknownStage, opts.From, "unknown --from stage", nil)
		}
		first = i
	}
	if opts.Until != "" {
		i := e.indexOf(opts.Until)
		if i < 0 {
			return nil, newStageError(ErrCodeUnknownStage, opts.Until, "unknown --until stage", nil)
		}
		last = i
	}

	res := &Result{Outputs: Datasets{}}
	var resumed *store.RunState
	if opts.Resume != "" {
		state, err := e.store.GetRunState(ctx, opts.Resume)
		if err != nil {
			return nil, newStageError(ErrCodeSnapshotIO, "", "load run to resume", err)
		}
		if err := e.store.ReopenRun(ctx, opts.Resume); err != nil {
			return nil, newStageError(ErrCodeSnapshotIO, "", "reopen run", err)
		}
		resumed = &state
		res.RunID = opts.Resume
	} else {
		res.RunID = e.runIDs.Generate()
		if err := e.store.CreateRun(ctx, res.RunID, opts.Version, opts.Config, e.clock.Next()); err != nil {
			return nil, newStageError(ErrCodeSnapshotIO, "", "create run", err)
		}
	}

	logger := e.logger.With("run_id", res.RunID)
	logger.Info("pipeline starting", "stages", len(e.stages), "from", e.stages[first].Name, "until", e.stages[last].Name)

	for i, st := range e.stages {
		if i < first || i > last || (resumed != nil && committedAll(*resumed, st.Outputs)) {
			res.Skipped = append(res.Skipped, st.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, e.fail(ctx, logger, res.RunID, newStageError(ErrCodeCancelled, st.Name, "run cancelled", err))
		}
		if err := e.runStage(ctx, logger, res, st); err != nil {
			return res, e.fail(ctx, logger, res.RunID, err)
		}
		res.Executed = append(res.Executed, st.Name)
	}

	if err := e.store.FinishRun(ctx, res.RunID, store.RunSucceeded, "", e.clock.Next()); err != nil {
		return res, newStageError(ErrCodeSnapshotIO, "", "finish run", err)
	}
	logger.Info("pipeline finished", "executed", len(res.Executed), "skipped", len(res.Skipped))
	return res, nil
}

func (e *Engine) runStage(ctx context.Context, logger *slog.Logger, res *Result, st Stage) error {
	in, err := e.gatherInputs(ctx, res, st)
	if err != nil {
		return err
	}

	sc := &StageContext{
		RunID:    res.RunID,
		Stage:    st.Name,
		Logger:   logger.With("stage", st.Name),
		Observer: e.observer,
	}
	e.observer.StageStarted(st.Name)
	start := time.Now()

	out, err := st.Run(ctx, sc, in)
	if err != nil {
		e.observer.StageFinished(st.Name, 0, time.Since(start), err)
		return newStageError(ErrCodeStageFailed, st.Name, "stage failed", err)
	}

	snaps := make([]store.NamedDataset, 0, len(st.Outputs))
	rows := 0
	for _, name := range st.Outputs {
		ds, ok := out[name]
		if !ok || ds == nil {
			err := newStageError(ErrCodeMissingOutput, st.Name, fmt.Sprintf("stage did not return %q", name), nil)
			e.observer.StageFinished(st.Name, 0, time.Since(start), err)
			return err
		}
		snaps = append(snaps, store.NamedDataset{Name: name, Dataset: ds})
		rows += ds.Len()
	}

	// A finished transform is committed even if ctx was cancelled meanwhile;
	// cancellation is honoured at the next stage boundary.
	commitCtx := context.WithoutCancel(ctx)
	seq := e.clock.Next()
	if err := e.store.WriteSnapshots(commitCtx, res.RunID, st.Name, seq, snaps); err != nil {
		e.observer.StageFinished(st.Name, 0, time.Since(start), err)
		return newStageError(ErrCodeSnapshotIO, st.Name, "commit snapshots", err)
	}
	for _, snap := range snaps {
		res.Outputs[snap.Name] = snap.Dataset
	}
	e.observer.StageFinished(st.Name, rows, time.Since(start), nil)
	sc.Logger.Info("stage committed", "seq", seq, "outputs", st.Outputs, "rows", rows)

	if st.AfterCommit != nil {
		committed := make(Datasets, len(snaps))
		for _, snap := range snaps {
			committed[snap.Name] = snap.Dataset
		}
		if err := st.AfterCommit(ctx, sc, committed); err != nil {
			if n, rerr := e.store.RetractSnapshots(commitCtx, res.RunID, st.Name); rerr != nil {
				sc.Logger.Error("failed to retract snapshots", "error", rerr)
			} else {
				sc.Logger.Warn("retracted snapshots", "count", n)
			}
			for _, snap := range snaps {
				delete(res.Outputs, snap.Name)
			}
			return newStageError(ErrCodeStageFailed, st.Name, "after commit", err)
		}
	}
	return nil
}

// gatherInputs returns private copies of a stage's inputs. Inputs produced
// earlier in this run come from memory; the rest are loaded from the store,
// preferring this run's own commits over the latest commit of any run.
func (e *Engine) gatherInputs(ctx context.Context, res *Result, st Stage) (Datasets, error) {
	in := make(Datasets, len(st.Inputs))
	for _, name := range st.Inputs {
		if ds, ok := res.Outputs[name]; ok {
			in[name] = ds.Clone()
			continue
		}
		ds, info, err := e.store.ReadSnapshot(ctx, res.RunID, name)
		if errors.Is(err, store.ErrNotFound) {
			ds, info, err = e.store.ReadSnapshot(ctx, "", name)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, newStageError(ErrCodeMissingSnapshot, st.Name, fmt.Sprintf("input %q has never been committed", name), err)
		}
		if err != nil {
			return nil, newStageError(ErrCodeSnapshotIO, st.Name, fmt.Sprintf("load input %q", name), err)
		}
		e.logger.Debug("loaded snapshot", "name", name, "from_run", info.RunID, "seq", info.Seq, "rows", info.RowCount)
		res.Outputs[name] = ds
		in[name] = ds.Clone()
	}
	return in, nil
}

func (e *Engine) fail(ctx context.Context, logger *slog.Logger, runID string, cause error) error {
	logger.Error("pipeline failed", "error", cause)
	// The run record must be updated even when ctx is the reason we failed.
	finishCtx := context.WithoutCancel(ctx)
	if err := e.store.FinishRun(finishCtx, runID, store.RunFailed, cause.Error(), e.clock.Next()); err != nil {
		logger.Error("failed to record run failure", "error", err)
	}
	return cause
}

func (e *Engine) ensureClock(ctx context.Context) error {
	seq, err := e.store.MaxSeq(ctx)
	if err != nil {
		return newStageError(ErrCodeSnapshotIO, "", "read clock position", err)
	}
	if e.clock == nil {
		e.clock = NewClockAt(seq)
		return nil
	}
	e.clock.Observe(seq)
	return nil
}

func (e *Engine) indexOf(name string) int {
	return slices.IndexFunc(e.stages, func(s Stage) bool { return s.Name == name })
}

func committedAll(state store.RunState, outputs []string) bool {
	for _, name := range outputs {
		if !state.HasSnapshot(name) {
			return false
		}
	}
	return true
}
