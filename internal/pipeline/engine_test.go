package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStages builds source → double → tail where source emits two users and
// each later stage appends a marker row.
func testStages(calls map[string]int) []Stage {
	appendRow := func(id string) StageFunc {
		return func(_ context.Context, sc *StageContext, in Datasets) (Datasets, error) {
			calls[sc.Stage]++
			var ds *dataset.Dataset
			for _, v := range in {
				ds = v
			}
			ds.Append(&dataset.Record{UserID: dataset.Some(id)})
			return Datasets{sc.Stage + ".out": ds}, nil
		}
	}
	return []Stage{
		{
			Name:    "source",
			Outputs: []string{"source.out"},
			Run: func(_ context.Context, sc *StageContext, _ Datasets) (Datasets, error) {
				calls[sc.Stage]++
				ds := dataset.MustNew(dataset.ColUserID)
				ds.Append(&dataset.Record{UserID: dataset.Some("u1")}, &dataset.Record{UserID: dataset.Some("u2")})
				return Datasets{"source.out": ds}, nil
			},
		},
		{Name: "double", Inputs: []string{"source.out"}, Outputs: []string{"double.out"}, Run: appendRow("d")},
		{Name: "tail", Inputs: []string{"double.out"}, Outputs: []string{"tail.out"}, Run: appendRow("t")},
	}
}

func newTestEngine(t *testing.T, st SnapshotStore, stages []Stage, ids ...string) *Engine {
	t.Helper()
	e, err := New(st, stages, WithRunIDGenerator(NewFixedGenerator(ids...)), WithLogger(quietLogger()))
	require.NoError(t, err)
	return e
}

func TestEngine_RunCommitsEveryStage(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	calls := map[string]int{}
	e := newTestEngine(t, st, testStages(calls), "run-1")

	res, err := e.Run(ctx, RunOptions{Version: "1.0", Config: map[string]any{"seed": 42}})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"source", "double", "tail"}, res.Executed)
	assert.Equal(t, 4, res.Outputs["tail.out"].Len())

	state, err := st.GetRunState(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunSucceeded, state.Run.Status)
	require.Len(t, state.Committed, 3)
	assert.Less(t, state.Committed[0].Seq, state.Committed[1].Seq)
	assert.Less(t, state.Committed[1].Seq, state.Committed[2].Seq)

	// Inputs are private copies: the stored source snapshot is untouched.
	src, _, err := st.ReadSnapshot(ctx, "run-1", "source.out")
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())
}

func TestEngine_FailedStageCommitsNothing(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	calls := map[string]int{}
	stages := testStages(calls)
	stages[2].Run = func(context.Context, *StageContext, Datasets) (Datasets, error) {
		return nil, errors.New("schema violation")
	}
	e := newTestEngine(t, st, stages, "run-1")

	_, err := e.Run(ctx, RunOptions{Version: "1.0"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeStageFailed, CodeOf(err))
	assert.ErrorContains(t, err, "schema violation")

	state, err := st.GetRunState(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, state.Run.Status)
	assert.Contains(t, state.Run.Error, "schema violation")
	assert.True(t, state.HasSnapshot("double.out"))
	assert.False(t, state.HasSnapshot("tail.out"))
}

func TestEngine_MissingOutput(t *testing.T) {
	st := openTestStore(t)
	stages := testStages(map[string]int{})
	stages[1].Run = func(context.Context, *StageContext, Datasets) (Datasets, error) {
		return Datasets{}, nil
	}
	e := newTestEngine(t, st, stages, "run-1")

	_, err := e.Run(context.Background(), RunOptions{})
	assert.Equal(t, ErrCodeMissingOutput, CodeOf(err))
}

func TestEngine_FromLoadsLatestSnapshots(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	calls := map[string]int{}
	e := newTestEngine(t, st, testStages(calls), "run-1", "run-2")

	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)

	res, err := e.Run(ctx, RunOptions{From: "tail"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, res.Executed)
	assert.Equal(t, []string{"source", "double"}, res.Skipped)
	assert.Equal(t, 2, calls["tail"])
	assert.Equal(t, 1, calls["source"])
	assert.Equal(t, 4, res.Outputs["tail.out"].Len())
}

func TestEngine_FromWithoutSnapshots(t *testing.T) {
	st := openTestStore(t)
	e := newTestEngine(t, st, testStages(map[string]int{}), "run-1")

	_, err := e.Run(context.Background(), RunOptions{From: "double"})
	require.Error(t, err)
	assert.True(t, IsMissingSnapshot(err))
}

func TestEngine_ResumeSkipsCommittedStages(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	calls := map[string]int{}
	stages := testStages(calls)
	healthy := stages[2].Run
	stages[2].Run = func(context.Context, *StageContext, Datasets) (Datasets, error) {
		return nil, errors.New("disk full")
	}
	e := newTestEngine(t, st, stages, "run-1")
	_, err := e.Run(ctx, RunOptions{})
	require.Error(t, err)

	stages[2].Run = healthy
	e = newTestEngine(t, st, stages)
	res, err := e.Run(ctx, RunOptions{Resume: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"tail"}, res.Executed)
	assert.Equal(t, 1, calls["double"])

	run, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunSucceeded, run.Status)
}

func TestEngine_UntilStopsEarly(t *testing.T) {
	st := openTestStore(t)
	e := newTestEngine(t, st, testStages(map[string]int{}), "run-1")

	res, err := e.Run(context.Background(), RunOptions{Until: "double"})
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "double"}, res.Executed)
	assert.Equal(t, []string{"tail"}, res.Skipped)
}

func TestEngine_UnknownStage(t *testing.T) {
	st := openTestStore(t)
	e := newTestEngine(t, st, testStages(map[string]int{}))

	_, err := e.Run(context.Background(), RunOptions{From: "nope"})
	assert.Equal(t, ErrCodeUnknownStage, CodeOf(err))
}

func TestEngine_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := openTestStore(t)
	stages := testStages(map[string]int{})
	inner := stages[0].Run
	stages[0].Run = func(ctx context.Context, sc *StageContext, in Datasets) (Datasets, error) {
		defer cancel()
		return inner(ctx, sc, in)
	}
	e := newTestEngine(t, st, stages, "run-1")

	res, err := e.Run(ctx, RunOptions{})
	assert.Equal(t, ErrCodeCancelled, CodeOf(err))
	assert.Equal(t, []string{"source"}, res.Executed)

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, run.Status)

	// The stage that observed the cancellation still committed its output.
	_, info, err := st.ReadSnapshot(context.Background(), "run-1", "source.out")
	require.NoError(t, err)
	assert.Equal(t, 2, info.RowCount)
}

func TestEngine_AfterCommitFailureRetractsAndResumeRetries(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	calls := map[string]int{}
	stages := testStages(calls)
	published := 0
	stages[2].AfterCommit = func(context.Context, *StageContext, Datasets) error {
		return errors.New("output dir not writable")
	}
	e := newTestEngine(t, st, stages, "run-1")

	res, err := e.Run(ctx, RunOptions{})
	assert.Equal(t, ErrCodeStageFailed, CodeOf(err))
	assert.NotContains(t, res.Outputs, "tail.out")
	_, _, err = st.ReadSnapshot(ctx, "run-1", "tail.out")
	assert.True(t, errors.Is(err, store.ErrNotFound), "a failed publish leaves no snapshot behind")
	_, _, err = st.ReadSnapshot(ctx, "run-1", "double.out")
	require.NoError(t, err)

	stages[2].AfterCommit = func(context.Context, *StageContext, Datasets) error {
		published++
		return nil
	}
	e = newTestEngine(t, st, stages)
	res, err = e.Run(ctx, RunOptions{Resume: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, res.Executed)
	assert.Equal(t, 1, published)
	assert.Equal(t, 2, calls["tail"])
	_, _, err = st.ReadSnapshot(ctx, "run-1", "tail.out")
	require.NoError(t, err)
}

func TestEngine_AfterCommitSeesCommittedOutputs(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	stages := testStages(map[string]int{})
	var sawCommitted bool
	stages[2].AfterCommit = func(ctx context.Context, sc *StageContext, out Datasets) error {
		_, _, err := st.ReadSnapshot(ctx, sc.RunID, "tail.out")
		sawCommitted = err == nil && out["tail.out"].Len() == 4
		return nil
	}
	e := newTestEngine(t, st, stages, "run-1")

	_, err := e.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, sawCommitted)
}

type recordingObserver struct {
	finished []string
	counts   map[string]int
}

func (o *recordingObserver) StageStarted(string) {}
func (o *recordingObserver) StageFinished(stage string, _ int, _ time.Duration, err error) {
	if err == nil {
		o.finished = append(o.finished, stage)
	}
}
func (o *recordingObserver) Count(stage, event string, n int) { o.counts[stage+"/"+event] += n }

func TestEngine_ObserverAndCounts(t *testing.T) {
	st := openTestStore(t)
	obs := &recordingObserver{counts: map[string]int{}}
	stages := testStages(map[string]int{})
	inner := stages[1].Run
	stages[1].Run = func(ctx context.Context, sc *StageContext, in Datasets) (Datasets, error) {
		sc.Anomaly("values_clipped", 3)
		sc.Count("rows_imputed", 0)
		return inner(ctx, sc, in)
	}
	e, err := New(st, stages, WithRunIDGenerator(NewFixedGenerator("run-1")), WithLogger(quietLogger()), WithObserver(obs))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "double", "tail"}, obs.finished)
	assert.Equal(t, map[string]int{"double/values_clipped": 3}, obs.counts)
}

func TestEngine_ClockContinuesFromStore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	e1 := newTestEngine(t, st, testStages(map[string]int{}), "run-1")
	_, err := e1.Run(ctx, RunOptions{})
	require.NoError(t, err)
	last := e1.Clock().Current()

	e2 := newTestEngine(t, st, testStages(map[string]int{}), "run-2")
	_, err = e2.Run(ctx, RunOptions{})
	require.NoError(t, err)

	run, err := st.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Greater(t, run.StartedSeq, last)
}

func TestEngine_SuppliedClockSkipsPastStore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	e1 := newTestEngine(t, st, testStages(map[string]int{}), "run-1")
	_, err := e1.Run(ctx, RunOptions{})
	require.NoError(t, err)
	last := e1.Clock().Current()

	e2, err := New(st, testStages(map[string]int{}),
		WithClock(NewClock()),
		WithRunIDGenerator(NewFixedGenerator("run-2")),
		WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e2.Run(ctx, RunOptions{})
	require.NoError(t, err)

	run, err := st.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Greater(t, run.StartedSeq, last)
}
