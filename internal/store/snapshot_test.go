package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
)

func TestWriteReadSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1", 1)

	ds := createTestDataset("u3", "u1", "u2")
	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "extract.users", 2, []NamedDataset{{Name: "raw.users", Dataset: ds}}))

	got, info, err := s.ReadSnapshot(ctx, "run-1", "raw.users")
	require.NoError(t, err)
	assert.Equal(t, ds.Columns(), got.Columns())
	assert.Equal(t, 3, info.RowCount)
	assert.Equal(t, int64(2), info.Seq)
	assert.Equal(t, "extract.users", info.Stage)

	want, err := dataset.Digest(ds)
	require.NoError(t, err)
	assert.Equal(t, want, info.Digest)

	require.Len(t, got.Rows, 3)
	assert.Equal(t, "u3", got.Rows[0].UserID.V, "row order must be preserved")
	assert.Equal(t, "u2", got.Rows[2].UserID.V)
	assert.Equal(t, dataset.Vector{0.1, 0.2, 0.3}, got.Rows[1].UserVector)
	assert.False(t, got.Rows[0].CreatedAt.Valid)
}

func TestWriteSnapshots_Atomic(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1", 1)

	// The second snapshot reuses a name, so the whole commit must fail.
	err := s.WriteSnapshots(ctx, "run-1", "export", 2, []NamedDataset{
		{Name: "datasets.v1.train", Dataset: createTestDataset("a")},
		{Name: "datasets.v1.train", Dataset: createTestDataset("b")},
	})
	require.Error(t, err)

	snaps, err := s.ListSnapshots(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRetractSnapshots_RemovesOneStage(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1", 1)
	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "split", 2, []NamedDataset{{Name: "processed.final", Dataset: createTestDataset("a")}}))
	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "export", 3, []NamedDataset{
		{Name: "datasets.v1.train", Dataset: createTestDataset("a", "b")},
		{Name: "datasets.v1.test", Dataset: createTestDataset("c")},
	}))

	n, err := s.RetractSnapshots(ctx, "run-1", "export")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, _, err = s.ReadSnapshot(ctx, "run-1", "datasets.v1.train")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, _, err = s.ReadSnapshot(ctx, "run-1", "processed.final")
	require.NoError(t, err)

	// The names are free again for a resumed run.
	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "export", 4, []NamedDataset{{Name: "datasets.v1.train", Dataset: createTestDataset("d")}}))
}

func TestWriteSnapshots_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteSnapshots(context.Background(), "missing", "merge", 1, []NamedDataset{{Name: "processed.merged", Dataset: createTestDataset("a")}})
	assert.Error(t, err, "foreign key on run_id must be enforced")
}

func TestFindSnapshot_LatestBySeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-a", 1)
	createTestRun(t, s, "run-b", 3)

	require.NoError(t, s.WriteSnapshots(ctx, "run-b", "merge", 4, []NamedDataset{{Name: "processed.merged", Dataset: createTestDataset("b")}}))
	require.NoError(t, s.WriteSnapshots(ctx, "run-a", "merge", 2, []NamedDataset{{Name: "processed.merged", Dataset: createTestDataset("a")}}))

	info, err := s.FindSnapshot(ctx, "", "processed.merged")
	require.NoError(t, err)
	assert.Equal(t, "run-b", info.RunID)

	info, err = s.FindSnapshot(ctx, "run-a", "processed.merged")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Seq)

	_, err = s.FindSnapshot(ctx, "", "processed.final")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReadSnapshot_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1", 1)
	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "merge", 2, []NamedDataset{{Name: "processed.merged", Dataset: createTestDataset("a", "b")}}))

	_, err := s.db.Exec(`UPDATE snapshot_rows SET payload = replace(payload, '"a"', '"z"')`)
	require.NoError(t, err)

	_, _, err = s.ReadSnapshot(ctx, "run-1", "processed.merged")
	assert.ErrorContains(t, err, "digest mismatch")
}

func TestListSnapshots_EmptyNotNil(t *testing.T) {
	snaps, err := createTestStore(t).ListSnapshots(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1", 5)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, `{"seed":42}`, run.Config)

	require.NoError(t, s.WriteSnapshots(ctx, "run-1", "merge", 6, []NamedDataset{{Name: "processed.merged", Dataset: createTestDataset("a")}}))
	require.NoError(t, s.FinishRun(ctx, "run-1", RunFailed, "boom", 7))

	state, err := s.GetRunState(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, state.Run.Status)
	assert.Equal(t, "boom", state.Run.Error)
	assert.Equal(t, int64(7), state.LastSeq)
	assert.True(t, state.HasSnapshot("processed.merged"))
	assert.False(t, state.HasSnapshot("processed.featured"))

	require.NoError(t, s.ReopenRun(ctx, "run-1"))
	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Empty(t, run.Error)

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq, "finished_seq cleared by reopen")

	_, err = s.GetRun(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.FinishRun(ctx, "nope", RunSucceeded, "", 1), ErrNotFound))
}

func TestMaxSeq_EmptyStore(t *testing.T) {
	seq, err := createTestStore(t).MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestListRuns_Ordered(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "second", 10)
	createTestRun(t, s, "first", 1)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "first", runs[0].ID)
}
