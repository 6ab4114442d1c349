package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID          string
	Version     string
	Config      string // canonical JSON of the run parameters
	Status      RunStatus
	Error       string
	StartedSeq  int64
	FinishedSeq int64 // 0 while running
}

// RunState describes how far a run got. Used to resume it.
type RunState struct {
	Run       Run
	Committed []SnapshotInfo
	LastSeq   int64
}

// HasSnapshot reports whether the run committed the named snapshot.
func (rs RunState) HasSnapshot(name string) bool {
	for _, s := range rs.Committed {
		if s.Name == name {
			return true
		}
	}
	return false
}

// CreateRun records the start of a run. cfg is stored as canonical JSON.
func (s *Store) CreateRun(ctx context.Context, id, version string, cfg any, seq int64) error {
	cfgJSON, err := marshalConfig(cfg)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, version, config, status, started_seq)
		VALUES (?, ?, ?, ?, ?)
	`, id, version, cfgJSON, string(RunRunning), seq)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// ReopenRun marks a finished run as running again so it can be resumed.
func (s *Store) ReopenRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = '', finished_seq = NULL WHERE id = ?
	`, string(RunRunning), id)
	if err != nil {
		return fmt.Errorf("reopen run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reopen run %s: %w", id, ErrNotFound)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, cause string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_seq = ? WHERE id = ?
	`, string(status), cause, seq, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, config, status, error, started_seq, finished_seq
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs ordered by start.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, config, status, error, started_seq, finished_seq
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRunState returns a run with every snapshot it committed and the
// highest seq it used.
func (s *Store) GetRunState(ctx context.Context, id string) (RunState, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	snaps, err := s.ListSnapshots(ctx, id)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	state := RunState{Run: run, Committed: snaps, LastSeq: max(run.StartedSeq, run.FinishedSeq)}
	for _, snap := range snaps {
		state.LastSeq = max(state.LastSeq, snap.Seq)
	}
	return state, nil
}

// MaxSeq returns the highest seq used anywhere in the store, or 0 for an
// empty store. Clocks resume from this value.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(m) FROM (
			SELECT COALESCE(MAX(started_seq), 0) AS m FROM runs
			UNION ALL SELECT COALESCE(MAX(finished_seq), 0) FROM runs
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM snapshots
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		status   string
		finished sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.Version, &run.Config, &status, &run.Error, &run.StartedSeq, &finished); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.FinishedSeq = finished.Int64
	return run, nil
}
