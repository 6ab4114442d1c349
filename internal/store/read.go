package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/recset/internal/dataset"
)

// SnapshotInfo describes a committed snapshot without its rows.
type SnapshotInfo struct {
	ID       int64
	RunID    string
	Name     string
	Stage    string
	Seq      int64
	Columns  []string
	RowCount int
	Digest   string
}

const snapshotColumns = `id, run_id, name, stage, seq, columns, row_count, digest`

// FindSnapshot locates a snapshot by name. With an empty runID it returns
// the latest commit of that name across all runs (highest seq); otherwise
// the one committed by that run.
func (s *Store) FindSnapshot(ctx context.Context, runID, name string) (SnapshotInfo, error) {
	var row *sql.Row
	if runID == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+snapshotColumns+` FROM snapshots
			WHERE name = ?
			ORDER BY seq DESC, id DESC
			LIMIT 1
		`, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+snapshotColumns+` FROM snapshots
			WHERE run_id = ? AND name = ?
		`, runID, name)
	}
	info, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, fmt.Errorf("snapshot %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("find snapshot: %w", err)
	}
	return info, nil
}

// ReadSnapshot loads a snapshot and its rows, in stored order, and verifies
// the content digest.
func (s *Store) ReadSnapshot(ctx context.Context, runID, name string) (*dataset.Dataset, SnapshotInfo, error) {
	info, err := s.FindSnapshot(ctx, runID, name)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}

	ds, err := dataset.New(info.Columns...)
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM snapshot_rows
		WHERE snapshot_id = ?
		ORDER BY ordinal ASC
	`, info.ID)
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	ds.Rows = make([]*dataset.Record, 0, info.RowCount)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, SnapshotInfo{}, fmt.Errorf("scan row: %w", err)
		}
		r, _, err := dataset.DecodeRow(info.Columns, []byte(payload))
		if err != nil {
			return nil, SnapshotInfo{}, fmt.Errorf("read snapshot %s: %w", name, err)
		}
		ds.Append(r)
	}
	if err := rows.Err(); err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("iterate rows: %w", err)
	}

	digest, err := dataset.Digest(ds)
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	if digest != info.Digest {
		return nil, SnapshotInfo{}, fmt.Errorf("read snapshot %s: digest mismatch: stored %s, computed %s", name, info.Digest, digest)
	}
	return ds, info, nil
}

// ListSnapshots returns every snapshot committed by a run, or by all runs
// when runID is empty, ordered by seq.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListSnapshots(ctx context.Context, runID string) ([]SnapshotInfo, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY seq ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []SnapshotInfo{}
	for rows.Next() {
		info, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row rowScanner) (SnapshotInfo, error) {
	var (
		info     SnapshotInfo
		colsJSON string
	)
	if err := row.Scan(&info.ID, &info.RunID, &info.Name, &info.Stage, &info.Seq, &colsJSON, &info.RowCount, &info.Digest); err != nil {
		return SnapshotInfo{}, err
	}
	cols, err := unmarshalColumns(colsJSON)
	if err != nil {
		return SnapshotInfo{}, err
	}
	info.Columns = cols
	return info, nil
}
