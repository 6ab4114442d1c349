package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/recset/internal/dataset"
)

// NamedDataset pairs a snapshot name with its content.
type NamedDataset struct {
	Name    string
	Dataset *dataset.Dataset
}

// WriteSnapshots commits every snapshot a stage produced, atomically.
// Either all snapshots and their rows are written or none are.
//
// Rows are stored as canonical JSON in dataset order together with the
// content digest. Writing a name the run already committed fails on the
// UNIQUE(run_id, name) constraint.
func (s *Store) WriteSnapshots(ctx context.Context, runID, stage string, seq int64, snaps []NamedDataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshots: begin: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range snaps {
		if err := writeSnapshot(ctx, tx, runID, stage, seq, snap); err != nil {
			return fmt.Errorf("write snapshot %s: %w", snap.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshots: commit: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, runID, stage string, seq int64, snap NamedDataset) error {
	ds := snap.Dataset
	columns := ds.Columns()

	colsJSON, err := marshalColumns(columns)
	if err != nil {
		return err
	}
	digest, err := dataset.Digest(ds)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, name, stage, seq, columns, row_count, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, snap.Name, stage, seq, colsJSON, ds.Len(), digest)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_rows (snapshot_id, ordinal, payload) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()

	for i, r := range ds.Rows {
		payload, err := dataset.EncodeRow(columns, r)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, i, string(payload)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// RetractSnapshots deletes every snapshot stage committed in runID, rows
// included. It returns the number of snapshots removed.
func (s *Store) RetractSnapshots(ctx context.Context, runID, stage string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ? AND stage = ?`, runID, stage)
	if err != nil {
		return 0, fmt.Errorf("retract snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retract snapshots: rows affected: %w", err)
	}
	return int(n), nil
}
