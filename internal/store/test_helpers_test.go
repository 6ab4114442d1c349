package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/recset/internal/dataset"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a running run.
func createTestRun(t *testing.T, s *Store, id string, seq int64) {
	t.Helper()
	if err := s.CreateRun(context.Background(), id, "1.0", map[string]any{"seed": 42}, seq); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
}

// createTestDataset builds a small dataset covering several column kinds.
func createTestDataset(ids ...string) *dataset.Dataset {
	ds := dataset.MustNew(dataset.ColUserID, dataset.ColRecommendationScore, dataset.ColUserVector, dataset.ColCreatedAt)
	for i, id := range ids {
		ds.Append(&dataset.Record{
			UserID:              dataset.Some(id),
			RecommendationScore: dataset.Some(float64(i) / 4),
			UserVector:          dataset.Vector{0.1, 0.2, 0.3},
		})
	}
	return ds
}

// getTableColumns returns the column names of a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table info %s: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
