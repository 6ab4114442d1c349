package export

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/roach88/recset/internal/dataset"
)

// ParquetWriter writes datasets as snappy-compressed Parquet through an
// in-process DuckDB.
type ParquetWriter struct {
	db *sql.DB
}

// NewParquetWriter opens an in-memory DuckDB without extension autoloading.
func NewParquetWriter() (*ParquetWriter, error) {
	db, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// One connection keeps the in-memory catalog stable.
	db.SetMaxOpenConns(1)
	return &ParquetWriter{db: db}, nil
}

// Close releases the DuckDB handle.
func (w *ParquetWriter) Close() error {
	return w.db.Close()
}

// Write stores ds at path. Rows are staged as JSON lines next to path and
// converted with a typed COPY, so column types follow the record schema
// rather than DuckDB inference.
func (w *ParquetWriter) Write(ctx context.Context, ds *dataset.Dataset, path string) error {
	staged, err := stageJSONL(ds, filepath.Dir(path))
	if err != nil {
		return err
	}
	defer os.Remove(staged)

	cols := ds.ActiveColumns()
	types := make([]string, len(cols))
	selects := make([]string, len(cols))
	for i, c := range cols {
		typ := duckType(c.Kind)
		selects[i] = quoteIdent(c.Name)
		if c.Kind == dataset.KindTime {
			selects[i] = fmt.Sprintf("CAST(%s AS %s) AS %s", quoteIdent(c.Name), typ, quoteIdent(c.Name))
			typ = "VARCHAR"
		}
		types[i] = fmt.Sprintf("%s: '%s'", quoteLiteral(c.Name), typ)
	}

	query := fmt.Sprintf(`
		COPY (
			SELECT %s
			FROM read_json(%s, format = 'newline_delimited', columns = {%s})
		) TO ? (
			FORMAT PARQUET,
			COMPRESSION 'SNAPPY'
		)`, strings.Join(selects, ", "), quoteLiteral(staged), strings.Join(types, ", "))

	if _, err := w.db.ExecContext(ctx, query, path); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// Count returns the number of rows in a Parquet file.
func (w *ParquetWriter) Count(ctx context.Context, path string) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM read_parquet(%s)", quoteLiteral(path))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parquet %s: %w", path, err)
	}
	return n, nil
}

func stageJSONL(ds *dataset.Dataset, dir string) (string, error) {
	f, err := os.CreateTemp(dir, ".staged-*.jsonl")
	if err != nil {
		return "", fmt.Errorf("stage rows: %w", err)
	}
	bw := bufio.NewWriter(f)
	columns := ds.Columns()
	for i, r := range ds.Rows {
		line, err := dataset.EncodeRow(columns, r)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("stage row %d: %w", i, err)
		}
		bw.Write(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("stage rows: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("stage rows: %w", err)
	}
	return f.Name(), nil
}

// duckType maps a column kind to its Parquet-side DuckDB type.
func duckType(k dataset.Kind) string {
	switch k {
	case dataset.KindNumber:
		return "DOUBLE"
	case dataset.KindBool:
		return "BOOLEAN"
	case dataset.KindTime:
		return "TIMESTAMPTZ"
	case dataset.KindVector:
		return "DOUBLE[]"
	case dataset.KindBudget:
		return "STRUCT(min DOUBLE, max DOUBLE)"
	case dataset.KindTags:
		return "VARCHAR[]"
	default:
		return "VARCHAR"
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
