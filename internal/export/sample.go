package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/roach88/recset/internal/dataset"
)

// DefaultSampleRows is the number of train rows written to the CSV preview.
const DefaultSampleRows = 1000

// SampleCSV renders the first n rows of ds as CSV with a header row.
func SampleCSV(ds *dataset.Dataset, n int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.Columns()); err != nil {
		return nil, fmt.Errorf("write sample header: %w", err)
	}
	cols := ds.ActiveColumns()
	record := make([]string, len(cols))
	for i, r := range ds.Rows {
		if i >= n {
			break
		}
		for j, c := range cols {
			record[j] = c.Format(r)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write sample row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write sample: %w", err)
	}
	return buf.Bytes(), nil
}
