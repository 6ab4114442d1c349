package dataset

import (
	"fmt"
	"slices"
)

// Dataset is an ordered set of records plus the ordered list of columns the
// records currently carry.
//
// Dataset is not safe for concurrent use. The pipeline has exactly one
// writer and hands datasets from stage to stage.
type Dataset struct {
	columns []string
	Rows    []*Record
}

// New creates an empty dataset carrying the given columns. Unknown names are
// rejected.
func New(columns ...string) (*Dataset, error) {
	ds := &Dataset{}
	if err := ds.AddColumns(columns...); err != nil {
		return nil, err
	}
	return ds, nil
}

// MustNew is New for static column lists.
func MustNew(columns ...string) *Dataset {
	ds, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Columns returns a copy of the active column names in order.
func (d *Dataset) Columns() []string {
	return slices.Clone(d.columns)
}

// ActiveColumns returns the registry entries of the active columns in order.
func (d *Dataset) ActiveColumns() []Column {
	out := make([]Column, 0, len(d.columns))
	for _, name := range d.columns {
		out = append(out, MustLookup(name))
	}
	return out
}

// Has reports whether the named column is active.
func (d *Dataset) Has(name string) bool {
	return slices.Contains(d.columns, name)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// AddColumns activates columns. Already active names are ignored; new names
// are appended in the given order.
func (d *Dataset) AddColumns(names ...string) error {
	for _, name := range names {
		if _, ok := Lookup(name); !ok {
			return fmt.Errorf("unknown column %q", name)
		}
		if !d.Has(name) {
			d.columns = append(d.columns, name)
		}
	}
	return nil
}

// DropColumns deactivates columns and clears their slots in every row.
// Inactive names are ignored.
func (d *Dataset) DropColumns(names ...string) {
	for _, name := range names {
		i := slices.Index(d.columns, name)
		if i < 0 {
			continue
		}
		d.columns = slices.Delete(d.columns, i, i+1)
		col := MustLookup(name)
		for _, r := range d.Rows {
			col.Clear(r)
		}
	}
}

// Append adds rows.
func (d *Dataset) Append(rows ...*Record) {
	d.Rows = append(d.Rows, rows...)
}

// Filter keeps the rows for which keep returns true, preserving order, and
// returns the number of rows removed.
func (d *Dataset) Filter(keep func(*Record) bool) int {
	kept := d.Rows[:0]
	for _, r := range d.Rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	removed := len(d.Rows) - len(kept)
	clear(d.Rows[len(kept):])
	d.Rows = kept
	return removed
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{columns: slices.Clone(d.columns), Rows: make([]*Record, len(d.Rows))}
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// WithRows returns a dataset sharing d's columns with a different row slice.
func (d *Dataset) WithRows(rows []*Record) *Dataset {
	return &Dataset{columns: slices.Clone(d.columns), Rows: rows}
}

// NullCount returns the number of rows with a null value in the named
// column.
func (d *Dataset) NullCount(name string) int {
	col := MustLookup(name)
	n := 0
	for _, r := range d.Rows {
		if col.IsNull(r) {
			n++
		}
	}
	return n
}

// Numbers returns the non-null values of a number column in row order.
func (d *Dataset) Numbers(name string) []float64 {
	col := MustLookup(name)
	out := make([]float64, 0, len(d.Rows))
	for _, r := range d.Rows {
		if v, ok := col.Number(r); ok {
			out = append(out, v)
		}
	}
	return out
}

// Row returns the active columns of r as a name to value map.
func (d *Dataset) Row(r *Record) map[string]any {
	out := make(map[string]any, len(d.columns))
	for _, name := range d.columns {
		out[name] = MustLookup(name).Value(r)
	}
	return out
}
