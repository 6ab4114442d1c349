// Package merge joins the raw record sets into one row per recommendation.
package merge

import (
	"errors"
	"fmt"

	"github.com/roach88/recset/internal/dataset"
)

// Columns present on both the recommendation and the user side. The
// recommendation value wins; the user value fills it only when null.
var collapsed = []string{dataset.ColUserVector, dataset.ColPrimarySegment}

// Stats counts join misses.
type Stats struct {
	Rows            int
	WithoutUser     int
	WithoutSearch   int
	VectorFromUser  int
	SegmentFromUser int
}

// Merge left-joins recommendations to users and then to searches on
// user_id. Every recommendation row is kept, in order; absent sides leave
// their columns null. When a user_id repeats on the right side the first
// row wins.
//
// The result carries the recommendation columns, then the user columns not
// already present, then the search columns not already present. Inputs are
// not modified.
func Merge(recs, users, searches *dataset.Dataset) (*dataset.Dataset, Stats, error) {
	if recs == nil || users == nil || searches == nil {
		return nil, Stats{}, errors.New("merge: nil input dataset")
	}
	inputs := []struct {
		name string
		ds   *dataset.Dataset
	}{{"recommendations", recs}, {"users", users}, {"searches", searches}}
	for _, in := range inputs {
		if !in.ds.Has(dataset.ColUserID) {
			return nil, Stats{}, fmt.Errorf("merge: %s has no %s column", in.name, dataset.ColUserID)
		}
	}

	out, err := dataset.New(recs.Columns()...)
	if err != nil {
		return nil, Stats{}, err
	}
	userCols := extraColumns(out, users)
	if err := out.AddColumns(names(userCols)...); err != nil {
		return nil, Stats{}, err
	}
	searchCols := extraColumns(out, searches)
	if err := out.AddColumns(names(searchCols)...); err != nil {
		return nil, Stats{}, err
	}

	var fill []dataset.Column
	for _, name := range collapsed {
		if recs.Has(name) && users.Has(name) {
			fill = append(fill, dataset.MustLookup(name))
		}
	}

	userByID := firstByUser(users)
	searchByID := firstByUser(searches)

	stats := Stats{Rows: recs.Len()}
	for _, rec := range recs.Rows {
		row := rec.Clone()
		id := rec.UserID.V

		if u, ok := userByID[id]; ok && rec.UserID.Valid {
			for _, col := range userCols {
				col.Copy(row, u)
			}
			for _, col := range fill {
				if col.IsNull(row) && !col.IsNull(u) {
					col.Copy(row, u)
					switch col.Name {
					case dataset.ColUserVector:
						stats.VectorFromUser++
					case dataset.ColPrimarySegment:
						stats.SegmentFromUser++
					}
				}
			}
		} else {
			stats.WithoutUser++
		}

		if s, ok := searchByID[id]; ok && rec.UserID.Valid {
			for _, col := range searchCols {
				col.Copy(row, s)
			}
		} else {
			stats.WithoutSearch++
		}
		out.Append(row)
	}
	return out, stats, nil
}

// extraColumns returns the columns of right that left does not carry.
func extraColumns(left, right *dataset.Dataset) []dataset.Column {
	var out []dataset.Column
	for _, col := range right.ActiveColumns() {
		if !left.Has(col.Name) {
			out = append(out, col)
		}
	}
	return out
}

func names(cols []dataset.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func firstByUser(ds *dataset.Dataset) map[string]*dataset.Record {
	idx := make(map[string]*dataset.Record, ds.Len())
	for _, r := range ds.Rows {
		id, ok := r.UserID.Get()
		if !ok {
			continue
		}
		if _, seen := idx[id]; !seen {
			idx[id] = r
		}
	}
	return idx
}
