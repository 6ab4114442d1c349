// Package cleaning removes unusable rows and repairs the rest: missing
// critical values, imputation, 3-sigma outliers, out-of-range bounded
// values and duplicate interactions, in that order.
package cleaning

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/roach88/recset/internal/dataset"
)

// Unknown replaces missing string values.
const Unknown = "UNKNOWN"

// OutlierColumns are screened with the 3-sigma rule, in this order.
var OutlierColumns = []string{dataset.ColBudgetMax, dataset.ColUserAge, dataset.ColItemBookingCount}

// Sigmas is the outlier band half-width in standard deviations.
const Sigmas = 3.0

// Options configures Clean.
type Options struct {
	// ClipVectorsOnly restricts clipping to unpacked vector dimensions.
	// By default every bounded column is clipped.
	ClipVectorsOnly bool
}

// Stats counts what each step changed, per column.
type Stats struct {
	MissingDropped map[string]int
	Imputed        map[string]int
	Outliers       map[string]int
	Clipped        map[string]int
	Duplicates     int
}

func newStats() Stats {
	return Stats{
		MissingDropped: map[string]int{},
		Imputed:        map[string]int{},
		Outliers:       map[string]int{},
		Clipped:        map[string]int{},
	}
}

// RowsRemoved is the total number of rows dropped.
func (s Stats) RowsRemoved() int {
	n := s.Duplicates
	for _, c := range s.MissingDropped {
		n += c
	}
	for _, c := range s.Outliers {
		n += c
	}
	return n
}

// Clean runs every cleaning step on ds in place.
func Clean(ds *dataset.Dataset, opts Options) Stats {
	stats := newStats()
	dropMissing(ds, stats)
	impute(ds, stats)
	removeOutliers(ds, stats)
	clip(ds, opts, stats)
	stats.Duplicates = dropDuplicates(ds)
	return stats
}

// dropMissing removes rows null in any critical column.
func dropMissing(ds *dataset.Dataset, stats Stats) {
	for _, name := range dataset.CriticalColumns {
		if !ds.Has(name) {
			continue
		}
		col := dataset.MustLookup(name)
		if n := ds.Filter(func(r *dataset.Record) bool { return !col.IsNull(r) }); n > 0 {
			stats.MissingDropped[name] = n
		}
	}
}

// impute fills number columns with their median and string columns with
// Unknown. Columns that are entirely null are left alone.
func impute(ds *dataset.Dataset, stats Stats) {
	for _, col := range ds.ActiveColumns() {
		nulls := ds.NullCount(col.Name)
		if nulls == 0 || nulls == ds.Len() {
			continue
		}
		switch col.Kind {
		case dataset.KindNumber:
			m := Median(ds.Numbers(col.Name))
			for _, r := range ds.Rows {
				if col.IsNull(r) {
					col.SetNumber(r, m)
				}
			}
		case dataset.KindString:
			for _, r := range ds.Rows {
				if col.IsNull(r) {
					col.SetText(r, Unknown)
				}
			}
		default:
			continue
		}
		stats.Imputed[col.Name] = nulls
	}
}

// removeOutliers drops rows more than Sigmas sample standard deviations
// from the mean, one column at a time. Each column's bounds are computed on
// the rows left by the previous column. Passes repeat until one removes
// nothing, so the surviving rows are inside every column's band. Null values
// are kept.
func removeOutliers(ds *dataset.Dataset, stats Stats) {
	for {
		removed := 0
		for _, name := range OutlierColumns {
			if !ds.Has(name) {
				continue
			}
			lo, hi, ok := Bounds(ds.Numbers(name))
			if !ok {
				continue
			}
			col := dataset.MustLookup(name)
			n := ds.Filter(func(r *dataset.Record) bool {
				v, ok := col.Number(r)
				return !ok || (v >= lo && v <= hi)
			})
			if n > 0 {
				stats.Outliers[name] += n
				removed += n
			}
		}
		if removed == 0 {
			return
		}
	}
}

// Bounds returns mean ± Sigmas·std of values. ok is false when fewer than
// two values exist or the standard deviation is zero.
func Bounds(values []float64) (lo, hi float64, ok bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return 0, 0, false
	}
	return mean - Sigmas*std, mean + Sigmas*std, true
}

// ClipColumns returns the active columns clipped into [0,1].
func ClipColumns(ds *dataset.Dataset, opts Options) []dataset.Column {
	want := dataset.GroupBounded
	if opts.ClipVectorsOnly {
		want = dataset.GroupVector
	}
	var out []dataset.Column
	for _, col := range ds.ActiveColumns() {
		if col.Kind == dataset.KindNumber && col.Group.Has(want) {
			out = append(out, col)
		}
	}
	return out
}

func clip(ds *dataset.Dataset, opts Options, stats Stats) {
	for _, col := range ClipColumns(ds, opts) {
		n := 0
		for _, r := range ds.Rows {
			v, ok := col.Number(r)
			if !ok {
				continue
			}
			if c := Clip01(v); c != v {
				col.SetNumber(r, c)
				n++
			}
		}
		if n > 0 {
			stats.Clipped[col.Name] = n
		}
	}
}

// Clip01 clamps v into [0,1].
func Clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type interactionKey struct {
	user, rec dataset.Null[string]
}

// dropDuplicates keeps the first row per (user_id, recommendation_id).
func dropDuplicates(ds *dataset.Dataset) int {
	if !ds.Has(dataset.ColUserID) || !ds.Has(dataset.ColRecommendationID) {
		return 0
	}
	seen := make(map[interactionKey]struct{}, ds.Len())
	return ds.Filter(func(r *dataset.Record) bool {
		k := interactionKey{r.UserID, r.RecommendationID}
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

// Median returns the median of values, averaging the two middle values for
// even counts. values is not modified. It returns 0 for no values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
