// Package anonymize turns cleaned interactions into a dataset with no
// direct identifiers: user ids are hashed, nationality and age are
// generalized, rare categories are suppressed and PII columns are dropped.
package anonymize

import (
	"math"

	"github.com/roach88/recset/internal/dataset"
)

// Other replaces rare categorical values.
const Other = "OTHER"

// DefaultRareThreshold is the minimum count a categorical value needs to
// survive suppression.
const DefaultRareThreshold = 10

// Options configures Anonymize.
type Options struct {
	RareThreshold int

	// Salt is mixed into user hashes when non-empty.
	Salt string
}

// Stats reports what anonymization generalized.
type Stats struct {
	Regions       map[string]int
	AgeGroups     map[string]int
	RareValues    map[string]int
	DroppedPII    []string
	AgeOutOfRange int
}

// Anonymize rewrites ds in place. user_id is hashed first and dropped last,
// together with the other PII columns.
func Anonymize(ds *dataset.Dataset, opts Options) (Stats, error) {
	stats := Stats{
		Regions:    map[string]int{},
		AgeGroups:  map[string]int{},
		RareValues: map[string]int{},
	}
	if err := ds.AddColumns(dataset.ColUserHash, dataset.ColUserRegion, dataset.ColUserAgeGroup); err != nil {
		return Stats{}, err
	}

	for _, r := range ds.Rows {
		hashUser(r, opts.Salt)

		r.UserRegion = dataset.Some(Region(r.Nationality.V))
		stats.Regions[r.UserRegion.V]++

		r.UserAgeGroup = dataset.Null[string]{}
		if age, ok := r.UserAge.Get(); ok && !math.IsNaN(age) {
			if group, ok := AgeGroup(age); ok {
				r.UserAgeGroup = dataset.Some(group)
				stats.AgeGroups[group]++
			} else {
				stats.AgeOutOfRange++
			}
		}
	}
	ds.DropColumns(dataset.ColNationality, dataset.ColUserAge)

	stats.RareValues = SuppressRare(ds, opts.RareThreshold)

	for _, name := range dataset.PIIColumns() {
		if ds.Has(name) {
			stats.DroppedPII = append(stats.DroppedPII, name)
		}
	}
	ds.DropColumns(dataset.PIIColumns()...)
	return stats, nil
}

func hashUser(r *dataset.Record, salt string) {
	if id, ok := r.UserID.Get(); ok {
		r.UserHash = dataset.Some(dataset.HashUserID(id, salt))
	} else {
		r.UserHash = dataset.Null[string]{}
	}
}

// SuppressRare replaces values seen fewer than threshold times with Other
// in every active categorical column. It returns the number of distinct
// values generalized per column.
func SuppressRare(ds *dataset.Dataset, threshold int) map[string]int {
	out := map[string]int{}
	for _, col := range ds.ActiveColumns() {
		if col.Kind != dataset.KindString || !col.Group.Has(dataset.GroupCategorical) || col.Group.Has(dataset.GroupIdentifier) {
			continue
		}
		counts := map[string]int{}
		for _, r := range ds.Rows {
			if v, ok := col.Text(r); ok {
				counts[v]++
			}
		}
		rare := map[string]bool{}
		for v, n := range counts {
			if n < threshold {
				rare[v] = true
			}
		}
		if len(rare) == 0 {
			continue
		}
		for _, r := range ds.Rows {
			if v, ok := col.Text(r); ok && rare[v] {
				col.SetText(r, Other)
			}
		}
		out[col.Name] = len(rare)
	}
	return out
}
