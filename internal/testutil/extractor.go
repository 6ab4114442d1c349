package testutil

import (
	"context"
	"slices"

	"github.com/roach88/recset/internal/dataset"
)

// Extractor serves raw record sets from memory. Each call returns a fresh
// copy so stages may modify what they receive.
//
// Thread-safety: Extractor is read-only after construction.
type Extractor struct {
	UsersRows           []*dataset.Record
	RecommendationsRows []*dataset.Record
	SearchesRows        []*dataset.Record

	// Err, when set, is returned by every method.
	Err error
}

func (e *Extractor) Users(context.Context) (*dataset.Dataset, error) {
	return e.serve(dataset.UserColumns, e.UsersRows)
}

func (e *Extractor) Recommendations(context.Context) (*dataset.Dataset, error) {
	return e.serve(dataset.RecommendationColumns, e.RecommendationsRows)
}

func (e *Extractor) Searches(context.Context) (*dataset.Dataset, error) {
	return e.serve(dataset.SearchColumns, e.SearchesRows)
}

func (e *Extractor) serve(columns []string, rows []*dataset.Record) (*dataset.Dataset, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	ds := dataset.MustNew(columns...)
	for _, r := range rows {
		c := r.Clone()
		// Slots outside the record set stay null.
		for _, col := range dataset.Columns {
			if !slices.Contains(columns, col.Name) {
				col.Clear(c)
			}
		}
		ds.Append(c)
	}
	return ds, nil
}
