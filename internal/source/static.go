package source

import (
	"context"

	"github.com/roach88/recset/internal/dataset"
)

// Static serves record sets already held in memory, such as the raw
// snapshots of an earlier run. Every call returns a fresh copy.
type Static struct {
	UsersSet           *dataset.Dataset
	RecommendationsSet *dataset.Dataset
	SearchesSet        *dataset.Dataset
}

func (s Static) Users(context.Context) (*dataset.Dataset, error) {
	return cloneOrEmpty(s.UsersSet, dataset.UserColumns), nil
}

func (s Static) Recommendations(context.Context) (*dataset.Dataset, error) {
	return cloneOrEmpty(s.RecommendationsSet, dataset.RecommendationColumns), nil
}

// Searches returns the set as given; it is not reduced again.
func (s Static) Searches(context.Context) (*dataset.Dataset, error) {
	return cloneOrEmpty(s.SearchesSet, dataset.SearchColumns), nil
}

func cloneOrEmpty(ds *dataset.Dataset, columns []string) *dataset.Dataset {
	if ds == nil {
		return dataset.MustNew(columns...)
	}
	return ds.Clone()
}
