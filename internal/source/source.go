package source

import (
	"context"
	"slices"
	"time"

	"github.com/roach88/recset/internal/dataset"
)

// Extractor produces the raw record sets.
type Extractor interface {
	Users(ctx context.Context) (*dataset.Dataset, error)
	Recommendations(ctx context.Context) (*dataset.Dataset, error)
	Searches(ctx context.Context) (*dataset.Dataset, error)
}

// MostRecentSearches keeps one search per user: the one with the latest
// searched_at. Ties keep the earlier row. Searches without a timestamp or a
// user are discarded. Output follows the order in which each user's kept
// search first appears.
func MostRecentSearches(searches *dataset.Dataset) *dataset.Dataset {
	type pick struct {
		idx int
		at  time.Time
	}
	best := make(map[string]pick)
	for i, r := range searches.Rows {
		user, ok := r.UserID.Get()
		if !ok || !r.SearchedAt.Valid {
			continue
		}
		cur, seen := best[user]
		if !seen || r.SearchedAt.V.After(cur.at) {
			best[user] = pick{idx: i, at: r.SearchedAt.V}
		}
	}

	keep := make([]int, 0, len(best))
	for _, p := range best {
		keep = append(keep, p.idx)
	}
	slices.Sort(keep)

	rows := make([]*dataset.Record, len(keep))
	for i, idx := range keep {
		rows[i] = searches.Rows[idx]
	}
	return searches.WithRows(rows)
}
