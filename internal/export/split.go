package export

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/sampling"
)

// DefaultTestFraction is the default share of rows held out for testing.
const DefaultTestFraction = 0.2

// Split partitions ds into train and test, stratified on engagement_score:
// each score class sends round(testFraction × class size) of its rows, in
// seeded random order, to test. Both partitions are then shuffled. ds is not
// modified; the partitions share its records.
func Split(ds *dataset.Dataset, testFraction float64, seed int64) (train, test *dataset.Dataset, err error) {
	if testFraction < 0 || testFraction > 1 || math.IsNaN(testFraction) {
		return nil, nil, fmt.Errorf("export: test fraction %v outside [0,1]", testFraction)
	}
	if !ds.Has(dataset.ColEngagementScore) {
		return nil, nil, errors.New("export: dataset is not labeled")
	}

	classes := map[float64][]*dataset.Record{}
	var order []float64
	for _, r := range ds.Rows {
		score := r.EngagementScore.V
		if _, ok := classes[score]; !ok {
			order = append(order, score)
		}
		classes[score] = append(classes[score], r)
	}
	// Classes are visited in a fixed order so equal seeds give equal splits.
	slices.Sort(order)

	rng := sampling.NewRand(seed)
	var trainRows, testRows []*dataset.Record
	for _, score := range order {
		rows := slices.Clone(classes[score])
		sampling.Shuffle(rng, rows)
		n := int(math.Round(testFraction * float64(len(rows))))
		testRows = append(testRows, rows[:n]...)
		trainRows = append(trainRows, rows[n:]...)
	}
	sampling.Shuffle(rng, trainRows)
	sampling.Shuffle(rng, testRows)

	return ds.WithRows(trainRows), ds.WithRows(testRows), nil
}
