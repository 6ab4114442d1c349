// Package sampling balances positive interactions against not-viewed
// recommendations.
package sampling

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/roach88/recset/internal/dataset"
)

// DefaultRatio is the default number of negatives kept per positive.
const DefaultRatio = 2.0

// Options configures Balance.
type Options struct {
	// Ratio is the target number of negatives per positive.
	Ratio float64

	// Seed drives both negative selection and the final shuffle.
	Seed int64
}

// Stats describes one balancing pass.
type Stats struct {
	Positives          int
	NegativesAvailable int
	NegativesTarget    int
	NegativesKept      int

	// Rejected rows (score -1) belong to neither partition and are dropped.
	RejectedDropped int
	Unlabeled       int

	// Short is set when fewer negatives than the target were available.
	Short bool
}

// Balance keeps every positive row (engagement_score > 0) and
// round(positives × ratio) negatives (engagement_score == 0) drawn without
// replacement. When too few negatives exist all of them are kept. The
// result is shuffled. Equal seeds give equal output; ds is not modified.
func Balance(ds *dataset.Dataset, opts Options) (*dataset.Dataset, Stats, error) {
	if opts.Ratio < 0 || math.IsNaN(opts.Ratio) {
		return nil, Stats{}, errors.New("sampling: ratio must be non-negative")
	}
	if !ds.Has(dataset.ColEngagementScore) {
		return nil, Stats{}, errors.New("sampling: dataset is not labeled")
	}

	var positives, negatives []*dataset.Record
	var stats Stats
	for _, r := range ds.Rows {
		score, ok := r.EngagementScore.Get()
		switch {
		case !ok:
			stats.Unlabeled++
		case score > 0:
			positives = append(positives, r)
		case score == 0:
			negatives = append(negatives, r)
		default:
			stats.RejectedDropped++
		}
	}

	stats.Positives = len(positives)
	stats.NegativesAvailable = len(negatives)
	stats.NegativesTarget = int(math.Round(float64(len(positives)) * opts.Ratio))

	kept := negatives
	if len(negatives) >= stats.NegativesTarget {
		kept = sampleWithoutReplacement(NewRand(opts.Seed), negatives, stats.NegativesTarget)
	} else {
		stats.Short = true
	}
	stats.NegativesKept = len(kept)

	rows := make([]*dataset.Record, 0, len(positives)+len(kept))
	rows = append(rows, positives...)
	rows = append(rows, kept...)
	Shuffle(NewRand(opts.Seed), rows)
	return ds.WithRows(rows), stats, nil
}

// NewRand returns the deterministic generator used for a seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// sampleWithoutReplacement returns n distinct elements of src, in draw
// order. src is not modified.
func sampleWithoutReplacement(rng *rand.Rand, src []*dataset.Record, n int) []*dataset.Record {
	idx := rng.Perm(len(src))[:n]
	out := make([]*dataset.Record, n)
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// Shuffle permutes rows in place.
func Shuffle(rng *rand.Rand, rows []*dataset.Record) {
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
}
