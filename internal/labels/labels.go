// Package labels derives supervised learning targets from the lifecycle of
// each recommendation.
package labels

import (
	"math"
	"strconv"
	"time"

	"github.com/roach88/recset/internal/dataset"
)

// Engagement scores.
const (
	ScoreBooked    = 5.0
	ScoreClicked   = 3.0
	ScoreViewed    = 1.0
	ScoreNotViewed = 0.0
	ScoreRejected  = -1.0
)

// Interaction types.
const (
	TypeBooked    = "BOOKED"
	TypeClicked   = "CLICKED"
	TypeViewed    = "VIEWED"
	TypeRejected  = "REJECTED"
	TypeNotViewed = "NOT_VIEWED"
)

// Meanings describes each engagement score for reports.
var Meanings = map[float64]string{
	ScoreBooked:    "Booked",
	ScoreClicked:   "Clicked",
	ScoreViewed:    "Viewed",
	ScoreRejected:  "Rejected",
	ScoreNotViewed: "Not viewed",
}

// LegalScores lists every engagement score in descending order.
var LegalScores = []float64{ScoreBooked, ScoreClicked, ScoreViewed, ScoreNotViewed, ScoreRejected}

// Columns lists the columns Construct adds.
var Columns = []string{
	dataset.ColEngagementScore,
	dataset.ColBookingProbability,
	dataset.ColTimeToInteraction,
	dataset.ColInteractionType,
	dataset.ColInteractionID,
}

// Score returns the engagement score of r. The first matching state wins:
// booked, clicked, viewed, rejected. A state matches when its timestamp is
// set or status names it.
func Score(r *dataset.Record) float64 {
	status := r.Status.V
	switch {
	case r.BookedAt.Valid || status == TypeBooked:
		return ScoreBooked
	case r.ClickedAt.Valid || status == TypeClicked:
		return ScoreClicked
	case r.ViewedAt.Valid || status == TypeViewed:
		return ScoreViewed
	case r.RejectedAt.Valid || status == TypeRejected:
		return ScoreRejected
	default:
		return ScoreNotViewed
	}
}

// InteractionType names an engagement score.
func InteractionType(score float64) string {
	switch score {
	case ScoreBooked:
		return TypeBooked
	case ScoreClicked:
		return TypeClicked
	case ScoreViewed:
		return TypeViewed
	case ScoreRejected:
		return TypeRejected
	default:
		return TypeNotViewed
	}
}

// BookingProbability is 1 for booked recommendations and 0 otherwise.
func BookingProbability(score float64) float64 {
	if score == ScoreBooked {
		return 1
	}
	return 0
}

// TimeToInteraction returns whole seconds (truncated) from creation to the
// first interaction, taking viewed, clicked and booked in that order. It is
// null when either timestamp is missing.
func TimeToInteraction(r *dataset.Record) dataset.Null[float64] {
	created, ok := r.CreatedAt.Get()
	if !ok {
		return dataset.Null[float64]{}
	}
	var at time.Time
	switch {
	case r.ViewedAt.Valid:
		at = r.ViewedAt.V
	case r.ClickedAt.Valid:
		at = r.ClickedAt.V
	case r.BookedAt.Valid:
		at = r.BookedAt.V
	default:
		return dataset.Null[float64]{}
	}
	return dataset.Some(math.Trunc(at.Sub(created).Seconds()))
}

// Apply sets every label column of r.
func Apply(r *dataset.Record) {
	score := Score(r)
	r.EngagementScore = dataset.Some(score)
	r.BookingProbability = dataset.Some(BookingProbability(score))
	r.TimeToInteraction = TimeToInteraction(r)
	r.InteractionType = dataset.Some(InteractionType(score))
	r.InteractionID = dataset.Null[string]{}
	if id, ok := r.RecommendationID.Get(); ok {
		r.InteractionID = dataset.Some(id)
	}
}

// Distribution counts rows per engagement score.
type Distribution map[float64]int

// Construct labels every row of ds in place and returns the engagement
// distribution.
func Construct(ds *dataset.Dataset) (Distribution, error) {
	if err := ds.AddColumns(Columns...); err != nil {
		return nil, err
	}
	dist := Distribution{}
	for _, r := range ds.Rows {
		Apply(r)
		dist[r.EngagementScore.V]++
	}
	return dist, nil
}

// Key renders a score as a stable map key ("5", "-1").
func Key(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
