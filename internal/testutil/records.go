package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/labels"
)

// RecOption adjusts a recommendation built by Rec.
type RecOption func(*dataset.Record)

// Rec returns a pending recommendation created at Reference with uniform
// preference vectors.
func Rec(id, user string, opts ...RecOption) *dataset.Record {
	r := &dataset.Record{
		RecommendationID:    dataset.Some(id),
		UserID:              dataset.Some(user),
		Status:              dataset.Some("PENDING"),
		CreatedAt:           dataset.Some(Reference),
		RecommendationScore: dataset.Some(0.8),
		ItemDestinationID:   dataset.Some("dest-" + id),
		ItemPopularityScore: dataset.Some(0.5),
		ItemBookingCount:    dataset.Some(10.0),
		UserVector:          Uniform(0.5),
		ItemVector:          Uniform(0.4),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Viewed marks r viewed after d.
func Viewed(d time.Duration) RecOption {
	return func(r *dataset.Record) { r.ViewedAt = dataset.Some(Reference.Add(d)) }
}

// Clicked marks r clicked after d.
func Clicked(d time.Duration) RecOption {
	return func(r *dataset.Record) { r.ClickedAt = dataset.Some(Reference.Add(d)) }
}

// Booked marks r booked after d.
func Booked(d time.Duration) RecOption {
	return func(r *dataset.Record) {
		r.BookedAt = dataset.Some(Reference.Add(d))
		r.Status = dataset.Some(labels.TypeBooked)
	}
}

// Rejected marks r rejected.
func Rejected() RecOption {
	return func(r *dataset.Record) {
		r.RejectedAt = dataset.Some(Reference.Add(time.Minute))
		r.Status = dataset.Some(labels.TypeRejected)
	}
}

// User returns a user profile born in 1990 with the given nationality.
func User(id, nationality string) *dataset.Record {
	return &dataset.Record{
		UserID:         dataset.Some(id),
		DateOfBirth:    dataset.Some(time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)),
		Nationality:    dataset.Some(nationality),
		Email:          dataset.Some(id + "@example.com"),
		FirstName:      dataset.Some("First"),
		LastName:       dataset.Some("Last"),
		PrimarySegment: dataset.Some("Explorer"),
		UserVector:     Uniform(0.6),
		TravelTypesList: []string{
			"beach", "city",
		},
	}
}

// Search returns a search by user departing days after Reference.
func Search(id, user string, days int) *dataset.Record {
	return &dataset.Record{
		SearchID:      dataset.Some(id),
		UserID:        dataset.Some(user),
		DepartureDate: dataset.Some(Reference.AddDate(0, 0, days)),
		SearchedAt:    dataset.Some(DaysAgo(1)),
	}
}

// Uniform returns a preference vector with every dimension set to v.
func Uniform(v float64) dataset.Vector {
	out := make(dataset.Vector, dataset.VectorLen)
	for i := range out {
		out[i] = v
	}
	return out
}

// Funnel returns n recommendations for user, cycling through the five
// engagement outcomes: booked, clicked, viewed, not viewed, rejected.
func Funnel(prefix, user string, n int) []*dataset.Record {
	out := make([]*dataset.Record, n)
	for i := range out {
		id := fmt.Sprintf("%s%d", prefix, i)
		switch i % 5 {
		case 0:
			out[i] = Rec(id, user, Viewed(time.Minute), Clicked(2*time.Minute), Booked(time.Hour))
		case 1:
			out[i] = Rec(id, user, Viewed(time.Minute), Clicked(3*time.Minute))
		case 2:
			out[i] = Rec(id, user, Viewed(time.Minute))
		case 3:
			out[i] = Rec(id, user)
		default:
			out[i] = Rec(id, user, Rejected())
		}
	}
	return out
}
