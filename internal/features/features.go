// Package features derives model features from merged records: unpacked
// preference vectors, temporal attributes and flattened profile fields.
//
// Every function here is pure. The reference time is passed in; nothing
// reads the wall clock.
package features

import (
	"math"
	"strings"
	"time"

	"github.com/roach88/recset/internal/dataset"
)

// Defaults for absent profile fields.
const (
	DefaultBudgetMin = 0
	DefaultBudgetMax = 5000

	MinAge = 18
	MaxAge = 100

	MaxDaysUntilDeparture = 365
)

// Options configures Engineer.
type Options struct {
	// Now is the reference time for age computation.
	Now time.Time
}

// Stats counts defaults applied while engineering features.
type Stats struct {
	UserVectorsDefaulted int
	ItemVectorsDefaulted int
}

// Columns lists the columns Engineer adds, in order.
func Columns() []string {
	cols := append(dataset.DimNames("user"), dataset.DimNames("item")...)
	return append(cols,
		dataset.ColTimestamp,
		dataset.ColUserAge,
		dataset.ColSeason,
		dataset.ColIsWeekend,
		dataset.ColDaysUntilDeparture,
		dataset.ColBudgetMin,
		dataset.ColBudgetMax,
		dataset.ColTravelTypes,
		dataset.ColDaysSinceLastSearch,
		dataset.ColDaysSinceLastBooking,
	)
}

// Engineer adds the feature columns to every row of ds in place.
func Engineer(ds *dataset.Dataset, opts Options) (Stats, error) {
	if err := ds.AddColumns(Columns()...); err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, r := range ds.Rows {
		if !Unpack(r.UserVector, &r.UserDims) {
			stats.UserVectorsDefaulted++
		}
		if !Unpack(r.ItemVector, &r.ItemDims) {
			stats.ItemVectorsDefaulted++
		}
		Temporal(r, opts.Now)
		Profile(r)
	}
	return stats, nil
}

// Unpack copies v into dims. A null or malformed vector (length other than
// eight) yields eight zeros and reports false.
func Unpack(v dataset.Vector, dims *dataset.Dims) bool {
	if len(v) != dataset.VectorLen {
		for i := range dims {
			dims[i] = dataset.Some(0.0)
		}
		return false
	}
	for i, f := range v {
		dims[i] = dataset.Some(f)
	}
	return true
}

// Temporal sets timestamp, user_age, season, is_weekend,
// days_until_departure and the recency placeholders.
func Temporal(r *dataset.Record, now time.Time) {
	r.Timestamp = r.CreatedAt
	r.UserAge = Age(r.DateOfBirth, now)
	r.Season = dataset.Null[string]{}
	r.IsWeekend = dataset.Null[bool]{}
	if ts, ok := r.Timestamp.Get(); ok {
		r.Season = dataset.Some(Season(ts))
		r.IsWeekend = dataset.Some(IsWeekend(ts))
	}
	r.DaysUntilDeparture = DaysUntilDeparture(r.Timestamp, r.DepartureDate)

	// No search or booking history is joined yet.
	r.DaysSinceLastSearch = dataset.Some(0.0)
	r.DaysSinceLastBooking = dataset.Some(0.0)
}

// Profile flattens the onboarding budget range and travel types.
func Profile(r *dataset.Record) {
	b := r.GlobalBudgetRange.V
	if !r.GlobalBudgetRange.Valid {
		b = dataset.Budget{}
	}
	r.BudgetMin = dataset.Some(b.Min.Or(DefaultBudgetMin))
	r.BudgetMax = dataset.Some(b.Max.Or(DefaultBudgetMax))
	r.TravelTypes = dataset.Some(strings.Join(r.TravelTypesList, ","))
}

// Age returns whole years between birth and now (days / 365, floored),
// clamped to [MinAge, MaxAge].
func Age(birth dataset.Null[time.Time], now time.Time) dataset.Null[float64] {
	b, ok := birth.Get()
	if !ok {
		return dataset.Null[float64]{}
	}
	years := math.Floor(wholeDays(now.Sub(b)) / 365)
	return dataset.Some(clamp(years, MinAge, MaxAge))
}

// Season maps the month of t to winter, spring, summer or autumn.
func Season(t time.Time) string {
	switch t.UTC().Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// IsWeekend reports whether t falls on a Saturday or Sunday (UTC).
func IsWeekend(t time.Time) bool {
	d := t.UTC().Weekday()
	return d == time.Saturday || d == time.Sunday
}

// DaysUntilDeparture returns whole days from ts to departure, clamped to
// [0, MaxDaysUntilDeparture]. Either input null yields null.
func DaysUntilDeparture(ts, departure dataset.Null[time.Time]) dataset.Null[float64] {
	t, ok := ts.Get()
	d, ok2 := departure.Get()
	if !ok || !ok2 {
		return dataset.Null[float64]{}
	}
	return dataset.Some(clamp(wholeDays(d.Sub(t)), 0, MaxDaysUntilDeparture))
}

// wholeDays floors a duration to whole days, rounding toward negative
// infinity.
func wholeDays(d time.Duration) float64 {
	return math.Floor(d.Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
