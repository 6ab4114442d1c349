package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) dataset.Null[time.Time] {
	return dataset.Some(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestUnpack(t *testing.T) {
	tests := []struct {
		name string
		in   dataset.Vector
		ok   bool
		want float64
	}{
		{"valid", dataset.Vector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}, true, 0.1},
		{"null", nil, false, 0},
		{"malformed", dataset.Vector{}, false, 0},
		{"short", dataset.Vector{0.9, 0.9}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dims dataset.Dims
			assert.Equal(t, tt.ok, Unpack(tt.in, &dims))
			for _, d := range dims {
				assert.True(t, d.Valid)
			}
			assert.Equal(t, tt.want, dims[0].V)
		})
	}
}

func TestAge(t *testing.T) {
	assert.Equal(t, 34.0, Age(day(1990, 1, 1), now).V)
	assert.Equal(t, 18.0, Age(day(2015, 1, 1), now).V, "clamped low")
	assert.Equal(t, 100.0, Age(day(1900, 1, 1), now).V, "clamped high")
	assert.False(t, Age(dataset.Null[time.Time]{}, now).Valid)
}

func TestSeason(t *testing.T) {
	want := map[time.Month]string{
		time.December: "winter", time.January: "winter", time.February: "winter",
		time.March: "spring", time.May: "spring",
		time.June: "summer", time.August: "summer",
		time.September: "autumn", time.November: "autumn",
	}
	for m, season := range want {
		assert.Equal(t, season, Season(time.Date(2024, m, 10, 0, 0, 0, 0, time.UTC)), m.String())
	}
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))  // Saturday
	assert.True(t, IsWeekend(time.Date(2024, 6, 16, 23, 0, 0, 0, time.UTC))) // Sunday
	assert.False(t, IsWeekend(time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)))
}

func TestDaysUntilDeparture(t *testing.T) {
	ts := dataset.Some(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, 9.0, DaysUntilDeparture(ts, day(2024, 6, 11)).V, "partial days floor")
	assert.Equal(t, 0.0, DaysUntilDeparture(ts, day(2024, 5, 1)).V, "past departure clamps to 0")
	assert.Equal(t, 365.0, DaysUntilDeparture(ts, day(2026, 1, 1)).V)
	assert.False(t, DaysUntilDeparture(ts, dataset.Null[time.Time]{}).Valid)
	assert.False(t, DaysUntilDeparture(dataset.Null[time.Time]{}, day(2024, 6, 11)).Valid)
}

func TestProfile(t *testing.T) {
	r := &dataset.Record{
		GlobalBudgetRange: dataset.Some(dataset.Budget{Min: dataset.Some(300.0)}),
		TravelTypesList:   []string{"beach", "city"},
	}
	Profile(r)
	assert.Equal(t, 300.0, r.BudgetMin.V)
	assert.Equal(t, 5000.0, r.BudgetMax.V)
	assert.Equal(t, "beach,city", r.TravelTypes.V)

	empty := &dataset.Record{}
	Profile(empty)
	assert.Equal(t, 0.0, empty.BudgetMin.V)
	assert.Equal(t, 5000.0, empty.BudgetMax.V)
	assert.True(t, empty.TravelTypes.Valid)
	assert.Equal(t, "", empty.TravelTypes.V)
}

func TestEngineer(t *testing.T) {
	ds := dataset.MustNew(dataset.RecommendationColumns...)
	ds.Append(
		&dataset.Record{
			UserID:     dataset.Some("u1"),
			CreatedAt:  dataset.Some(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)),
			UserVector: dataset.Vector{1, 0, 1, 0, 1, 0, 1, 0},
		},
		&dataset.Record{UserID: dataset.Some("u2")},
	)

	stats, err := Engineer(ds, Options{Now: now})
	require.NoError(t, err)
	assert.Equal(t, Stats{UserVectorsDefaulted: 1, ItemVectorsDefaulted: 2}, stats)

	for _, name := range Columns() {
		assert.True(t, ds.Has(name), name)
	}
	first := ds.Rows[0]
	assert.Equal(t, 1.0, first.UserDims[0].V)
	assert.Equal(t, "spring", first.Season.V)
	assert.True(t, first.IsWeekend.V)
	assert.Equal(t, 0.0, first.DaysSinceLastSearch.V)

	second := ds.Rows[1]
	assert.False(t, second.Timestamp.Valid)
	assert.False(t, second.Season.Valid)
	assert.False(t, second.UserAge.Valid)
}
