package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
)

func TestAgeGroup(t *testing.T) {
	tests := []struct {
		age  float64
		want string
		ok   bool
	}{
		{0, "18-25", true},
		{24, "18-25", true},
		{25, "18-25", true},
		{25.5, "26-35", true},
		{35, "26-35", true},
		{50, "36-50", true},
		{51, "51-65", true},
		{66, "65+", true},
		{100, "65+", true},
		{101, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.age), func(t *testing.T) {
			got, ok := AgeGroup(tt.age)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "Europe", Region("FR"))
	assert.Equal(t, "North America", Region("US"))
	assert.Equal(t, "Africa", Region("KE"))
	assert.Equal(t, OtherRegion, Region("ZZ"))
	assert.Equal(t, OtherRegion, Region(""))
}

func population(n int) *dataset.Dataset {
	ds := dataset.MustNew(
		dataset.ColUserID, dataset.ColRecommendationID, dataset.ColEmail, dataset.ColFirstName,
		dataset.ColLastName, dataset.ColPhoneNumber, dataset.ColDateOfBirth,
		dataset.ColNationality, dataset.ColUserAge, dataset.ColPrimarySegment, dataset.ColInteractionID,
	)
	for i := range n {
		segment := "FAMILY"
		if i == 0 {
			segment = "SPACE_TOURIST"
		}
		ds.Append(&dataset.Record{
			UserID:           dataset.Some(fmt.Sprintf("user-%d", i)),
			RecommendationID: dataset.Some(fmt.Sprintf("rec-%d", i)),
			InteractionID:    dataset.Some(fmt.Sprintf("rec-%d", i)),
			Email:            dataset.Some("x@example.com"),
			Nationality:      dataset.Some([]string{"FR", "US", "XX"}[i%3]),
			UserAge:          dataset.Some(float64(20 + i)),
			PrimarySegment:   dataset.Some(segment),
		})
	}
	return ds
}

func TestAnonymize_RemovesIdentifiers(t *testing.T) {
	ds := population(30)
	stats, err := Anonymize(ds, Options{RareThreshold: DefaultRareThreshold})
	require.NoError(t, err)

	for _, name := range dataset.PIIColumns() {
		assert.False(t, ds.Has(name), name)
	}
	assert.False(t, ds.Has(dataset.ColNationality))
	assert.False(t, ds.Has(dataset.ColUserAge))
	assert.True(t, ds.Has(dataset.ColUserHash))
	assert.True(t, ds.Has(dataset.ColInteractionID))

	hashes := map[string]bool{}
	for _, r := range ds.Rows {
		assert.False(t, r.UserID.Valid)
		assert.False(t, r.Email.Valid)
		assert.Len(t, r.UserHash.V, 64)
		hashes[r.UserHash.V] = true
	}
	assert.Len(t, hashes, 30, "distinct users keep distinct hashes")
	assert.ElementsMatch(t, []string{"user_id", "recommendation_id", "date_of_birth", "email", "first_name", "last_name", "phone_number"}, stats.DroppedPII)
}

func TestAnonymize_HashIsPlainSHA256(t *testing.T) {
	ds := population(1)
	_, err := Anonymize(ds, Options{RareThreshold: 1})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("user-0"))
	assert.Equal(t, hex.EncodeToString(sum[:]), ds.Rows[0].UserHash.V)
}

func TestAnonymize_SaltChangesHash(t *testing.T) {
	plain, salted := population(1), population(1)
	_, err := Anonymize(plain, Options{RareThreshold: 1})
	require.NoError(t, err)
	_, err = Anonymize(salted, Options{RareThreshold: 1, Salt: "pepper"})
	require.NoError(t, err)
	assert.NotEqual(t, plain.Rows[0].UserHash.V, salted.Rows[0].UserHash.V)
}

func TestAnonymize_GeneralizesAndSuppresses(t *testing.T) {
	ds := population(30)
	stats, err := Anonymize(ds, Options{RareThreshold: 10})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Europe": 10, "North America": 10, "Other": 10}, stats.Regions)
	assert.Equal(t, "26-35", ds.Rows[10].UserAgeGroup.V)
	assert.Equal(t, "36-50", ds.Rows[29].UserAgeGroup.V)
	assert.Equal(t, Other, ds.Rows[0].PrimarySegment.V, "single occurrence is rare")
	assert.Equal(t, "FAMILY", ds.Rows[1].PrimarySegment.V)
	assert.Equal(t, "rec-0", ds.Rows[0].InteractionID.V, "identifiers are never suppressed")

	// Ages 20..49: 18-25 holds six rows and is the only rare group.
	assert.Equal(t, Other, ds.Rows[0].UserAgeGroup.V)
	assert.Equal(t, 1, stats.RareValues[dataset.ColUserAgeGroup])
	assert.NotContains(t, stats.RareValues, dataset.ColUserRegion)
	assert.Equal(t, 1, stats.RareValues[dataset.ColPrimarySegment])
}

func TestAnonymize_NullAgeAndNationality(t *testing.T) {
	ds := dataset.MustNew(dataset.ColUserID, dataset.ColNationality, dataset.ColUserAge)
	ds.Append(&dataset.Record{UserID: dataset.Some("u")}, &dataset.Record{UserID: dataset.Some("v"), UserAge: dataset.Some(140.0)})

	stats, err := Anonymize(ds, Options{RareThreshold: 1})
	require.NoError(t, err)
	assert.Equal(t, OtherRegion, ds.Rows[0].UserRegion.V)
	assert.False(t, ds.Rows[0].UserAgeGroup.Valid)
	assert.False(t, ds.Rows[1].UserAgeGroup.Valid)
	assert.Equal(t, 1, stats.AgeOutOfRange)
}

func TestSuppressRare_CoversFreeTextColumns(t *testing.T) {
	ds := dataset.MustNew(
		dataset.ColInteractionID, dataset.ColStatus, dataset.ColItemDestinationName,
		dataset.ColPreferredCabinClass, dataset.ColSearchOrigin, dataset.ColSearchDestination,
	)
	for i := range 30 {
		ds.Append(&dataset.Record{
			InteractionID:       dataset.Some(fmt.Sprintf("i%d", i)),
			Status:              dataset.Some("VIEWED"),
			ItemDestinationName: dataset.Some("Lisbon"),
			PreferredCabinClass: dataset.Some("ECONOMY"),
			SearchOrigin:        dataset.Some("CDG"),
			SearchDestination:   dataset.Some("LIS"),
		})
	}
	odd := &dataset.Record{
		InteractionID:       dataset.Some("i-odd"),
		Status:              dataset.Some("ESCALATED"),
		ItemDestinationName: dataset.Some("Longyearbyen"),
		PreferredCabinClass: dataset.Some("SUITE"),
		SearchOrigin:        dataset.Some("LYR"),
		SearchDestination:   dataset.Some("NOU"),
	}
	ds.Append(odd)

	rare := SuppressRare(ds, 10)
	assert.Equal(t, map[string]int{
		dataset.ColStatus:              1,
		dataset.ColItemDestinationName: 1,
		dataset.ColPreferredCabinClass: 1,
		dataset.ColSearchOrigin:        1,
		dataset.ColSearchDestination:   1,
	}, rare)
	for _, v := range []string{odd.Status.V, odd.ItemDestinationName.V, odd.PreferredCabinClass.V, odd.SearchOrigin.V, odd.SearchDestination.V} {
		assert.Equal(t, Other, v)
	}
	assert.Equal(t, "i-odd", odd.InteractionID.V)
	assert.Equal(t, "Lisbon", ds.Rows[0].ItemDestinationName.V)
}
