package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recset/internal/dataset"
	"github.com/roach88/recset/internal/labels"
)

func TestExtractor_ServesCopiesRestrictedToColumns(t *testing.T) {
	user := User("u1", "US")
	user.SearchID = dataset.Some("s1")
	e := &Extractor{UsersRows: []*dataset.Record{user}}

	ds, err := e.Users(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.False(t, ds.Rows[0].SearchID.Valid)
	assert.Equal(t, "US", ds.Rows[0].Nationality.V)

	ds.Rows[0].Nationality.V = "DE"
	assert.Equal(t, "US", user.Nationality.V)
}

func TestExtractor_Err(t *testing.T) {
	e := &Extractor{Err: errors.New("down")}
	_, err := e.Searches(context.Background())
	assert.EqualError(t, err, "down")
}

func TestFunnel_CyclesOutcomes(t *testing.T) {
	rows := Funnel("r", "u1", 5)
	var scores []float64
	for _, r := range rows {
		scores = append(scores, labels.Score(r))
	}
	assert.Equal(t, []float64{5, 3, 1, 0, -1}, scores)
	assert.Equal(t, Reference.Add(time.Minute), rows[2].ViewedAt.V)
}
