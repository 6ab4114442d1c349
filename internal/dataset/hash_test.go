package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashUserID_PlainSHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("user-1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), HashUserID("user-1", ""))
}

func TestHashUserID_Deterministic(t *testing.T) {
	assert.Equal(t, HashUserID("u", "pepper"), HashUserID("u", "pepper"))
	assert.NotEqual(t, HashUserID("u", ""), HashUserID("u", "pepper"))
	assert.Len(t, HashUserID("u", "pepper"), 64)
}

func TestHashUserID_NoCollisions(t *testing.T) {
	seen := make(map[string]string, 5000)
	for i := range 5000 {
		id := fmt.Sprintf("user-%d", i)
		h := HashUserID(id, "")
		prev, dup := seen[h]
		require.False(t, dup, "collision between %s and %s", prev, id)
		seen[h] = id
	}
}

func TestDigest_StableAndOrderSensitive(t *testing.T) {
	ds := MustNew(ColUserID, ColRecommendationScore)
	ds.Append(
		&Record{UserID: Some("a"), RecommendationScore: Some(0.5)},
		&Record{UserID: Some("b")},
	)

	d1, err := Digest(ds)
	require.NoError(t, err)
	d2, err := Digest(ds.Clone())
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	reversed := ds.WithRows([]*Record{ds.Rows[1], ds.Rows[0]})
	d3, err := Digest(reversed)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestDigest_InactiveColumnsIgnored(t *testing.T) {
	a := MustNew(ColUserID)
	a.Append(&Record{UserID: Some("a"), Email: Some("x@example.com")})
	b := MustNew(ColUserID)
	b.Append(&Record{UserID: Some("a")})

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}
