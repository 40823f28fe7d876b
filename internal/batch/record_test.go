package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTripPreservesOrder(t *testing.T) {
	rec := Record{
		{Key: "zeta", Value: "1"},
		{Key: "alpha", Value: "two"},
		{Key: "mid", Value: ""},
	}

	encoded, err := rec.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":"two","mid":""}`, encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeScalars(t *testing.T) {
	rec, err := Decode(`{"count": 42, "price": 19.99, "active": true, "note": null}`)
	require.NoError(t, err)

	require.Len(t, rec, 4)
	assert.Equal(t, Field{Key: "count", Value: "42"}, rec[0])
	assert.Equal(t, Field{Key: "price", Value: "19.99"}, rec[1])
	assert.Equal(t, Field{Key: "active", Value: "true"}, rec[2])
	assert.Equal(t, Field{Key: "note", Value: ""}, rec[3])
}

func TestDecodeRejectsNonScalars(t *testing.T) {
	_, err := Decode(`{"tags": ["a", "b"]}`)
	assert.Error(t, err)

	_, err = Decode(`["not", "an", "object"]`)
	assert.Error(t, err)
}

func TestRecordEscaping(t *testing.T) {
	rec := Record{{Key: `quo"te`, Value: "line\nbreak"}}

	encoded, err := rec.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}
