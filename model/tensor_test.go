package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDims_Helpers(t *testing.T) {
	d := D("energy", "quanta")

	assert.Equal(t, "(energy,quanta)", d.Key())
	assert.Equal(t, 1, d.Index("quanta"))
	assert.Equal(t, -1, d.Index("s1"))
	assert.True(t, d.Contains("energy"))
	assert.False(t, d.Contains("s1"))
	assert.True(t, d.Equal(D("energy", "quanta")))
	assert.False(t, d.Equal(D("quanta", "energy")), "order matters")
	assert.Equal(t, D("quanta"), d.Without("energy"))
	assert.Equal(t, D("energy", "quanta"), d, "Without must not mutate the receiver")
}

func TestRank1_Layout(t *testing.T) {
	// GIVEN a (2,3) tensor built from row-major data
	r, err := Rank1From(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	// THEN accessors address rows per event
	assert.Equal(t, 1, r.Rank())
	assert.Equal(t, []int{2, 3}, r.Shape())
	assert.Equal(t, 6.0, r.At(1, 2))
	assert.Equal(t, []float64{4, 5, 6}, r.Row(1))
	assert.Equal(t, FloatType, r.DType())

	r.Set(0, 1, 9)
	assert.Equal(t, 9.0, r.Values()[1])
}

func TestRank1From_WrongLength_Errors(t *testing.T) {
	_, err := Rank1From(2, 3, []float64{1, 2})
	assert.Error(t, err)
	_, err = Rank2From(1, 2, 2, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestRank2_Transpose(t *testing.T) {
	// GIVEN a (1,2,3) tensor
	r, err := Rank2From(1, 2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	require.NoError(t, err)

	// WHEN transposed
	tr := r.Transpose()

	// THEN axes swap and the original is untouched
	assert.Equal(t, []int{1, 3, 2}, tr.Shape())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, r.At(0, i, j), tr.At(0, j, i))
		}
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, r.Values())
}

func TestWithDType_KeepsValues(t *testing.T) {
	r := NewRank1(1, 2).WithDType(Float32)
	assert.Equal(t, Float32, r.DType())
	assert.Len(t, r.Values(), 2)
}
