package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.Normal(10, 2), b.Normal(10, 2))
		require.Equal(t, a.Weighted([]float64{1, 2, 3}), b.Weighted([]float64{1, 2, 3}))
	}
}

func TestUniformBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		v := s.Uniform(5, 2)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.LessOrEqual(t, v, 5.0)
	}
	assert.Equal(t, 3.0, s.Uniform(3, 3))
}

func TestNormalZeroSigma(t *testing.T) {
	assert.Equal(t, 7.0, New(1).Normal(7, 0))
}

func TestWeighted(t *testing.T) {
	s := New(3)
	assert.Equal(t, -1, s.Weighted(nil))
	for i := 0; i < 100; i++ {
		assert.Equal(t, 1, s.Weighted([]float64{0, 5, 0}))
	}
	idx := s.Weighted([]float64{0, 0, 0})
	assert.True(t, idx >= 0 && idx < 3)
}

func TestSample(t *testing.T) {
	s := New(9)
	got := s.Sample(8, 3)
	require.Len(t, got, 3)
	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v])
		seen[v] = true
		assert.True(t, v >= 0 && v < 8)
	}
	assert.Len(t, s.Sample(2, 5), 2)
	assert.Nil(t, s.Sample(2, 0))
}
