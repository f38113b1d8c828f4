package bernoulli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScore(t *testing.T) {
	z, err := ZScore(0.95)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, z, 1e-4)

	z, err = ZScore(0.99)
	require.NoError(t, err)
	assert.InDelta(t, 2.5758, z, 1e-4)

	_, err = ZScore(0.85)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported confidence level")
	assert.Contains(t, err.Error(), "0.95")
}

func TestWaldInterval(t *testing.T) {
	se, lo, hi := WaldInterval(8, 10)
	assert.InDelta(t, 0.126491, se, 1e-5)
	assert.InDelta(t, 0.552077, lo, 1e-5)
	assert.InDelta(t, 1.0, hi, 1e-9) // clamped

	se, lo, hi = WaldInterval(0, 0)
	assert.Zero(t, se)
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	// A degenerate all-success baseline has zero Wald width.
	se, lo, hi = WaldInterval(5, 5)
	assert.Zero(t, se)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestWilsonLowerBound(t *testing.T) {
	// 5/5 observed: the Wilson bound stays informative where Wald collapses
	// to 1.0.
	lo := WilsonLowerBound(1.0, 5, 1.96)
	assert.InDelta(t, 0.5655, lo, 1e-3)

	lo = WilsonLowerBound(0.8, 20, 1.96)
	assert.InDelta(t, 0.5840, lo, 1e-3)

	assert.Zero(t, WilsonLowerBound(0.9, 0, 1.96))
	assert.GreaterOrEqual(t, WilsonLowerBound(0.0, 10, 1.96), 0.0)
}

func TestWilsonLowerBoundMonotonicInSamples(t *testing.T) {
	// More evidence at the same observed rate should tighten the bound.
	prev := 0.0
	for _, n := range []int{5, 10, 50, 200} {
		lo := WilsonLowerBound(0.9, n, 1.96)
		assert.Greater(t, lo, prev, "n=%d", n)
		prev = lo
	}
}
