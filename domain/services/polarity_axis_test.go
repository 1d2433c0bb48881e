package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundgraph/engine/domain/core/valueobjects"
)

func emb(v ...float32) valueobjects.Embedding {
	return valueobjects.NewEmbedding(v, "test-model")
}

func TestBuildAxisEmptyReturnsZeroAxis(t *testing.T) {
	axis := BuildAxis(nil)
	assert.False(t, axis.IsValid())
	assert.Equal(t, 0, axis.PairCount)
}

func TestBuildAxisSkipsPairsWithZeroEmbedding(t *testing.T) {
	axis := BuildAxis([]PolarityPair{
		{Positive: valueobjects.Embedding{}, Negative: emb(1, 0, 0)},
		{Positive: emb(1, 0, 0), Negative: emb(-1, 0, 0)},
	})
	require.True(t, axis.IsValid())
	assert.Equal(t, 1, axis.PairCount)
}

func TestBuildAxisProducesUnitVector(t *testing.T) {
	axis := BuildAxis([]PolarityPair{
		{Positive: emb(1, 0, 0), Negative: emb(-1, 0, 0)},
		{Positive: emb(0, 1, 0), Negative: emb(0, -1, 0)},
	})
	require.True(t, axis.IsValid())
	var normSq float64
	for _, x := range axis.Vector {
		normSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, normSq, 1e-6)
}

func TestBuildAxisRecordsPreNormalizationMagnitude(t *testing.T) {
	axis := BuildAxis([]PolarityPair{
		{Positive: emb(3, 0, 0), Negative: emb(-3, 0, 0)},
	})
	require.True(t, axis.IsValid())
	// emb normalizes each pole to (±1, 0, 0), so the difference is (2, 0, 0).
	assert.InDelta(t, 2.0, axis.Magnitude, 1e-6)
}

func TestAxisIsValidRequiresPairsAndVector(t *testing.T) {
	assert.False(t, Axis{}.IsValid())
	assert.False(t, Axis{PairCount: 1}.IsValid())
	assert.False(t, Axis{Vector: []float32{1}}.IsValid())
	assert.True(t, Axis{Vector: []float32{1}, PairCount: 1}.IsValid())
}

func TestAxisProjectReturnsZeroForInvalidAxis(t *testing.T) {
	assert.Equal(t, 0.0, Axis{}.Project(emb(1, 0, 0)))
}

func TestAxisProjectIsDotProduct(t *testing.T) {
	axis := BuildAxis([]PolarityPair{
		{Positive: emb(1, 0, 0), Negative: emb(-1, 0, 0)},
	})
	require.True(t, axis.IsValid())
	assert.InDelta(t, 1.0, axis.Project(emb(1, 0, 0)), 1e-6)
	assert.InDelta(t, -1.0, axis.Project(emb(-1, 0, 0)), 1e-6)
	assert.InDelta(t, 0.0, axis.Project(emb(0, 1, 0)), 1e-6)
}

func TestAxisNegateOnInvalidAxisIsNoop(t *testing.T) {
	assert.Equal(t, Axis{}, Axis{}.Negate())
}

func TestAxisNegateFlipsEveryComponent(t *testing.T) {
	axis := BuildAxis([]PolarityPair{
		{Positive: emb(1, 0, 0), Negative: emb(-1, 0, 0)},
		{Positive: emb(0, 2, 0), Negative: emb(0, -2, 0)},
	})
	require.True(t, axis.IsValid())
	negated := axis.Negate()
	require.Len(t, negated.Vector, len(axis.Vector))
	for i := range axis.Vector {
		assert.InDelta(t, -axis.Vector[i], negated.Vector[i], 1e-9)
	}
	assert.Equal(t, axis.Magnitude, negated.Magnitude)
	assert.Equal(t, axis.PairCount, negated.PairCount)
}

// axis(p,n) == -axis(n,p): building an axis from reversed pairs yields the
// negated axis, matching the doc comment on Axis.Negate.
func TestAxisRoundTripReversedPairsEqualsNegation(t *testing.T) {
	forward := BuildAxis([]PolarityPair{
		{Positive: emb(1, 2, 3), Negative: emb(-1, 0, 1)},
		{Positive: emb(0, 1, 0), Negative: emb(2, -1, 0)},
	})
	reversed := BuildAxis([]PolarityPair{
		{Positive: emb(-1, 0, 1), Negative: emb(1, 2, 3)},
		{Positive: emb(2, -1, 0), Negative: emb(0, 1, 0)},
	})
	require.True(t, forward.IsValid())
	require.True(t, reversed.IsValid())

	expected := forward.Negate()
	require.Len(t, reversed.Vector, len(expected.Vector))
	for i := range expected.Vector {
		assert.InDelta(t, expected.Vector[i], reversed.Vector[i], 1e-6)
	}
}
