package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	assert.Equal(t, float64(32), Dot([]float32{1, 2, 3}, []float32{4, 5, 6}))
}

func TestDotTruncatesToShorterVector(t *testing.T) {
	assert.Equal(t, float64(4), Dot([]float32{1, 2, 3}, []float32{4}))
}

func TestNorm(t *testing.T) {
	assert.InDelta(t, 5.0, Norm([]float32{3, 4}), 1e-9)
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	normalized := Normalize([]float32{3, 4})
	require.Len(t, normalized, 2)
	assert.True(t, IsUnitNorm(normalized, 1e-6))
}

func TestNormalizeZeroVectorReturnsUnchanged(t *testing.T) {
	zero := []float32{0, 0, 0}
	normalized := Normalize(zero)
	assert.Equal(t, zero, normalized)
}

func TestIsUnitNorm(t *testing.T) {
	assert.True(t, IsUnitNorm([]float32{1, 0, 0}, 1e-9))
	assert.False(t, IsUnitNorm([]float32{1, 1, 0}, 1e-9))
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSimilarityOpposite(t *testing.T) {
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosineSimilarityZeroVectorIsZero(t *testing.T) {
	assert.Equal(t, float64(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestSub(t *testing.T) {
	assert.Equal(t, []float32{1, 1, 1}, Sub([]float32{4, 5, 6}, []float32{3, 4, 5}))
}

func TestMeanOfEmptyIsNil(t *testing.T) {
	assert.Nil(t, Mean(nil))
}

func TestMean(t *testing.T) {
	result := Mean([][]float32{{2, 4}, {4, 8}, {6, 12}})
	assert.Equal(t, []float32{4, 8}, result)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 0, -1}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestNormOfZeroVectorIsZero(t *testing.T) {
	assert.Equal(t, float64(0), Norm([]float32{0, 0, 0}))
}

func TestCosineSimilarityBounded(t *testing.T) {
	sim := CosineSimilarity([]float32{1, 2, -3}, []float32{-2, 1, 5})
	assert.LessOrEqual(t, math.Abs(sim), 1.0+1e-9)
}
