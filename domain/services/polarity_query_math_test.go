package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundgraph/engine/domain/core/valueobjects"
)

func TestProjectCandidatePositivePoleYieldsPositionOne(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	result := ProjectCandidate(positive, positive, negative, axis)
	assert.InDelta(t, 1.0, result.Position, 1e-6)
	assert.Equal(t, DirectionPositive, result.Direction)
}

func TestProjectCandidateNegativePoleYieldsPositionMinusOne(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	result := ProjectCandidate(negative, positive, negative, axis)
	assert.InDelta(t, -1.0, result.Position, 1e-6)
	assert.Equal(t, DirectionNegative, result.Direction)
}

func TestProjectCandidateMidpointIsNeutral(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	midpoint := emb(0, 1, 0)
	result := ProjectCandidate(midpoint, positive, negative, axis)
	assert.Equal(t, DirectionNeutral, result.Direction)
}

func TestProjectCandidateOrthogonalComponentIsNonNegative(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	result := ProjectCandidate(emb(0, 1, 0), positive, negative, axis)
	assert.GreaterOrEqual(t, result.OrthogonalDistance, 0.0)
}

func TestProjectCandidateSimilarityToPoles(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	result := ProjectCandidate(positive, positive, negative, axis)
	assert.InDelta(t, 1.0, result.SimilarityToPositive, 1e-6)
	assert.InDelta(t, -1.0, result.SimilarityToNegative, 1e-6)
}

func TestProjectCandidatePositionIsClamped(t *testing.T) {
	positive := emb(1, 0, 0)
	negative := emb(-1, 0, 0)
	axis := BuildAxis([]PolarityPair{{Positive: positive, Negative: negative}})

	// A candidate well beyond the positive pole should still clamp to 1.
	// Built unnormalized: emb would scale it back onto the pole itself.
	beyond := valueobjects.Embedding{Vector: []float32{5, 0, 0}, Dimension: 3}
	result := ProjectCandidate(beyond, positive, negative, axis)
	assert.LessOrEqual(t, result.Position, 1.0)
}

func TestClassifyAxisQualityStrongAboveThreshold(t *testing.T) {
	quality, magnitude := ClassifyAxisQuality(emb(1, 0, 0), emb(-1, 0, 0))
	assert.Equal(t, AxisStrong, quality)
	assert.InDelta(t, 2.0, magnitude, 1e-6)
}

func TestClassifyAxisQualityWeakBelowThreshold(t *testing.T) {
	quality, _ := ClassifyAxisQuality(emb(1, 0, 0), emb(0.9, 0.1, 0))
	assert.Equal(t, AxisWeak, quality)
}

func TestPearsonCorrelationPerfectPositive(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	r, p := PearsonCorrelation(xs, ys)
	assert.InDelta(t, 1.0, r, 1e-6)
	assert.InDelta(t, 0.0, p, 1e-6)
}

func TestPearsonCorrelationPerfectNegative(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{10, 8, 6, 4, 2}
	r, _ := PearsonCorrelation(xs, ys)
	assert.InDelta(t, -1.0, r, 1e-6)
}

func TestPearsonCorrelationNoVarianceReturnsZero(t *testing.T) {
	xs := []float64{1, 1, 1}
	ys := []float64{1, 2, 3}
	r, p := PearsonCorrelation(xs, ys)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1.0, p)
}

func TestPearsonCorrelationMismatchedLengthsReturnsZero(t *testing.T) {
	r, p := PearsonCorrelation([]float64{1, 2}, []float64{1})
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1.0, p)
}

func TestPearsonCorrelationUncorrelatedHasHighPValue(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ys := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	_, p := PearsonCorrelation(xs, ys)
	assert.Greater(t, p, 0.05)
}
