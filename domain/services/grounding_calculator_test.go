package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundgraph/engine/domain/core/valueobjects"
)

func buildTestAxis(t *testing.T) Axis {
	t.Helper()
	axis := BuildAxis([]PolarityPair{
		{Positive: emb(1, 0, 0), Negative: emb(-1, 0, 0)},
	})
	if !axis.IsValid() {
		t.Fatal("expected valid test axis")
	}
	return axis
}

func TestGroundingCalculateInvalidAxisReturnsZero(t *testing.T) {
	calc := NewGroundingCalculator()
	got := calc.Calculate(Axis{}, []GroundingEdge{{VocabTypeEmbedding: emb(1, 0, 0), Confidence: 1}})
	assert.Equal(t, 0.0, got)
}

func TestGroundingCalculateZeroTotalConfidenceReturnsZero(t *testing.T) {
	calc := NewGroundingCalculator()
	axis := buildTestAxis(t)
	got := calc.Calculate(axis, []GroundingEdge{
		{VocabTypeEmbedding: emb(1, 0, 0), Confidence: 0},
		{VocabTypeEmbedding: emb(-1, 0, 0), Confidence: 0},
	})
	assert.Equal(t, 0.0, got)
}

func TestGroundingCalculateNoEdgesReturnsZero(t *testing.T) {
	calc := NewGroundingCalculator()
	axis := buildTestAxis(t)
	assert.Equal(t, 0.0, calc.Calculate(axis, nil))
}

func TestGroundingCalculateSkipsZeroEmbeddingEdges(t *testing.T) {
	calc := NewGroundingCalculator()
	axis := buildTestAxis(t)
	got := calc.Calculate(axis, []GroundingEdge{
		{VocabTypeEmbedding: valueobjects.Embedding{}, Confidence: 100},
		{VocabTypeEmbedding: emb(1, 0, 0), Confidence: 1},
	})
	assert.InDelta(t, 1.0, got, 1e-6)
}

func TestGroundingCalculateConfidenceWeightedMean(t *testing.T) {
	calc := NewGroundingCalculator()
	axis := buildTestAxis(t)
	got := calc.Calculate(axis, []GroundingEdge{
		{VocabTypeEmbedding: emb(1, 0, 0), Confidence: 3},  // projects to +1
		{VocabTypeEmbedding: emb(-1, 0, 0), Confidence: 1}, // projects to -1
	})
	// (3*1 + 1*-1) / 4 = 0.5
	assert.InDelta(t, 0.5, got, 1e-6)
}
