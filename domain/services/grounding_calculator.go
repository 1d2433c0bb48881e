package services

import "github.com/groundgraph/engine/domain/core/valueobjects"

// DefaultPolarityPairNames is the default polarity pair list from spec.md
// §4.4 step 1 and the configuration key grounding.polarity_pairs.
var DefaultPolarityPairNames = [][2]valueobjects.VocabTypeName{
	{"SUPPORTS", "CONTRADICTS"},
	{"VALIDATES", "REFUTES"},
	{"CONFIRMS", "DISPROVES"},
	{"REINFORCES", "OPPOSES"},
	{"ENABLES", "PREVENTS"},
}

// GroundingEdge is the minimal view of an incoming edge the grounding
// calculator needs: the projecting VocabType's embedding and the edge's
// confidence.
type GroundingEdge struct {
	VocabTypeEmbedding valueobjects.Embedding
	Confidence         float64
}

// GroundingCalculator computes grounding, the confidence-weighted mean
// projection of a concept's incoming edges onto the polarity axis
// (spec.md §4.4 steps 3-4).
type GroundingCalculator struct{}

func NewGroundingCalculator() *GroundingCalculator { return &GroundingCalculator{} }

// Calculate returns grounding in (practically) [-1, 1]. Returns 0 if axis
// is invalid or total confidence is zero (spec.md step 2 and step 4).
func (g *GroundingCalculator) Calculate(axis Axis, edges []GroundingEdge) float64 {
	if !axis.IsValid() {
		return 0
	}
	var weightedSum, totalConfidence float64
	for _, e := range edges {
		if e.VocabTypeEmbedding.IsZero() {
			continue
		}
		pi := axis.Project(e.VocabTypeEmbedding)
		weightedSum += e.Confidence * pi
		totalConfidence += e.Confidence
	}
	if totalConfidence == 0 {
		return 0
	}
	return weightedSum / totalConfidence
}
