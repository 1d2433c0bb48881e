package valueobjects

import (
	"github.com/groundgraph/engine/pkg/apperr"
	"github.com/groundgraph/engine/pkg/vecmath"
)

// Embedding is a fixed-dimension, unit-norm vector attached to a Concept,
// VocabType, or SourceEmbedding chunk. Dimension is the system-wide
// invariant D from the active EmbeddingConfig (spec.md invariant 1).
type Embedding struct {
	Vector    []float32
	Model     string
	Dimension int
}

// NewEmbedding normalizes vector to unit length and records its dimension.
// Construction never fails: an all-zero vector normalizes to itself and is
// caught later by read-time dimension/staleness checks, not here.
func NewEmbedding(vector []float32, model string) Embedding {
	normalized := vecmath.Normalize(vector)
	return Embedding{Vector: normalized, Model: model, Dimension: len(normalized)}
}

// IsZero reports whether this Embedding carries no vector at all (as
// opposed to one that is merely dimension-mismatched).
func (e Embedding) IsZero() bool { return len(e.Vector) == 0 }

// RequireDimension returns apperr.DimensionMismatch if e's dimension does
// not equal want. Invariant 1: every active embedding must match D exactly.
func (e Embedding) RequireDimension(want int) error {
	if e.Dimension != want {
		return apperr.New(apperr.DimensionMismatch,
			"embedding dimension does not match active configuration")
	}
	return nil
}

// CosineSimilarity returns the cosine similarity between two embeddings.
func (e Embedding) CosineSimilarity(other Embedding) float64 {
	return vecmath.CosineSimilarity(e.Vector, other.Vector)
}

// Sub returns the element-wise difference e - other as a raw vector,
// useful for constructing polarity-pair difference vectors (spec.md §4.4).
func (e Embedding) Sub(other Embedding) []float32 {
	return vecmath.Sub(e.Vector, other.Vector)
}
