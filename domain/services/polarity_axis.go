// Package services holds the engine's pure, CPU-only domain services —
// no I/O, no provider calls — grounded on backend's
// domain/services/similarity_calculator.go (interface + struct-configured
// default implementation, algorithm selectable via a const enum).
package services

import (
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/vecmath"
)

// PolarityPair names two opposing embeddings (VocabType names, or concept
// poles) whose difference defines one component of a polarity axis.
type PolarityPair struct {
	Positive valueobjects.Embedding
	Negative valueobjects.Embedding
}

// Axis is a unit-norm vector in embedding space built from one or more
// PolarityPairs (spec.md §4.4 steps 1-2, invariant 5).
type Axis struct {
	Vector    []float32
	Magnitude float64 // norm of the mean difference vector before normalization
	PairCount int
}

// BuildAxis averages the pair-difference vectors of valid pairs (skipping
// any pair where either side lacks an embedding) and normalizes the mean
// to unit length. Returns the zero Axis if no pair is usable.
func BuildAxis(pairs []PolarityPair) Axis {
	var diffs [][]float32
	for _, p := range pairs {
		if p.Positive.IsZero() || p.Negative.IsZero() {
			continue
		}
		diffs = append(diffs, p.Positive.Sub(p.Negative))
	}
	if len(diffs) == 0 {
		return Axis{}
	}
	mean := vecmath.Mean(diffs)
	magnitude := vecmath.Norm(mean)
	return Axis{
		Vector:    vecmath.Normalize(mean),
		Magnitude: magnitude,
		PairCount: len(diffs),
	}
}

// IsValid reports whether the axis was built from at least one pair.
func (a Axis) IsValid() bool { return a.PairCount > 0 && len(a.Vector) > 0 }

// Project returns the dot-product projection of v onto the axis — the
// scalar π used throughout grounding and polarity analysis.
func (a Axis) Project(v valueobjects.Embedding) float64 {
	if !a.IsValid() {
		return 0
	}
	return vecmath.Dot(v.Vector, a.Vector)
}

// Negate returns the axis built from the same pairs in reversed order —
// used by the round-trip test property: axis(p,n) == -axis(n,p).
func (a Axis) Negate() Axis {
	if !a.IsValid() {
		return a
	}
	neg := make([]float32, len(a.Vector))
	for i, x := range a.Vector {
		neg[i] = -x
	}
	return Axis{Vector: neg, Magnitude: a.Magnitude, PairCount: a.PairCount}
}
