package services

import (
	"math"

	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/vecmath"
)

// Direction is the qualitative bucket a candidate's projected position
// falls into (spec.md §4.5).
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

const directionThreshold = 0.3

// CandidateProjection is one candidate's full projection result against a
// two-pole axis (spec.md §4.5, Open Question 2's resolved convention:
// position = ((v - p-)·â / ||Δ||) * 2 - 1, clamped to [-1, 1]).
type CandidateProjection struct {
	Position          float64
	OrthogonalDistance float64
	Direction         Direction
	SimilarityToPositive float64
	SimilarityToNegative float64
}

// ProjectCandidate computes a single candidate's position relative to the
// axis formed by (positive, negative).
func ProjectCandidate(v, positive, negative valueobjects.Embedding, axis Axis) CandidateProjection {
	delta := vecmath.Sub(positive.Vector, negative.Vector)
	deltaNorm := vecmath.Norm(delta)

	vMinusNeg := vecmath.Sub(v.Vector, negative.Vector)

	var rawPosition float64
	if axis.IsValid() && deltaNorm > 0 {
		rawPosition = vecmath.Dot(vMinusNeg, axis.Vector) / deltaNorm
	}
	position := clamp(rawPosition*2-1, -1, 1)

	// Orthogonal distance: the residual of (v - p-) after removing its
	// projection along the axis.
	var projectionScalar float64
	if axis.IsValid() {
		projectionScalar = vecmath.Dot(vMinusNeg, axis.Vector)
	}
	residual := make([]float32, len(vMinusNeg))
	for i, x := range vMinusNeg {
		var axisComponent float32
		if i < len(axis.Vector) {
			axisComponent = axis.Vector[i]
		}
		residual[i] = x - float32(projectionScalar)*axisComponent
	}
	orthoDist := vecmath.Norm(residual)

	dir := DirectionNeutral
	switch {
	case position > directionThreshold:
		dir = DirectionPositive
	case position < -directionThreshold:
		dir = DirectionNegative
	}

	return CandidateProjection{
		Position:             position,
		OrthogonalDistance:   orthoDist,
		Direction:            dir,
		SimilarityToPositive: vecmath.CosineSimilarity(v.Vector, positive.Vector),
		SimilarityToNegative: vecmath.CosineSimilarity(v.Vector, negative.Vector),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AxisQuality classifies axis strength from the magnitude of the pole
// difference vector (spec.md §4.5: strong when ||Δ|| >= 0.7).
type AxisQuality string

const (
	AxisStrong AxisQuality = "strong"
	AxisWeak   AxisQuality = "weak"
)

const axisStrongThreshold = 0.7

func ClassifyAxisQuality(positive, negative valueobjects.Embedding) (AxisQuality, float64) {
	magnitude := vecmath.Distance(positive.Vector, negative.Vector)
	if magnitude >= axisStrongThreshold {
		return AxisStrong, magnitude
	}
	return AxisWeak, magnitude
}

// PearsonCorrelation returns r and an approximate two-tailed p-value for
// the linear correlation between xs and ys (used to correlate axis
// position with grounding, spec.md §4.5 "Report statistics").
func PearsonCorrelation(xs, ys []float64) (r float64, p float64) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, 1
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var num, denX, denY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	if denX == 0 || denY == 0 {
		return 0, 1
	}
	r = num / math.Sqrt(denX*denY)

	// Two-tailed p-value via the t-distribution approximation for the
	// Pearson correlation significance test (standard formula; no exact
	// incomplete-beta implementation needed at this sample size).
	if n <= 2 || math.Abs(r) >= 1 {
		return r, 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	p = approxTTestPValue(math.Abs(t), n-2)
	return r, p
}

// approxTTestPValue approximates the two-tailed p-value for a t-statistic
// using a normal approximation, adequate for the small candidate counts
// (<=20) this engine's polarity analysis operates on.
func approxTTestPValue(t float64, df int) float64 {
	if df <= 0 {
		return 1
	}
	// Welch-Satterthwaite-free normal approximation: for df >= ~10 a t
	// statistic is well approximated by the standard normal.
	z := t
	p := 2 * (1 - normalCDF(z))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
