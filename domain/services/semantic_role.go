package services

import (
	"strings"

	"github.com/groundgraph/engine/domain/core/entities"
)

// temporalLexicon names vocabulary types that mark historical/precedence
// relationships regardless of their measured grounding (spec.md §4.3b).
var temporalLexicon = []string{"PRECEDES", "FOLLOWS", "HISTORICAL", "SUPERSEDES", "PREDATES"}

// MinSamplesForRole is the minimum sampled-edge count below which a type's
// role is INSUFFICIENT_DATA rather than UNCLASSIFIED.
const MinSamplesForRole = 3

// RoleClassifier aggregates per-edge grounding samples for one vocabulary
// type into its SemanticRole (spec.md §4.3b).
type RoleClassifier struct{}

func NewRoleClassifier() *RoleClassifier { return &RoleClassifier{} }

// Classify returns the semantic role and grounding stats for typeName given
// its sampled per-edge grounding contributions.
func (r *RoleClassifier) Classify(typeName string, samples []float64) (entities.SemanticRole, entities.GroundingStats) {
	stats := computeStats(samples)

	if isTemporal(typeName) {
		return entities.RoleHistorical, stats
	}
	if len(samples) < MinSamplesForRole {
		return entities.RoleInsufficientData, stats
	}
	switch {
	case stats.Mean > 0.8:
		return entities.RoleAffirmative, stats
	case stats.Mean < -0.5:
		return entities.RoleContradictory, stats
	case stats.Mean >= 0.2 && stats.Mean <= 0.8:
		return entities.RoleContested, stats
	default:
		return entities.RoleUnclassified, stats
	}
}

func isTemporal(name string) bool {
	upper := strings.ToUpper(name)
	for _, lex := range temporalLexicon {
		if strings.Contains(upper, lex) {
			return true
		}
	}
	return false
}

func computeStats(samples []float64) entities.GroundingStats {
	n := len(samples)
	if n == 0 {
		return entities.GroundingStats{SampleSize: 0}
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(n)
	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	if n > 0 {
		variance /= float64(n)
	}
	return entities.GroundingStats{Mean: mean, Variance: variance, SampleSize: n}
}
