package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundgraph/engine/domain/core/entities"
)

func TestClassifyTemporalLexiconOverridesSampleCount(t *testing.T) {
	classifier := NewRoleClassifier()
	role, stats := classifier.Classify("PRECEDES", nil)
	assert.Equal(t, entities.RoleHistorical, role)
	assert.Equal(t, 0, stats.SampleSize)
}

func TestClassifyTemporalMatchIsSubstring(t *testing.T) {
	classifier := NewRoleClassifier()
	role, _ := classifier.Classify("directly_supersedes_v2", []float64{0.9, 0.9, 0.9})
	assert.Equal(t, entities.RoleHistorical, role)
}

func TestClassifyInsufficientDataBelowMinSamples(t *testing.T) {
	classifier := NewRoleClassifier()
	role, stats := classifier.Classify("SUPPORTS", []float64{0.9, 0.9})
	assert.Equal(t, entities.RoleInsufficientData, role)
	assert.Equal(t, 2, stats.SampleSize)
}

func TestClassifyAffirmativeForHighMean(t *testing.T) {
	classifier := NewRoleClassifier()
	role, stats := classifier.Classify("SUPPORTS", []float64{0.9, 0.85, 0.95})
	assert.Equal(t, entities.RoleAffirmative, role)
	assert.InDelta(t, 0.9, stats.Mean, 1e-9)
}

func TestClassifyContradictoryForLowMean(t *testing.T) {
	classifier := NewRoleClassifier()
	role, _ := classifier.Classify("CONTRADICTS", []float64{-0.8, -0.9, -0.7})
	assert.Equal(t, entities.RoleContradictory, role)
}

func TestClassifyContestedForMidRangeMean(t *testing.T) {
	classifier := NewRoleClassifier()
	role, _ := classifier.Classify("RELATES_TO", []float64{0.3, 0.4, 0.5})
	assert.Equal(t, entities.RoleContested, role)
}

func TestClassifyUnclassifiedBetweenContradictoryAndContested(t *testing.T) {
	classifier := NewRoleClassifier()
	role, _ := classifier.Classify("RELATES_TO", []float64{0.0, 0.05, -0.05})
	assert.Equal(t, entities.RoleUnclassified, role)
}

func TestComputeStatsVarianceOfIdenticalSamplesIsZero(t *testing.T) {
	classifier := NewRoleClassifier()
	_, stats := classifier.Classify("SUPPORTS", []float64{0.9, 0.9, 0.9})
	assert.InDelta(t, 0.0, stats.Variance, 1e-9)
}
