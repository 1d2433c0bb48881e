package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

func testSeeds() []SeedType {
	return []SeedType{
		{Name: "SUPPORTS", Category: entities.CategoryEvidential, Embedding: emb(1, 0, 0)},
		{Name: "CONTRADICTS", Category: entities.CategoryEvidential, Embedding: emb(-1, 0, 0)},
		{Name: "CAUSES", Category: entities.CategoryCausation, Embedding: emb(0, 1, 0)},
	}
}

func TestClassifyPicksHighestSimilarityCategory(t *testing.T) {
	classifier := NewCategoryClassifier(testSeeds())
	result := classifier.Classify(emb(1, 0, 0))
	assert.Equal(t, entities.CategoryEvidential, result.Primary)
	assert.InDelta(t, 1.0, result.Confidence, 1e-6)
}

func TestClassifyUsesMaxNotMeanWithinCategory(t *testing.T) {
	// CategoryEvidential contains both SUPPORTS (1,0,0) and CONTRADICTS
	// (-1,0,0); a query aligned with SUPPORTS should score near 1, not
	// near 0 as a mean-based scorer would.
	classifier := NewCategoryClassifier(testSeeds())
	result := classifier.Classify(emb(1, 0, 0))
	assert.InDelta(t, 1.0, result.Confidence, 1e-6)
}

func TestClassifyRecordsRunnerUpAndAmbiguity(t *testing.T) {
	seeds := []SeedType{
		{Name: "SUPPORTS", Category: entities.CategoryEvidential, Embedding: emb(1, 0, 0)},
		{Name: "CAUSES", Category: entities.CategoryCausation, Embedding: emb(1, 0.05, 0)},
	}
	classifier := NewCategoryClassifier(seeds)
	result := classifier.Classify(emb(1, 0, 0))
	require.NotEqual(t, result.Primary, result.RunnerUp)
	assert.True(t, result.Ambiguous, "runner-up score should exceed AmbiguityThreshold")
}

func TestClassifyNotAmbiguousWhenRunnerUpFar(t *testing.T) {
	classifier := NewCategoryClassifier(testSeeds())
	result := classifier.Classify(emb(1, 0, 0))
	assert.False(t, result.Ambiguous)
}

func TestClassifyEmptySeedsReturnsZeroResult(t *testing.T) {
	classifier := NewCategoryClassifier(nil)
	result := classifier.Classify(emb(1, 0, 0))
	assert.Equal(t, entities.VocabCategory(""), result.Primary)
}

func newTestVocabType(t *testing.T, name string, vec []float32) *entities.VocabType {
	t.Helper()
	vt, err := entities.NewVocabType(valueobjects.VocabTypeName(name), "", false)
	require.NoError(t, err)
	if vec != nil {
		vt.Embedding = emb(vec...)
	}
	return vt
}

func TestRankSynonymCandidatesSkipsZeroEmbeddings(t *testing.T) {
	types := []*entities.VocabType{
		newTestVocabType(t, "A", nil),
		newTestVocabType(t, "B", []float32{1, 0, 0}),
	}
	assert.Empty(t, RankSynonymCandidates(types))
}

func TestRankSynonymCandidatesFiltersBelowThreshold(t *testing.T) {
	types := []*entities.VocabType{
		newTestVocabType(t, "A", []float32{1, 0, 0}),
		newTestVocabType(t, "B", []float32{0, 1, 0}),
	}
	assert.Empty(t, RankSynonymCandidates(types))
}

func TestRankSynonymCandidatesKeepsHigherUsageSide(t *testing.T) {
	low := newTestVocabType(t, "SUPORTS", []float32{1, 0.001, 0})
	high := newTestVocabType(t, "SUPPORTS", []float32{1, 0, 0})
	high.UsageCount = 10

	candidates := RankSynonymCandidates([]*entities.VocabType{low, high})
	require.Len(t, candidates, 1)
	assert.Equal(t, valueobjects.VocabTypeName("SUPPORTS"), candidates[0].A)
	assert.Equal(t, valueobjects.VocabTypeName("SUPORTS"), candidates[0].B)
}

func TestRankSynonymCandidatesTieBreaksLexicographically(t *testing.T) {
	b := newTestVocabType(t, "B_TYPE", []float32{1, 0.001, 0})
	a := newTestVocabType(t, "A_TYPE", []float32{1, 0, 0})

	candidates := RankSynonymCandidates([]*entities.VocabType{b, a})
	require.Len(t, candidates, 1)
	assert.Equal(t, valueobjects.VocabTypeName("A_TYPE"), candidates[0].A)
}

func TestRankSynonymCandidatesSortsDescending(t *testing.T) {
	types := []*entities.VocabType{
		newTestVocabType(t, "A", []float32{1, 0, 0}),
		newTestVocabType(t, "B", []float32{1, 0.01, 0}),
		newTestVocabType(t, "C", []float32{1, 0.3, 0}),
	}
	candidates := RankSynonymCandidates(types)
	require.Len(t, candidates, 3)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Similarity, candidates[i].Similarity)
	}
}
