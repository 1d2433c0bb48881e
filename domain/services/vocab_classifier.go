package services

import (
	"sort"

	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/vecmath"
)

// SeedType is one of the 30 builtin seed-type embeddings grouped by
// category, used as the reference set for probabilistic category
// classification (spec.md §4.3a).
type SeedType struct {
	Name      valueobjects.VocabTypeName
	Category  entities.VocabCategory
	Embedding valueobjects.Embedding
}

// AmbiguityThreshold is the default runner-up similarity above which a
// type is flagged ambiguous (config key vocab.category.ambiguity_threshold).
const AmbiguityThreshold = 0.70

// CategoryClassifier assigns a VocabCategory to a type by its max cosine
// similarity to each category's seed types — max, not mean, because a
// category like "logical" contains opposing poles (e.g. IMPLIES/CONTRADICTS)
// whose embeddings partially cancel under averaging (spec.md §4.3a).
type CategoryClassifier struct {
	seeds []SeedType
}

func NewCategoryClassifier(seeds []SeedType) *CategoryClassifier {
	return &CategoryClassifier{seeds: seeds}
}

// CategoryResult is the classification outcome for one vocabulary type.
type CategoryResult struct {
	Primary          entities.VocabCategory
	Confidence       float64
	RunnerUp         entities.VocabCategory
	RunnerUpScore    float64
	Ambiguous        bool
}

// Classify scores typeEmbedding against every category present in seeds,
// taking score(cat) = max_{seed in cat} cosine(typeEmbedding, seed).
func (c *CategoryClassifier) Classify(typeEmbedding valueobjects.Embedding) CategoryResult {
	scores := map[entities.VocabCategory]float64{}
	for _, seed := range c.seeds {
		sim := vecmath.CosineSimilarity(typeEmbedding.Vector, seed.Embedding.Vector)
		if sim > scores[seed.Category] {
			scores[seed.Category] = sim
		}
	}
	type entry struct {
		cat   entities.VocabCategory
		score float64
	}
	var ranked []entry
	for cat, score := range scores {
		ranked = append(ranked, entry{cat, score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var result CategoryResult
	if len(ranked) > 0 {
		result.Primary = ranked[0].cat
		result.Confidence = ranked[0].score
	}
	if len(ranked) > 1 {
		result.RunnerUp = ranked[1].cat
		result.RunnerUpScore = ranked[1].score
		result.Ambiguous = ranked[1].score >= AmbiguityThreshold
	}
	return result
}

// SynonymCandidate is a pair of vocabulary types ranked by embedding
// cosine similarity, a candidate for merge (spec.md §4.3c).
type SynonymCandidate struct {
	A, B       valueobjects.VocabTypeName
	Similarity float64
}

// SynonymThreshold is the minimum similarity to surface a pair at all.
const SynonymThreshold = 0.70

// AutoPruneThreshold is the similarity above which, combined with the
// deprecated side having zero edges, a merge auto-executes without
// reasoning-provider involvement.
const AutoPruneThreshold = 0.90

// RankSynonymCandidates returns every pair with similarity >= SynonymThreshold,
// sorted descending by similarity — dry-run evaluates this full list against
// a single snapshot; live mode re-derives it after each merge (spec.md §4.3c).
// Each pair is oriented so A (the kept side) has the higher usage count,
// ties broken by lexicographic name order.
func RankSynonymCandidates(types []*entities.VocabType) []SynonymCandidate {
	var out []SynonymCandidate
	for i := 0; i < len(types); i++ {
		for j := i + 1; j < len(types); j++ {
			if types[i].Embedding.IsZero() || types[j].Embedding.IsZero() {
				continue
			}
			sim := types[i].Embedding.CosineSimilarity(types[j].Embedding)
			if sim < SynonymThreshold {
				continue
			}
			kept, deprecated := types[i], types[j]
			if deprecated.UsageCount > kept.UsageCount ||
				(deprecated.UsageCount == kept.UsageCount && deprecated.Name < kept.Name) {
				kept, deprecated = deprecated, kept
			}
			out = append(out, SynonymCandidate{A: kept.Name, B: deprecated.Name, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}
