// Package ports defines the hexagonal boundaries the application layer
// depends on. Grounded on backend's application/ports/repositories.go:
// the domain layer (and, here, the application services) never import an
// infrastructure package directly.
package ports

import (
	"context"

	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// RelTypeFilter narrows match_concept_relationships by role, applied as a
// first pass over the VocabType registry before the graph query runs
// (spec.md §4.1).
type RelTypeFilter struct {
	RelTypes      []valueobjects.VocabTypeName
	IncludeRoles  []entities.SemanticRole
	ExcludeRoles  []entities.SemanticRole
	Where         map[string]interface{}
	Limit         int
}

// PathSegment is one hop-bounded slice of a longer shortest_path result.
type PathSegment struct {
	Nodes []valueobjects.ConceptID
	Edges []entities.Relationship
}

// NeighborhoodGroup groups concepts reached by distance from the origin,
// with the path of relationship types used to reach each one.
type NeighborhoodGroup struct {
	Distance int
	Concepts []valueobjects.ConceptID
	Paths    map[valueobjects.ConceptID][]valueobjects.VocabTypeName
}

// KNNResult is one (id, similarity) pair from knn_concepts.
type KNNResult struct {
	ConceptID  valueobjects.ConceptID
	Similarity float64
}

// GraphStore is the property-graph storage and query facade (spec.md §4.1).
// Every operation is fallible with a typed *apperr.Error.
type GraphStore interface {
	// UpsertConcept returns the id of the nearest existing concept if its
	// cosine similarity to embedding is >= the merge threshold, otherwise
	// creates a new concept. The returned bool is true when a merge
	// occurred (vs. a fresh create).
	UpsertConcept(ctx context.Context, label string, searchTerms []string, embedding valueobjects.Embedding, mergeThreshold float64) (id valueobjects.ConceptID, merged bool, err error)

	GetConcept(ctx context.Context, id valueobjects.ConceptID) (*entities.Concept, error)

	AddEdge(ctx context.Context, src valueobjects.ConceptID, vocabType valueobjects.VocabTypeName, dst valueobjects.ConceptID, confidence float64) error

	MatchConceptRelationships(ctx context.Context, filter RelTypeFilter) ([]entities.Relationship, error)

	KNNConcepts(ctx context.Context, vec valueobjects.Embedding, k int, minSim float64) ([]KNNResult, error)

	ShortestPath(ctx context.Context, a, b valueobjects.ConceptID, maxHops int, allowedTypes []valueobjects.VocabTypeName) ([]PathSegment, error)

	Neighborhood(ctx context.Context, id valueobjects.ConceptID, depth int, types []valueobjects.VocabTypeName) ([]NeighborhoodGroup, error)

	IncomingEdges(ctx context.Context, id valueobjects.ConceptID) ([]entities.Relationship, error)

	BulkUpdateConceptEmbeddings(ctx context.Context, batch map[valueobjects.ConceptID]valueobjects.Embedding) error

	RefreshHotViews(ctx context.Context) error

	// ListConcepts and ListSources are the enumeration passes behind
	// regenerate(scope) (spec.md §4.2); ListSources with an empty
	// ontology returns every source.
	ListConcepts(ctx context.Context) ([]*entities.Concept, error)
	ListSources(ctx context.Context, ontology string) ([]*entities.Source, error)

	SaveSource(ctx context.Context, source *entities.Source) error
	GetSource(ctx context.Context, id valueobjects.SourceID) (*entities.Source, error)
	FindSourceByHash(ctx context.Context, ontology, contentHash string) (*entities.Source, error)
	SearchSources(ctx context.Context, query, ontology string, limit int) ([]*entities.Source, error)

	SaveInstance(ctx context.Context, instance entities.Instance) error
	CountInstancesForSources(ctx context.Context, sourceIDs []valueobjects.SourceID) (int, error)

	SearchConcepts(ctx context.Context, queryEmbedding valueobjects.Embedding, limit int, minSimilarity float64, ontology string, offset int) ([]KNNResult, error)

	// ReassignEdgeType rewrites every edge of type from to type to, used
	// when two vocabulary types are merged as synonyms (spec.md §4.3c).
	ReassignEdgeType(ctx context.Context, from, to valueobjects.VocabTypeName) (edgesMoved int, err error)

	// CountEdgesOfType reports how many edges currently use vocabType —
	// the "zero edges" check gating auto-prune merges.
	CountEdgesOfType(ctx context.Context, vocabType valueobjects.VocabTypeName) (int, error)

	// EmbeddingCoverage reports, among all concepts, how many carry an
	// embedding at exactly activeDimension vs. some other (stale)
	// dimension vs. none at all — the basis of embedding.verify (spec.md
	// §4.2 "verify() -> coverage report").
	EmbeddingCoverage(ctx context.Context, activeDimension int) (total, atActiveDimension, stale, missing int, err error)
}
