package ports

import (
	"context"

	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// OntologyMetrics is one ontology's computed self-organization signal,
// recomputed each annealing cycle (spec.md §4.8 step 1).
type OntologyMetrics struct {
	OntologyID string
	Mass       int
	Coherence  float64
	Centroid   valueobjects.Embedding
	Protection float64
}

// OntologyStore aggregates per-ontology metrics and membership moves, a
// narrower facade than GraphStore over the same underlying property graph
// (concept-to-ontology membership plus anchor status).
type OntologyStore interface {
	ListOntologies(ctx context.Context) ([]*entities.Ontology, error)
	SaveOntology(ctx context.Context, o *entities.Ontology) error

	ComputeMetrics(ctx context.Context, ontologyID string) (OntologyMetrics, error)

	// PromotionCandidates returns concepts with total (in+out) degree >=
	// minDegree that are not already an ontology anchor (spec.md §4.8 step 4).
	PromotionCandidates(ctx context.Context, minDegree int) ([]valueobjects.ConceptID, error)

	// DemotionCandidates returns ontology anchors whose protection score
	// is below threshold (spec.md §4.8 step 3).
	DemotionCandidates(ctx context.Context, protectionThreshold float64) ([]string, error)

	// MoveConcept atomically reassigns a concept's ontology membership and
	// flags the affected ontologies' hot views for refresh.
	MoveConcept(ctx context.Context, conceptID valueobjects.ConceptID, toOntologyID string) error

	// DemoteOntology folds ontologyID's member concepts back into their
	// highest-affinity neighbor ontology (by centroid similarity) and
	// removes ontologyID as an anchor (spec.md §4.8 step 3, "demote weak
	// ontologies back into their neighbors").
	DemoteOntology(ctx context.Context, ontologyID string) error
}
