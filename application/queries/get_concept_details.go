package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	domainsvc "github.com/groundgraph/engine/domain/services"
)

// GetConceptDetailsQuery fetches one concept plus its computed grounding.
type GetConceptDetailsQuery struct {
	ConceptID valueobjects.ConceptID
}

func (q GetConceptDetailsQuery) QueryName() string { return "get_concept_details" }

// ConceptDetails is the query's result payload.
type ConceptDetails struct {
	Concept        *entities.Concept
	Grounding      float64
	IncomingEdges  []entities.Relationship
}

type GetConceptDetailsHandler struct {
	graph     ports.GraphStore
	vocab     ports.VocabRegistry
	grounding *services.GroundingEngine
}

func NewGetConceptDetailsHandler(graph ports.GraphStore, vocab ports.VocabRegistry, grounding *services.GroundingEngine) *GetConceptDetailsHandler {
	return &GetConceptDetailsHandler{graph: graph, vocab: vocab, grounding: grounding}
}

func (h *GetConceptDetailsHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(GetConceptDetailsQuery)
	if !ok {
		return nil, errWrongQuery("GetConceptDetailsQuery", query)
	}

	concept, err := h.graph.GetConcept(ctx, q.ConceptID)
	if err != nil {
		return nil, err
	}

	edges, err := h.graph.IncomingEdges(ctx, q.ConceptID)
	if err != nil {
		return nil, err
	}

	groundingEdges := make([]domainsvc.GroundingEdge, 0, len(edges))
	for _, rel := range edges {
		vt, err := h.vocab.Get(ctx, rel.Type)
		if err != nil || vt == nil || vt.Embedding.IsZero() {
			continue
		}
		groundingEdges = append(groundingEdges, domainsvc.GroundingEdge{VocabTypeEmbedding: vt.Embedding, Confidence: rel.Confidence})
	}

	grounding, err := h.grounding.ConceptGrounding(ctx, groundingEdges, string(q.ConceptID))
	if err != nil {
		return nil, err
	}

	return ConceptDetails{Concept: concept, Grounding: grounding, IncomingEdges: edges}, nil
}
