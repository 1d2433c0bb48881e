package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

const maxTraversalDepth = 5

// FindRelatedQuery returns neighbors grouped by distance, up to depth 5
// (spec.md §4.1 neighborhood, §6.2 find_related).
type FindRelatedQuery struct {
	ConceptID  valueobjects.ConceptID
	Depth      int
	TypeFilter []valueobjects.VocabTypeName
}

func (q FindRelatedQuery) QueryName() string { return "find_related" }

type FindRelatedHandler struct {
	graph ports.GraphStore
}

func NewFindRelatedHandler(graph ports.GraphStore) *FindRelatedHandler {
	return &FindRelatedHandler{graph: graph}
}

func (h *FindRelatedHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(FindRelatedQuery)
	if !ok {
		return nil, errWrongQuery("FindRelatedQuery", query)
	}
	depth := q.Depth
	if depth <= 0 {
		depth = 2
	}
	if depth > maxTraversalDepth {
		return nil, apperr.New(apperr.Validation, "depth exceeds maximum of 5")
	}
	return h.graph.Neighborhood(ctx, q.ConceptID, depth, q.TypeFilter)
}
