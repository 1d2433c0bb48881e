// Package queries holds CQRS query structs and their handlers — read
// state, return data, dispatched through application/mediator. Grounded
// on backend's application/queries query/handler pairing (mirrored from
// application/commands) and application/queries/cache_helper.go's
// result-caching pattern (applied selectively here via ports.Cache).
package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
)

// SearchConceptsQuery finds concepts by semantic similarity to query text
// (spec.md §6.2).
type SearchConceptsQuery struct {
	QueryText     string
	Limit         int
	MinSimilarity float64
	Ontology      string
	Offset        int
}

func (q SearchConceptsQuery) QueryName() string { return "search_concepts" }

type SearchConceptsHandler struct {
	graph     ports.GraphStore
	embedding *services.EmbeddingService
}

func NewSearchConceptsHandler(graph ports.GraphStore, embedding *services.EmbeddingService) *SearchConceptsHandler {
	return &SearchConceptsHandler{graph: graph, embedding: embedding}
}

func (h *SearchConceptsHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(SearchConceptsQuery)
	if !ok {
		return nil, errWrongQuery("SearchConceptsQuery", query)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	emb, err := h.embedding.Embed(ctx, q.QueryText)
	if err != nil {
		return nil, err
	}
	return h.graph.SearchConcepts(ctx, emb, limit, q.MinSimilarity, q.Ontology, q.Offset)
}
