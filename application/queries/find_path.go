package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

const maxPathHops = 5

// FindPathQuery finds the shortest path between two known concepts. The
// traversal searches past MaxHops; paths longer than the hop cap come
// back auto-segmented into chunks of at most 5 hops (spec.md §4.1, §6.2).
type FindPathQuery struct {
	From, To     valueobjects.ConceptID
	MaxHops      int
	AllowedTypes []valueobjects.VocabTypeName
}

func (q FindPathQuery) QueryName() string { return "find_path" }

// FindPathBySearchQuery resolves From/To by nearest-concept search over
// free text before running the same shortest-path traversal.
type FindPathBySearchQuery struct {
	QueryFrom, QueryTo string
	MaxHops            int
	AllowedTypes       []valueobjects.VocabTypeName
}

func (q FindPathBySearchQuery) QueryName() string { return "find_path_by_search" }

type FindPathHandler struct {
	graph     ports.GraphStore
	embedding *services.EmbeddingService
}

func NewFindPathHandler(graph ports.GraphStore, embedding *services.EmbeddingService) *FindPathHandler {
	return &FindPathHandler{graph: graph, embedding: embedding}
}

func (h *FindPathHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(FindPathQuery)
	if !ok {
		return nil, errWrongQuery("FindPathQuery", query)
	}
	maxHops := clampHops(q.MaxHops)
	return h.graph.ShortestPath(ctx, q.From, q.To, maxHops, q.AllowedTypes)
}

func (h *FindPathHandler) HandleBySearch(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(FindPathBySearchQuery)
	if !ok {
		return nil, errWrongQuery("FindPathBySearchQuery", query)
	}

	fromID, err := h.resolveNearest(ctx, q.QueryFrom)
	if err != nil {
		return nil, err
	}
	toID, err := h.resolveNearest(ctx, q.QueryTo)
	if err != nil {
		return nil, err
	}

	maxHops := clampHops(q.MaxHops)
	return h.graph.ShortestPath(ctx, fromID, toID, maxHops, q.AllowedTypes)
}

func (h *FindPathHandler) resolveNearest(ctx context.Context, text string) (valueobjects.ConceptID, error) {
	emb, err := h.embedding.Embed(ctx, text)
	if err != nil {
		return "", err
	}
	matches, err := h.graph.KNNConcepts(ctx, emb, 1, 0)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", apperr.New(apperr.NotFound, "no concept matches query: "+text)
	}
	return matches[0].ConceptID, nil
}

// clampHops bounds the reported-segment size, not the search: the store
// searches beyond it and segments the result.
func clampHops(maxHops int) int {
	if maxHops <= 0 || maxHops > maxPathHops {
		return maxPathHops
	}
	return maxHops
}
