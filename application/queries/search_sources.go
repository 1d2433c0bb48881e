package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// SearchSourcesQuery full-text searches Source rows, optionally including
// their bound Instance/Concept counts (spec.md §6.2).
type SearchSourcesQuery struct {
	QueryText       string
	Ontology        string
	Limit           int
	IncludeConcepts bool
}

func (q SearchSourcesQuery) QueryName() string { return "search_sources" }

// SourceSearchResult pairs a Source with its concept-instance count when
// IncludeConcepts was requested.
type SourceSearchResult struct {
	Source        *entities.Source
	InstanceCount int
}

type SearchSourcesHandler struct {
	graph ports.GraphStore
}

func NewSearchSourcesHandler(graph ports.GraphStore) *SearchSourcesHandler {
	return &SearchSourcesHandler{graph: graph}
}

func (h *SearchSourcesHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(SearchSourcesQuery)
	if !ok {
		return nil, errWrongQuery("SearchSourcesQuery", query)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	sources, err := h.graph.SearchSources(ctx, q.QueryText, q.Ontology, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SourceSearchResult, 0, len(sources))
	for _, s := range sources {
		result := SourceSearchResult{Source: s}
		if q.IncludeConcepts {
			count, err := h.graph.CountInstancesForSources(ctx, []valueobjects.SourceID{s.ID})
			if err == nil {
				result.InstanceCount = count
			}
		}
		results = append(results, result)
	}
	return results, nil
}
