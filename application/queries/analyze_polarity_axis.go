package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/services"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// AnalyzePolarityAxisQuery runs a user-defined two-pole polarity analysis
// (spec.md §4.5, §6.2).
type AnalyzePolarityAxisQuery struct {
	PositiveID, NegativeID valueobjects.ConceptID
	Candidates             []valueobjects.ConceptID
	AutoDiscover           bool
	MaxCandidates          int
	MaxHops                int
}

func (q AnalyzePolarityAxisQuery) QueryName() string { return "analyze_polarity_axis" }

type AnalyzePolarityAxisHandler struct {
	polarity *services.PolarityQueryService
}

func NewAnalyzePolarityAxisHandler(polarity *services.PolarityQueryService) *AnalyzePolarityAxisHandler {
	return &AnalyzePolarityAxisHandler{polarity: polarity}
}

func (h *AnalyzePolarityAxisHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(AnalyzePolarityAxisQuery)
	if !ok {
		return nil, errWrongQuery("AnalyzePolarityAxisQuery", query)
	}

	return h.polarity.AnalyzePolarityAxis(ctx, q.PositiveID, q.NegativeID, q.Candidates, q.AutoDiscover, q.MaxHops, q.MaxCandidates)
}
