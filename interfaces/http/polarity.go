package http

import (
	"net/http"

	"github.com/groundgraph/engine/application/queries"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// PolarityHandler exposes the user-defined two-pole axis analysis
// (spec.md §4.5, §6.2 analyze_polarity_axis).
type PolarityHandler struct {
	mediator IMediator
	errors   *ErrorHandler
}

func NewPolarityHandler(mediator IMediator, errors *ErrorHandler) *PolarityHandler {
	return &PolarityHandler{mediator: mediator, errors: errors}
}

type analyzePolarityAxisRequest struct {
	PositiveID    string   `json:"positive_id" validate:"required"`
	NegativeID    string   `json:"negative_id" validate:"required"`
	Candidates    []string `json:"candidates"`
	AutoDiscover  bool     `json:"auto_discover"`
	MaxCandidates int      `json:"max_candidates"`
	MaxHops       int      `json:"max_hops"`
}

func (h *PolarityHandler) AnalyzeAxis(w http.ResponseWriter, r *http.Request) {
	var req analyzePolarityAxisRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	candidates := make([]valueobjects.ConceptID, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		candidates = append(candidates, valueobjects.ConceptID(c))
	}

	q := queries.AnalyzePolarityAxisQuery{
		PositiveID:    valueobjects.ConceptID(req.PositiveID),
		NegativeID:    valueobjects.ConceptID(req.NegativeID),
		Candidates:    candidates,
		AutoDiscover:  req.AutoDiscover,
		MaxCandidates: req.MaxCandidates,
		MaxHops:       req.MaxHops,
	}
	result, err := h.mediator.Query(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
