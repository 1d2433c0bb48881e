package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groundgraph/engine/application/commands"
	"github.com/groundgraph/engine/application/queries"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// ConceptsHandler exposes concept CRUD, search, and traversal (spec.md
// §6.2 search_concepts/get_concept_details/find_related/find_path).
// The command handler that stashes a side-channel result (upsertHandler)
// is held directly here rather than only through the mediator, matching
// that handler's documented single-flight,
// per-request-instance contract (application/commands/upsert_concept.go).
type ConceptsHandler struct {
	mediator     IMediator
	upsertHandler *commands.UpsertConceptHandler
	errors       *ErrorHandler
}

func NewConceptsHandler(mediator IMediator, upsertHandler *commands.UpsertConceptHandler, errors *ErrorHandler) *ConceptsHandler {
	return &ConceptsHandler{mediator: mediator, upsertHandler: upsertHandler, errors: errors}
}

type upsertConceptRequest struct {
	Label       string   `json:"label" validate:"required,min=1,max=500"`
	SearchTerms []string `json:"search_terms" validate:"max=20"`
}

func (h *ConceptsHandler) UpsertConcept(w http.ResponseWriter, r *http.Request) {
	var req upsertConceptRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.UpsertConceptCommand{Label: req.Label, SearchTerms: req.SearchTerms}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.upsertHandler.LastResult())
}

func (h *ConceptsHandler) SearchConcepts(w http.ResponseWriter, r *http.Request) {
	q := queries.SearchConceptsQuery{
		QueryText:     r.URL.Query().Get("q"),
		Limit:         queryInt(r, "limit", 20),
		MinSimilarity: queryFloat(r, "min_similarity", 0),
		Ontology:      r.URL.Query().Get("ontology"),
		Offset:        queryInt(r, "offset", 0),
	}
	result, err := h.mediator.Query(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ConceptsHandler) GetConceptDetails(w http.ResponseWriter, r *http.Request) {
	id := valueobjects.ConceptID(chi.URLParam(r, "id"))
	result, err := h.mediator.Query(r.Context(), queries.GetConceptDetailsQuery{ConceptID: id})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ConceptsHandler) FindRelated(w http.ResponseWriter, r *http.Request) {
	id := valueobjects.ConceptID(chi.URLParam(r, "id"))
	q := queries.FindRelatedQuery{ConceptID: id, Depth: queryInt(r, "depth", 2)}
	if types := r.URL.Query()["type"]; len(types) > 0 {
		for _, t := range types {
			q.TypeFilter = append(q.TypeFilter, valueobjects.VocabTypeName(t))
		}
	}
	result, err := h.mediator.Query(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ConceptsHandler) FindPath(w http.ResponseWriter, r *http.Request) {
	maxHops := queryInt(r, "max_hops", 5)
	var result interface{}
	var err error

	if from := r.URL.Query().Get("from"); from != "" {
		to := r.URL.Query().Get("to")
		result, err = h.mediator.Query(r.Context(), queries.FindPathQuery{
			From: valueobjects.ConceptID(from), To: valueobjects.ConceptID(to), MaxHops: maxHops,
		})
	} else {
		result, err = h.mediator.Query(r.Context(), queries.FindPathBySearchQuery{
			QueryFrom: r.URL.Query().Get("query_from"), QueryTo: r.URL.Query().Get("query_to"), MaxHops: maxHops,
		})
	}
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type addEdgeRequest struct {
	SourceConceptID string  `json:"source_concept_id" validate:"required"`
	TargetConceptID string  `json:"target_concept_id" validate:"required"`
	VocabType       string  `json:"vocab_type" validate:"required"`
	Confidence      float64 `json:"confidence" validate:"min=0,max=1"`
}

func (h *ConceptsHandler) AddEdge(w http.ResponseWriter, r *http.Request) {
	var req addEdgeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd := commands.AddEdgeCommand{
		SourceConceptID: req.SourceConceptID, TargetConceptID: req.TargetConceptID,
		VocabType: req.VocabType, Confidence: req.Confidence,
	}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
