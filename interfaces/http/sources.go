package http

import (
	"net/http"

	"github.com/groundgraph/engine/application/commands"
	"github.com/groundgraph/engine/application/queries"
)

// SourcesHandler exposes document ingestion and source search (spec.md
// §6.2 search_sources, §4.6 ingest_document).
type SourcesHandler struct {
	mediator     IMediator
	ingestHandler *commands.IngestDocumentHandler
	errors       *ErrorHandler
}

func NewSourcesHandler(mediator IMediator, ingestHandler *commands.IngestDocumentHandler, errors *ErrorHandler) *SourcesHandler {
	return &SourcesHandler{mediator: mediator, ingestHandler: ingestHandler, errors: errors}
}

type ingestDocumentRequest struct {
	Ontology   string `json:"ontology" validate:"required"`
	Document   string `json:"document" validate:"required"`
	FullText   string `json:"full_text" validate:"required"`
	Force      bool   `json:"force"`
	IsMarkdown bool   `json:"is_markdown"`
}

type ingestDocumentResponse struct {
	JobID string `json:"job_id"`
}

// IngestDocument enqueues a document for the ingestion pipeline and
// returns the job handle immediately — ingestion itself runs out of band
// on the worker pool (spec.md §4.6).
func (h *SourcesHandler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestDocumentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd := commands.IngestDocumentCommand{Ontology: req.Ontology, Document: req.Document, FullText: req.FullText, Force: req.Force, IsMarkdown: req.IsMarkdown}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestDocumentResponse{JobID: string(h.ingestHandler.LastJobID())})
}

func (h *SourcesHandler) SearchSources(w http.ResponseWriter, r *http.Request) {
	q := queries.SearchSourcesQuery{
		QueryText:       r.URL.Query().Get("q"),
		Ontology:        r.URL.Query().Get("ontology"),
		Limit:           queryInt(r, "limit", 20),
		IncludeConcepts: queryBool(r, "include_concepts"),
	}
	result, err := h.mediator.Query(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
