package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groundgraph/engine/application/commands"
	"github.com/groundgraph/engine/application/queries"
	"github.com/groundgraph/engine/domain/config"
)

// AdminHandler groups the engine's maintenance operations — vocabulary
// consolidation, annealing, embedding config/verify/regenerate, and job
// lifecycle transitions (spec.md §4.3c, §4.7, §4.8, §6.2) — the way the
// teacher groups trivial related operations into one handler rather than
// one file per endpoint (application/commands/job_lifecycle.go already
// does this for approve/cancel).
type AdminHandler struct {
	mediator          IMediator
	consolidateHandler *commands.ConsolidateVocabularyHandler
	annealingHandler  *commands.RunAnnealingHandler
	errors            *ErrorHandler
}

func NewAdminHandler(
	mediator IMediator,
	consolidateHandler *commands.ConsolidateVocabularyHandler,
	annealingHandler *commands.RunAnnealingHandler,
	errors *ErrorHandler,
) *AdminHandler {
	return &AdminHandler{
		mediator:           mediator,
		consolidateHandler: consolidateHandler,
		annealingHandler:   annealingHandler,
		errors:             errors,
	}
}

type consolidateVocabularyRequest struct {
	Live       bool `json:"live"`
	TargetSize int  `json:"target_size"`
}

func (h *AdminHandler) ConsolidateVocabulary(w http.ResponseWriter, r *http.Request) {
	var req consolidateVocabularyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd := commands.ConsolidateVocabularyCommand{Live: req.Live, TargetSize: req.TargetSize}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.consolidateHandler.LastResult())
}

func (h *AdminHandler) RunAnnealing(w http.ResponseWriter, r *http.Request) {
	if err := h.mediator.Send(r.Context(), commands.RunAnnealingCommand{}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.annealingHandler.LastResult())
}

func (h *AdminHandler) VerifyEmbeddings(w http.ResponseWriter, r *http.Request) {
	result, err := h.mediator.Query(r.Context(), queries.VerifyEmbeddingsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type regenerateEmbeddingsRequest struct {
	Scope  string                 `json:"scope" validate:"required,oneof=concept source vocab all"`
	Filter map[string]interface{} `json:"filter"`
}

func (h *AdminHandler) RegenerateEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req regenerateEmbeddingsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	q := queries.RegenerateEmbeddingsQuery{Scope: queries.RegenerateEmbeddingsScope(req.Scope), Filter: req.Filter}
	result, err := h.mediator.Query(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

type activateEmbeddingConfigRequest struct {
	Provider  string `json:"provider" validate:"required"`
	ModelName string `json:"model_name" validate:"required"`
	Dimension int    `json:"dimension" validate:"required,min=1"`
	Precision string `json:"precision"`
}

func (h *AdminHandler) ActivateEmbeddingConfig(w http.ResponseWriter, r *http.Request) {
	var req activateEmbeddingConfigRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	cmd := commands.ActivateEmbeddingConfigCommand{
		Provider: req.Provider, ModelName: req.ModelName, Dimension: req.Dimension,
	}
	if req.Precision != "" {
		cmd.Precision = parsePrecision(req.Precision)
	}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePrecision(s string) config.Precision {
	if s == string(config.PrecisionFloat16) {
		return config.PrecisionFloat16
	}
	return config.PrecisionFloat32
}

func (h *AdminHandler) ApproveJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	approver := r.URL.Query().Get("approver")
	if approver == "" {
		approver = "admin"
	}
	cmd := commands.ApproveJobCommand{JobID: id, Approver: approver}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cmd := commands.CancelJobCommand{JobID: id}
	if err := h.mediator.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
