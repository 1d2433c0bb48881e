// Package commands holds CQRS command structs and their handlers — mutate
// state, return only an error, dispatched through application/mediator.
// Grounded on backend's application/commands/create_node.go +
// application/commands/handlers/create_edge_handler.go pairing.
package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
	"go.uber.org/zap"
)

// UpsertConceptCommand creates a concept or merges into an existing one
// above the configured similarity threshold (spec.md §4.1).
type UpsertConceptCommand struct {
	Label       string   `json:"label" validate:"required,min=1,max=500"`
	SearchTerms []string `json:"search_terms" validate:"max=20,dive,min=1,max=100"`
}

func (c UpsertConceptCommand) CommandName() string { return "upsert_concept" }

func (c UpsertConceptCommand) Validate() error {
	if c.Label == "" {
		return errRequired("label")
	}
	return nil
}

// UpsertConceptResult is the command's side-channel output, looked up by
// the caller after Send via the returned concept ID (CQRS commands return
// only an error on the mediator boundary, so handlers stash results here).
type UpsertConceptResult struct {
	ConceptID string
	Merged    bool
}

type UpsertConceptHandler struct {
	graph     ports.GraphStore
	embedding *services.EmbeddingService
	threshold float64
	logger    *zap.Logger
	lastResult UpsertConceptResult
}

func NewUpsertConceptHandler(graph ports.GraphStore, embedding *services.EmbeddingService, threshold float64, logger *zap.Logger) *UpsertConceptHandler {
	return &UpsertConceptHandler{graph: graph, embedding: embedding, threshold: threshold, logger: logger}
}

func (h *UpsertConceptHandler) Handle(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(UpsertConceptCommand)
	if !ok {
		return errWrongCommand("UpsertConceptCommand", command)
	}

	emb, err := h.embedding.Embed(ctx, cmd.Label)
	if err != nil {
		return err
	}

	id, merged, err := h.graph.UpsertConcept(ctx, cmd.Label, cmd.SearchTerms, emb, h.threshold)
	if err != nil {
		return err
	}

	h.lastResult = UpsertConceptResult{ConceptID: string(id), Merged: merged}
	h.logger.Info("concept upserted", zap.String("concept_id", string(id)), zap.Bool("merged", merged))
	return nil
}

// LastResult returns the outcome of the most recently handled command.
// Safe only for single-flight request handling (one HTTP request per
// handler instance, matching this codebase's per-request DI scope).
func (h *UpsertConceptHandler) LastResult() UpsertConceptResult { return h.lastResult }
