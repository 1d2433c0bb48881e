package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"go.uber.org/zap"
)

// AddEdgeCommand creates (or idempotently re-confirms) a typed edge
// between two existing concepts (spec.md §4.1, §5 "concurrent edge writes
// between the same pair with the same type are idempotent").
type AddEdgeCommand struct {
	SourceConceptID string  `json:"source_concept_id" validate:"required"`
	TargetConceptID string  `json:"target_concept_id" validate:"required"`
	VocabType       string  `json:"vocab_type" validate:"required"`
	Confidence      float64 `json:"confidence" validate:"min=0,max=1"`
}

func (c AddEdgeCommand) CommandName() string { return "add_edge" }

func (c AddEdgeCommand) Validate() error {
	if c.SourceConceptID == "" || c.TargetConceptID == "" || c.VocabType == "" {
		return errRequired("source_concept_id/target_concept_id/vocab_type")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return errRequired("confidence in [0,1]")
	}
	return nil
}

type AddEdgeHandler struct {
	graph  ports.GraphStore
	vocab  ports.VocabRegistry
	logger *zap.Logger
}

func NewAddEdgeHandler(graph ports.GraphStore, vocab ports.VocabRegistry, logger *zap.Logger) *AddEdgeHandler {
	return &AddEdgeHandler{graph: graph, vocab: vocab, logger: logger}
}

func (h *AddEdgeHandler) Handle(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(AddEdgeCommand)
	if !ok {
		return errWrongCommand("AddEdgeCommand", command)
	}

	typeName := valueobjects.VocabTypeName(cmd.VocabType)
	vt, err := h.vocab.Get(ctx, typeName)
	if err != nil {
		return err
	}
	if vt == nil || !vt.IsActive {
		return errUnknownVocabType(cmd.VocabType)
	}

	if err := h.graph.AddEdge(ctx,
		valueobjects.ConceptID(cmd.SourceConceptID), typeName,
		valueobjects.ConceptID(cmd.TargetConceptID), cmd.Confidence); err != nil {
		return err
	}

	vt.RecordUsage()
	return h.vocab.Save(ctx, vt)
}
