package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/services"
	"go.uber.org/zap"
)

// RunAnnealingCommand triggers one ontology annealing cycle out of band
// from the scheduler (spec.md §4.8), e.g. immediately after a large
// ingestion batch.
type RunAnnealingCommand struct{}

func (c RunAnnealingCommand) CommandName() string { return "run_annealing" }
func (c RunAnnealingCommand) Validate() error      { return nil }

type RunAnnealingHandler struct {
	annealing  *services.AnnealingManager
	logger     *zap.Logger
	lastResult services.CycleResult
}

func NewRunAnnealingHandler(annealing *services.AnnealingManager, logger *zap.Logger) *RunAnnealingHandler {
	return &RunAnnealingHandler{annealing: annealing, logger: logger}
}

func (h *RunAnnealingHandler) Handle(ctx context.Context, command mediator.Command) error {
	if _, ok := command.(RunAnnealingCommand); !ok {
		return errWrongCommand("RunAnnealingCommand", command)
	}
	result, err := h.annealing.RunCycle(ctx)
	if err != nil {
		return err
	}
	h.lastResult = result
	h.logger.Info("annealing cycle completed",
		zap.Int("promotions", len(result.Promotions)), zap.Int("demotions", len(result.Demotions)),
		zap.Int("rejected", result.Rejected))
	return nil
}

func (h *RunAnnealingHandler) LastResult() services.CycleResult { return h.lastResult }
