package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/services"
	"go.uber.org/zap"
)

// ConsolidateVocabularyCommand runs the synonym-merge loop (spec.md
// §4.3c). Dry-run evaluates the current ranking without executing merges.
// TargetSize > 0 makes a live run a no-op once the active type count is
// already at or below it.
type ConsolidateVocabularyCommand struct {
	Live       bool `json:"live"`
	TargetSize int  `json:"target_size"`
}

func (c ConsolidateVocabularyCommand) CommandName() string { return "consolidate_vocabulary" }
func (c ConsolidateVocabularyCommand) Validate() error      { return nil }

type ConsolidateVocabularyHandler struct {
	vocab      *services.VocabularyEngine
	logger     *zap.Logger
	lastResult []services.SynonymMergeResult
}

func NewConsolidateVocabularyHandler(vocab *services.VocabularyEngine, logger *zap.Logger) *ConsolidateVocabularyHandler {
	return &ConsolidateVocabularyHandler{vocab: vocab, logger: logger}
}

func (h *ConsolidateVocabularyHandler) Handle(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(ConsolidateVocabularyCommand)
	if !ok {
		return errWrongCommand("ConsolidateVocabularyCommand", command)
	}
	results, err := h.vocab.ConsolidateSynonyms(ctx, cmd.Live, cmd.TargetSize)
	if err != nil {
		return err
	}
	h.lastResult = results
	h.logger.Info("vocabulary consolidation ran", zap.Int("merges", len(results)), zap.Bool("live", cmd.Live))
	return nil
}

func (h *ConsolidateVocabularyHandler) LastResult() []services.SynonymMergeResult { return h.lastResult }
