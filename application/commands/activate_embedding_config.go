package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
	"github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// ActivateEmbeddingConfigCommand switches the active embedding provider.
// When the new dimension differs from the previous one, a
// regenerate(all) job is enqueued in the same handler call, so read
// paths treat old-dimension embeddings as stale until it completes
// (spec.md §4.2 "model change semantics").
type ActivateEmbeddingConfigCommand struct {
	Provider  string           `json:"provider" validate:"required"`
	ModelName string           `json:"model_name" validate:"required"`
	Dimension int              `json:"dimension" validate:"required,min=1"`
	Precision config.Precision `json:"precision"`
}

func (c ActivateEmbeddingConfigCommand) CommandName() string { return "activate_embedding_config" }

func (c ActivateEmbeddingConfigCommand) Validate() error {
	if c.Provider == "" || c.ModelName == "" || c.Dimension <= 0 {
		return errRequired("provider/model_name/dimension")
	}
	return nil
}

type ActivateEmbeddingConfigHandler struct {
	embedding *services.EmbeddingService
	configs   ports.ConfigStore
	jobs      ports.JobQueue
	logger    *zap.Logger
}

func NewActivateEmbeddingConfigHandler(
	embedding *services.EmbeddingService,
	configs ports.ConfigStore,
	jobs ports.JobQueue,
	logger *zap.Logger,
) *ActivateEmbeddingConfigHandler {
	return &ActivateEmbeddingConfigHandler{embedding: embedding, configs: configs, jobs: jobs, logger: logger}
}

func (h *ActivateEmbeddingConfigHandler) Handle(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(ActivateEmbeddingConfigCommand)
	if !ok {
		return errWrongCommand("ActivateEmbeddingConfigCommand", command)
	}
	precision := cmd.Precision
	if precision == "" {
		precision = config.PrecisionFloat32
	}

	previousDimension := 0
	if prev, err := h.configs.ActiveEmbeddingConfig(ctx); err == nil && prev != nil {
		previousDimension = prev.Dimension
	} else if err != nil && apperr.KindOf(err) != apperr.NotFound {
		return err
	}

	err := h.embedding.ActivateConfig(ctx, config.EmbeddingConfig{
		Provider: cmd.Provider, ModelName: cmd.ModelName, Dimension: cmd.Dimension,
		Precision: precision, Active: true,
	})
	if err != nil {
		return err
	}
	h.logger.Info("embedding config activated",
		zap.String("provider", cmd.Provider), zap.Int("dimension", cmd.Dimension))

	if previousDimension != 0 && previousDimension != cmd.Dimension {
		jobID, err := h.jobs.Enqueue(ctx, "regenerate_embeddings",
			map[string]interface{}{"scope": "all"}, "triggered")
		if err != nil {
			return apperr.Wrap(apperr.Internal, "dimension changed but regenerate(all) enqueue failed", err)
		}
		h.logger.Info("dimension change scheduled full regeneration",
			zap.Int("previous_dimension", previousDimension),
			zap.Int("new_dimension", cmd.Dimension),
			zap.String("job_id", string(jobID)))
	}
	return nil
}
