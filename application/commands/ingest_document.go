package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"go.uber.org/zap"
)

// IngestDocumentCommand submits a document for ingestion (spec.md §4.6).
// It only enqueues — the worker pool runs IngestionPipeline.Run.
type IngestDocumentCommand struct {
	Ontology   string `json:"ontology" validate:"required"`
	Document   string `json:"document" validate:"required"`
	FullText   string `json:"full_text" validate:"required"`
	Force      bool   `json:"force"`
	IsMarkdown bool   `json:"is_markdown"`
}

func (c IngestDocumentCommand) CommandName() string { return "ingest_document" }

func (c IngestDocumentCommand) Validate() error {
	if c.Ontology == "" || c.Document == "" || c.FullText == "" {
		return errRequired("ontology/document/full_text")
	}
	return nil
}

type IngestDocumentHandler struct {
	jobs      ports.JobQueue
	pipeline  *services.IngestionPipeline
	logger    *zap.Logger
	lastJobID valueobjects.JobID
}

func NewIngestDocumentHandler(jobs ports.JobQueue, pipeline *services.IngestionPipeline, logger *zap.Logger) *IngestDocumentHandler {
	return &IngestDocumentHandler{jobs: jobs, pipeline: pipeline, logger: logger}
}

// Handle enqueues the ingestion job. If the document's estimated chunk
// count exceeds the configured cost threshold and auto_approve is off,
// the job is moved behind the approval gate before any worker can claim
// it (spec.md §4.6 "approval gate").
func (h *IngestDocumentHandler) Handle(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(IngestDocumentCommand)
	if !ok {
		return errWrongCommand("IngestDocumentCommand", command)
	}

	data := map[string]interface{}{
		"ontology":    cmd.Ontology,
		"document":    cmd.Document,
		"full_text":   cmd.FullText,
		"force":       cmd.Force,
		"is_markdown": cmd.IsMarkdown,
	}

	jobID, err := h.jobs.Enqueue(ctx, "ingest_document", data, string(entities.JobSourceUser))
	if err != nil {
		return err
	}
	if h.pipeline.NeedsApproval(cmd.FullText) {
		analysis := map[string]interface{}{
			"estimated_chunks": h.pipeline.EstimateChunks(cmd.FullText),
		}
		if err := h.jobs.MarkAwaitingApproval(ctx, jobID, analysis); err != nil {
			return err
		}
	}
	h.lastJobID = jobID
	h.logger.Info("ingestion job enqueued", zap.String("job_id", string(jobID)), zap.String("ontology", cmd.Ontology))
	return nil
}

func (h *IngestDocumentHandler) LastJobID() valueobjects.JobID { return h.lastJobID }
