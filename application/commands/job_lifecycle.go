package commands

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"go.uber.org/zap"
)

// ApproveJobCommand transitions a job from awaiting_approval to approved
// (spec.md §4.7 state machine), either by a user or an auto-approver.
type ApproveJobCommand struct {
	JobID    string `json:"job_id" validate:"required"`
	Approver string `json:"approver" validate:"required"`
}

func (c ApproveJobCommand) CommandName() string { return "approve_job" }

func (c ApproveJobCommand) Validate() error {
	if c.JobID == "" {
		return errRequired("job_id")
	}
	return nil
}

// CancelJobCommand cancels a job from any cancellable pre-processing
// state (spec.md §4.7 "cancel from any pre-processing state terminates
// the job").
type CancelJobCommand struct {
	JobID string `json:"job_id" validate:"required"`
}

func (c CancelJobCommand) CommandName() string { return "cancel_job" }

func (c CancelJobCommand) Validate() error {
	if c.JobID == "" {
		return errRequired("job_id")
	}
	return nil
}

// JobLifecycleHandler handles both approve and cancel — two thin
// operations over the same JobQueue port, grouped in one handler to avoid
// a one-method-per-file split the teacher doesn't use for trivial ops.
type JobLifecycleHandler struct {
	jobs   ports.JobQueue
	logger *zap.Logger
}

func NewJobLifecycleHandler(jobs ports.JobQueue, logger *zap.Logger) *JobLifecycleHandler {
	return &JobLifecycleHandler{jobs: jobs, logger: logger}
}

func (h *JobLifecycleHandler) HandleApprove(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(ApproveJobCommand)
	if !ok {
		return errWrongCommand("ApproveJobCommand", command)
	}
	if err := h.jobs.Approve(ctx, valueobjects.JobID(cmd.JobID), cmd.Approver); err != nil {
		return err
	}
	h.logger.Info("job approved", zap.String("job_id", cmd.JobID), zap.String("approver", cmd.Approver))
	return nil
}

func (h *JobLifecycleHandler) HandleCancel(ctx context.Context, command mediator.Command) error {
	cmd, ok := command.(CancelJobCommand)
	if !ok {
		return errWrongCommand("CancelJobCommand", command)
	}
	if err := h.jobs.Cancel(ctx, valueobjects.JobID(cmd.JobID)); err != nil {
		return err
	}
	h.logger.Info("job cancelled", zap.String("job_id", cmd.JobID))
	return nil
}
