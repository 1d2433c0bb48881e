package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// JobRunner executes one claimed job to completion. Returning nil marks
// the job completed; returning an error routes through the queue's
// retry-or-fail policy (spec.md §7 propagation policy).
type JobRunner func(ctx context.Context, job *entities.Job) error

// JobWorkerPool drains the durable queue with N concurrent workers, each
// polling Claim and dispatching by job type (spec.md §5 "multi-threaded
// workers over the durable job queue"). A claimed job whose type has no
// registered runner is failed, not silently dropped.
type JobWorkerPool struct {
	queue        ports.JobQueue
	runners      map[string]JobRunner
	workers      int
	pollInterval time.Duration
	logger       *zap.Logger

	wg sync.WaitGroup
}

func NewJobWorkerPool(queue ports.JobQueue, workers int, pollInterval time.Duration, logger *zap.Logger) *JobWorkerPool {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &JobWorkerPool{
		queue: queue, runners: make(map[string]JobRunner),
		workers: workers, pollInterval: pollInterval, logger: logger,
	}
}

// Register binds a runner to a job type. Must be called before Start.
func (p *JobWorkerPool) Register(jobType string, run JobRunner) {
	p.runners[jobType] = run
}

// Start launches the worker goroutines. They stop when ctx is cancelled;
// Wait blocks until all of them have drained.
func (p *JobWorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx, workerID)
		}()
	}
}

// Wait blocks until every worker goroutine has exited.
func (p *JobWorkerPool) Wait() { p.wg.Wait() }

func (p *JobWorkerPool) loop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain until the queue is empty, then go back to polling.
		for {
			jobID, ok, err := p.queue.Claim(ctx, workerID)
			if err != nil {
				p.logger.Error("job claim failed", zap.String("worker", workerID), zap.Error(err))
				break
			}
			if !ok {
				break
			}
			p.runOne(ctx, workerID, jobID)
		}
	}
}

func (p *JobWorkerPool) runOne(ctx context.Context, workerID string, jobID valueobjects.JobID) {
	job, err := p.queue.Load(ctx, jobID)
	if err != nil {
		p.logger.Error("claimed job vanished", zap.String("job_id", string(jobID)), zap.Error(err))
		return
	}

	runner, ok := p.runners[job.Type]
	if !ok {
		_ = p.queue.Fail(ctx, jobID, apperr.New(apperr.Internal, "no runner registered for job type "+job.Type))
		return
	}

	p.logger.Info("job started",
		zap.String("worker", workerID), zap.String("job_id", job.ID), zap.String("type", job.Type))
	_ = p.queue.PublishEvent(ctx, jobID, ports.JobEvent{JobID: jobID, Kind: "started"})

	if err := runner(ctx, job); err != nil {
		p.logger.Error("job failed",
			zap.String("job_id", job.ID), zap.String("type", job.Type),
			zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
		if failErr := p.queue.Fail(ctx, jobID, err); failErr != nil {
			p.logger.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		msg := err.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		_ = p.queue.PublishEvent(ctx, jobID, ports.JobEvent{JobID: jobID, Kind: "failed", Message: msg})
		return
	}

	if err := p.queue.Complete(ctx, jobID); err != nil {
		p.logger.Error("failed to mark job completed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	_ = p.queue.PublishEvent(ctx, jobID, ports.JobEvent{JobID: jobID, Kind: "completed", Progress: 1.0})
	p.logger.Info("job completed", zap.String("job_id", job.ID), zap.String("type", job.Type))
}
