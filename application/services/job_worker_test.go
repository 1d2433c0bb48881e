package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

type workerFakeQueue struct {
	ports.JobQueue
	job       *entities.Job
	completed bool
	failedErr error
	events    []ports.JobEvent
}

func (f *workerFakeQueue) Load(ctx context.Context, jobID valueobjects.JobID) (*entities.Job, error) {
	if f.job == nil {
		return nil, apperr.New(apperr.NotFound, "job not found")
	}
	return f.job, nil
}

func (f *workerFakeQueue) Complete(ctx context.Context, jobID valueobjects.JobID) error {
	f.completed = true
	return nil
}

func (f *workerFakeQueue) Fail(ctx context.Context, jobID valueobjects.JobID, jobErr error) error {
	f.failedErr = jobErr
	return nil
}

func (f *workerFakeQueue) PublishEvent(ctx context.Context, jobID valueobjects.JobID, event ports.JobEvent) error {
	f.events = append(f.events, event)
	return nil
}

func processingJob(jobType string) *entities.Job {
	j := entities.NewJob("job-1", jobType, entities.JobSourceUser, nil, 2)
	_ = j.Transition(entities.JobApproved)
	_ = j.Transition(entities.JobQueued)
	_ = j.Transition(entities.JobProcessing)
	return j
}

func TestRunOneCompletesJob(t *testing.T) {
	queue := &workerFakeQueue{job: processingJob("noop")}
	pool := NewJobWorkerPool(queue, 1, 0, zap.NewNop())

	ran := false
	pool.Register("noop", func(ctx context.Context, job *entities.Job) error {
		ran = true
		return nil
	})

	pool.runOne(context.Background(), "worker-0", "job-1")
	assert.True(t, ran)
	assert.True(t, queue.completed)
	assert.NoError(t, queue.failedErr)

	require.Len(t, queue.events, 2)
	assert.Equal(t, "started", queue.events[0].Kind)
	assert.Equal(t, "completed", queue.events[1].Kind)
}

func TestRunOneFailsJobOnRunnerError(t *testing.T) {
	queue := &workerFakeQueue{job: processingJob("broken")}
	pool := NewJobWorkerPool(queue, 1, 0, zap.NewNop())
	pool.Register("broken", func(ctx context.Context, job *entities.Job) error {
		return apperr.New(apperr.ProviderUnavailable, "embedding backend down")
	})

	pool.runOne(context.Background(), "worker-0", "job-1")
	assert.False(t, queue.completed)
	require.Error(t, queue.failedErr)
	assert.Contains(t, queue.failedErr.Error(), "embedding backend down")
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(queue.failedErr),
		"the queue must see the original kind so retry policy can fire")
}

func TestRunOneFailsJobWithoutRunner(t *testing.T) {
	queue := &workerFakeQueue{job: processingJob("unknown_type")}
	pool := NewJobWorkerPool(queue, 1, 0, zap.NewNop())

	pool.runOne(context.Background(), "worker-0", "job-1")
	require.Error(t, queue.failedErr)
	assert.Contains(t, queue.failedErr.Error(), "unknown_type")
}

func TestRunOneTruncatesPublishedErrorMessage(t *testing.T) {
	queue := &workerFakeQueue{job: processingJob("verbose")}
	pool := NewJobWorkerPool(queue, 1, 0, zap.NewNop())
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'e'
	}
	pool.Register("verbose", func(ctx context.Context, job *entities.Job) error {
		return apperr.New(apperr.Internal, string(long))
	})

	pool.runOne(context.Background(), "worker-0", "job-1")
	require.NotEmpty(t, queue.events)
	failed := queue.events[len(queue.events)-1]
	assert.Equal(t, "failed", failed.Kind)
	assert.LessOrEqual(t, len(failed.Message), 500)
}
