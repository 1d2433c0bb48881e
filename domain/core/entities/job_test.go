package entities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundgraph/engine/pkg/apperr"
)

func newTestJob() *Job {
	return NewJob("job-1", "ingest_document", JobSourceUser, map[string]interface{}{"k": "v"}, 2)
}

func TestNewJobStartsPending(t *testing.T) {
	j := newTestJob()
	assert.Equal(t, JobPending, j.Status)
	assert.False(t, j.IsSystemJob)
	assert.False(t, j.IsTerminal())
}

func TestNewJobFromSchedulerIsSystemJob(t *testing.T) {
	j := NewJob("job-2", "annealing_cycle", JobSourceScheduledTask, nil, 2)
	assert.True(t, j.IsSystemJob)
}

func TestHappyPathTransitions(t *testing.T) {
	j := newTestJob()
	for _, to := range []JobStatus{JobApproved, JobQueued, JobProcessing, JobCompleted} {
		require.NoError(t, j.Transition(to))
	}
	assert.True(t, j.IsTerminal())
	assert.NotNil(t, j.StartedAt)
	assert.NotNil(t, j.CompletedAt)
}

func TestApprovalGatePath(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobAwaitingApproval))
	require.NoError(t, j.Transition(JobApproved))
	require.NoError(t, j.Transition(JobQueued))
}

func TestBackwardTransitionRejected(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobApproved))
	err := j.Transition(JobPending)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestProcessingCannotBeCancelled(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobApproved))
	require.NoError(t, j.Transition(JobQueued))
	require.NoError(t, j.Transition(JobProcessing))
	err := j.Cancel()
	require.Error(t, err)
	assert.Equal(t, JobProcessing, j.Status)
}

func TestPreProcessingStatesAreCancellable(t *testing.T) {
	for _, setup := range []func(*Job){
		func(j *Job) {},
		func(j *Job) { _ = j.Transition(JobAwaitingApproval) },
		func(j *Job) { _ = j.Transition(JobApproved) },
		func(j *Job) { _ = j.Transition(JobApproved); _ = j.Transition(JobQueued) },
	} {
		j := newTestJob()
		setup(j)
		require.NoError(t, j.Cancel(), "status %s should be cancellable", j.Status)
		assert.Equal(t, JobCancelled, j.Status)
		assert.True(t, j.IsTerminal())
	}
}

func TestTerminalStatesRejectAnyTransition(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Cancel())
	assert.Error(t, j.Transition(JobApproved))
	assert.Error(t, j.Cancel())
}

func TestFailRetryableErrorRequeuesForAnotherClaim(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobApproved))
	require.NoError(t, j.Transition(JobQueued))
	require.NoError(t, j.Transition(JobProcessing))

	retryable := apperr.New(apperr.ProviderUnavailable, "embedding backend down")
	require.NoError(t, j.Fail(retryable))
	assert.Equal(t, 1, j.RetryCount)
	assert.Equal(t, JobApproved, j.Status, "retryable failure requeues the job")

	require.NoError(t, j.Transition(JobQueued))
	require.NoError(t, j.Transition(JobProcessing))
	require.NoError(t, j.Fail(retryable))
	assert.Equal(t, 2, j.RetryCount)
	assert.Equal(t, JobApproved, j.Status)

	// Retries exhausted: the next failure is terminal.
	require.NoError(t, j.Transition(JobQueued))
	require.NoError(t, j.Transition(JobProcessing))
	require.NoError(t, j.Fail(retryable))
	assert.Equal(t, JobFailed, j.Status)
}

func TestFailNonRetryableErrorIsTerminalImmediately(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobApproved))
	require.NoError(t, j.Transition(JobQueued))
	require.NoError(t, j.Transition(JobProcessing))

	require.NoError(t, j.Fail(errors.New("parse error")))
	assert.Equal(t, JobFailed, j.Status)
	assert.Equal(t, 0, j.RetryCount)
}

func TestSetProgressIsMonotonic(t *testing.T) {
	j := newTestJob()
	j.SetProgress(0.5)
	j.SetProgress(0.3)
	assert.Equal(t, 0.5, j.Progress)
	j.SetProgress(0.9)
	assert.Equal(t, 0.9, j.Progress)
}

func TestPullEventsDrains(t *testing.T) {
	j := newTestJob()
	require.NoError(t, j.Transition(JobApproved))
	events := j.PullEvents()
	require.Len(t, events, 1)
	assert.Empty(t, j.PullEvents())
}
