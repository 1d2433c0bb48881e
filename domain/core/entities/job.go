// Job's state machine is the domain core's most teacher-distant piece:
// nothing in backend models a durable job queue, so this is grounded
// instead on its shape, not its content — private fields, validated
// transitions, an internal event log — following the same discipline as
// Concept (domain/core/entities/concept.go) and the state diagram in spec.md
// §4.7.
package entities

import (
	"time"

	"github.com/groundgraph/engine/domain/events"
	"github.com/groundgraph/engine/pkg/apperr"
)

// JobStatus is one node in the forward-only job state machine.
type JobStatus string

const (
	JobPending           JobStatus = "pending"
	JobAwaitingApproval  JobStatus = "awaiting_approval"
	JobApproved          JobStatus = "approved"
	JobQueued            JobStatus = "queued"
	JobProcessing        JobStatus = "processing"
	JobCompleted         JobStatus = "completed"
	JobFailed            JobStatus = "failed"
	JobCancelled         JobStatus = "cancelled"
)

// JobSource records what originated the job.
type JobSource string

const (
	JobSourceUser           JobSource = "user"
	JobSourceScheduledTask  JobSource = "scheduled_task"
	JobSourceTriggered      JobSource = "triggered"
)

var terminalStatuses = map[JobStatus]bool{
	JobCompleted: true, JobFailed: true, JobCancelled: true,
}

var cancellableStatuses = map[JobStatus]bool{
	JobPending: true, JobAwaitingApproval: true, JobApproved: true, JobQueued: true,
}

// forwardTransitions enumerates every legal status -> status edge in the
// diagram from spec.md §4.7. processing -> approved is the retry edge:
// a retryable failure under budget requeues the job for another claim.
var forwardTransitions = map[JobStatus]map[JobStatus]bool{
	JobPending:          {JobAwaitingApproval: true, JobApproved: true, JobCancelled: true},
	JobAwaitingApproval: {JobApproved: true, JobCancelled: true},
	JobApproved:         {JobQueued: true, JobCancelled: true},
	JobQueued:           {JobProcessing: true, JobCancelled: true},
	JobProcessing:       {JobCompleted: true, JobFailed: true, JobApproved: true},
}

// Job is a durable unit of work.
type Job struct {
	ID          string
	Type        string
	Status      JobStatus
	Source      JobSource
	IsSystemJob bool
	JobData     map[string]interface{}
	Analysis    map[string]interface{}
	Progress    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int

	events []events.DomainEvent
}

// NewJob creates a job in the pending state.
func NewJob(id, jobType string, source JobSource, data map[string]interface{}, maxRetries int) *Job {
	now := time.Now()
	return &Job{
		ID: id, Type: jobType, Status: JobPending, Source: source,
		IsSystemJob: source != JobSourceUser, JobData: data,
		CreatedAt: now, UpdatedAt: now, MaxRetries: maxRetries,
	}
}

// Transition moves the job to `to`, rejecting any edge not present in the
// forward state machine (invariant 3: a job only transitions forward).
func (j *Job) Transition(to JobStatus) error {
	allowed := forwardTransitions[j.Status]
	if !allowed[to] {
		return apperr.New(apperr.Conflict, "illegal job transition from "+string(j.Status)+" to "+string(to))
	}
	from := j.Status
	j.Status = to
	j.UpdatedAt = time.Now()
	if to == JobProcessing {
		now := time.Now()
		j.StartedAt = &now
	}
	if terminalStatuses[to] {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.record(events.NewJobStatusChanged(j.ID, string(from), string(to)))
	return nil
}

// Cancel cancels the job if it is in a cancellable pre-processing state
// (invariant 3).
func (j *Job) Cancel() error {
	if !cancellableStatuses[j.Status] {
		return apperr.New(apperr.Conflict, "job in status "+string(j.Status)+" cannot be cancelled")
	}
	return j.Transition(JobCancelled)
}

// IsTerminal reports whether the job is in a terminal state.
func (j *Job) IsTerminal() bool { return terminalStatuses[j.Status] }

// Fail marks the job failed, or — if err is retryable and the retry
// budget isn't exhausted — increments RetryCount and requeues the job to
// JobApproved so a worker claims it again (spec.md §7 propagation policy).
func (j *Job) Fail(err error) error {
	if apperr.KindOf(err).Retryable() && j.RetryCount < j.MaxRetries {
		j.RetryCount++
		return j.Transition(JobApproved)
	}
	return j.Transition(JobFailed)
}

// SetProgress advances progress monotonically (spec.md §4.6 stage 5).
func (j *Job) SetProgress(p float64) {
	if p > j.Progress {
		j.Progress = p
		j.UpdatedAt = time.Now()
	}
}

func (j *Job) record(e events.DomainEvent) { j.events = append(j.events, e) }

func (j *Job) PullEvents() []events.DomainEvent {
	out := j.events
	j.events = nil
	return out
}
