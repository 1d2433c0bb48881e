package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// EventBus is the narrow pub/sub facade JobQueue delegates
// PublishEvent/Subscribe to — implemented by infrastructure/queue/redis.
// Kept as a small local interface (rather than importing the redis
// package directly) to avoid a persistence->queue dependency edge.
type EventBus interface {
	Publish(ctx context.Context, jobID valueobjects.JobID, event ports.JobEvent) error
	Subscribe(ctx context.Context, jobID valueobjects.JobID) (<-chan ports.JobEvent, error)
}

// JobQueue persists the jobs table and claims work via
// SELECT ... FOR UPDATE SKIP LOCKED, delegating transient event fan-out
// to an EventBus (spec.md §4.7 job lifecycle).
type JobQueue struct {
	pool  *pgxpool.Pool
	bus   EventBus
}

func NewJobQueue(pool *pgxpool.Pool, bus EventBus) *JobQueue {
	return &JobQueue{pool: pool, bus: bus}
}

var _ ports.JobQueue = (*JobQueue)(nil)

const jobColumns = `id, type, status, source, is_system_job, job_data, analysis, progress,
	created_at, updated_at, started_at, completed_at, retry_count, max_retries`

func (q *JobQueue) Enqueue(ctx context.Context, jobType string, data map[string]interface{}, source string) (valueobjects.JobID, error) {
	id := valueobjects.NewJobID()
	job := entities.NewJob(id.String(), jobType, entities.JobSource(source), data, 3)
	_, err := q.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, job.ID, job.Type, string(job.Status), string(job.Source), job.IsSystemJob, job.JobData, job.Analysis,
		job.Progress, job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt, job.RetryCount, job.MaxRetries)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "enqueue job", err)
	}
	return id, nil
}

func (q *JobQueue) loadJob(ctx context.Context, tx pgx.Tx, jobID valueobjects.JobID) (*entities.Job, error) {
	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID.String())
	var j entities.Job
	var status, source string
	if err := row.Scan(&j.ID, &j.Type, &status, &source, &j.IsSystemJob, &j.JobData, &j.Analysis, &j.Progress,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt, &j.RetryCount, &j.MaxRetries); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "job not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "load job", err)
	}
	j.Status, j.Source = entities.JobStatus(status), entities.JobSource(source)
	return &j, nil
}

func (q *JobQueue) saveJob(ctx context.Context, tx pgx.Tx, j *entities.Job) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET status = $2, job_data = $3, analysis = $4, progress = $5, updated_at = $6,
			started_at = $7, completed_at = $8, retry_count = $9
		WHERE id = $1
	`, j.ID, string(j.Status), j.JobData, j.Analysis, j.Progress, j.UpdatedAt, j.StartedAt, j.CompletedAt, j.RetryCount)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save job", err)
	}
	return nil
}

func (q *JobQueue) transition(ctx context.Context, jobID valueobjects.JobID, apply func(*entities.Job) error) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "begin job transition", err)
	}
	defer tx.Rollback(ctx)

	job, err := q.loadJob(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if err := apply(job); err != nil {
		return err
	}
	if err := q.saveJob(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (q *JobQueue) MarkAwaitingApproval(ctx context.Context, jobID valueobjects.JobID, analysis map[string]interface{}) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		j.Analysis = analysis
		return j.Transition(entities.JobAwaitingApproval)
	})
}

func (q *JobQueue) Load(ctx context.Context, jobID valueobjects.JobID) (*entities.Job, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID.String())
	var j entities.Job
	var status, source string
	if err := row.Scan(&j.ID, &j.Type, &status, &source, &j.IsSystemJob, &j.JobData, &j.Analysis, &j.Progress,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt, &j.RetryCount, &j.MaxRetries); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "job not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "load job", err)
	}
	j.Status, j.Source = entities.JobStatus(status), entities.JobSource(source)
	return &j, nil
}

func (q *JobQueue) Approve(ctx context.Context, jobID valueobjects.JobID, approver string) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		if j.Analysis == nil {
			j.Analysis = map[string]interface{}{}
		}
		j.Analysis["approved_by"] = approver
		return j.Transition(entities.JobApproved)
	})
}

// Claim atomically moves the oldest approved-or-pending job into queued
// then processing, using SKIP LOCKED so concurrent workers never block on
// each other (spec.md §5 worker pool concurrency model).
func (q *JobQueue) Claim(ctx context.Context, workerID string) (valueobjects.JobID, bool, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return "", false, apperr.Wrap(apperr.Internal, "begin claim", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id FROM jobs
		WHERE status IN ('pending', 'approved')
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperr.Wrap(apperr.Internal, "claim job", err)
	}

	jobID := valueobjects.JobID(id)
	job, err := q.loadJob(ctx, tx, jobID)
	if err != nil {
		return "", false, err
	}
	if job.Status == entities.JobPending {
		if err := job.Transition(entities.JobApproved); err != nil {
			return "", false, err
		}
	}
	if err := job.Transition(entities.JobQueued); err != nil {
		return "", false, err
	}
	if err := job.Transition(entities.JobProcessing); err != nil {
		return "", false, err
	}
	if err := q.saveJob(ctx, tx, job); err != nil {
		return "", false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", false, apperr.Wrap(apperr.Internal, "commit claim", err)
	}
	return jobID, true, nil
}

func (q *JobQueue) UpdateProgress(ctx context.Context, jobID valueobjects.JobID, progress float64) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		j.SetProgress(progress)
		return nil
	})
}

func (q *JobQueue) Complete(ctx context.Context, jobID valueobjects.JobID) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		return j.Transition(entities.JobCompleted)
	})
}

func (q *JobQueue) Fail(ctx context.Context, jobID valueobjects.JobID, jobErr error) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		if j.Analysis == nil {
			j.Analysis = map[string]interface{}{}
		}
		msg := jobErr.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		j.Analysis["last_error"] = msg
		j.Analysis["last_error_kind"] = string(apperr.KindOf(jobErr))
		return j.Fail(jobErr)
	})
}

func (q *JobQueue) Cancel(ctx context.Context, jobID valueobjects.JobID) error {
	return q.transition(ctx, jobID, func(j *entities.Job) error {
		return j.Cancel()
	})
}

func (q *JobQueue) Get(ctx context.Context, jobID valueobjects.JobID) (*ports.JobSnapshot, error) {
	row := q.pool.QueryRow(ctx, `SELECT status, progress, retry_count, updated_at FROM jobs WHERE id = $1`, jobID.String())
	var snap ports.JobSnapshot
	var status string
	if err := row.Scan(&status, &snap.Progress, &snap.RetryCount, &snap.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "job not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "get job snapshot", err)
	}
	snap.JobID, snap.Status = jobID, status
	return &snap, nil
}

func (q *JobQueue) PublishEvent(ctx context.Context, jobID valueobjects.JobID, event ports.JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return q.bus.Publish(ctx, jobID, event)
}

func (q *JobQueue) Subscribe(ctx context.Context, jobID valueobjects.JobID) (<-chan ports.JobEvent, error) {
	return q.bus.Subscribe(ctx, jobID)
}
