package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/pkg/apperr"
)

// ScheduledTaskStore persists the scheduled_tasks table (spec.md §4.7).
type ScheduledTaskStore struct {
	pool *pgxpool.Pool
}

func NewScheduledTaskStore(pool *pgxpool.Pool) *ScheduledTaskStore {
	return &ScheduledTaskStore{pool: pool}
}

var _ ports.ScheduledTaskStore = (*ScheduledTaskStore)(nil)

const scheduledTaskColumns = `name, cron_expression, launcher_ref, enabled, last_run, last_success, next_run, retry_count, max_retries`

func (s *ScheduledTaskStore) ListDue(ctx context.Context) ([]*entities.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+scheduledTaskColumns+` FROM scheduled_tasks
		WHERE enabled = true AND next_run <= $1 ORDER BY next_run`, time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list due tasks", err)
	}
	defer rows.Close()
	return scanScheduledTasks(rows)
}

func (s *ScheduledTaskStore) ListAll(ctx context.Context) ([]*entities.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+scheduledTaskColumns+` FROM scheduled_tasks ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list all tasks", err)
	}
	defer rows.Close()
	return scanScheduledTasks(rows)
}

func scanScheduledTasks(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]*entities.ScheduledTask, error) {
	var out []*entities.ScheduledTask
	for rows.Next() {
		var t entities.ScheduledTask
		var lastRun, lastSuccess *time.Time
		if err := rows.Scan(&t.Name, &t.CronExpression, &t.LauncherRef, &t.Enabled, &lastRun, &lastSuccess,
			&t.NextRun, &t.RetryCount, &t.MaxRetries); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan scheduled task", err)
		}
		t.LastRun, t.LastSuccess = lastRun, lastSuccess
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *ScheduledTaskStore) Save(ctx context.Context, t *entities.ScheduledTask) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_tasks (`+scheduledTaskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (name) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression, launcher_ref = EXCLUDED.launcher_ref,
			enabled = EXCLUDED.enabled, last_run = EXCLUDED.last_run, last_success = EXCLUDED.last_success,
			next_run = EXCLUDED.next_run, retry_count = EXCLUDED.retry_count, max_retries = EXCLUDED.max_retries
	`, t.Name, t.CronExpression, t.LauncherRef, t.Enabled, t.LastRun, t.LastSuccess, t.NextRun, t.RetryCount, t.MaxRetries)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save scheduled task", err)
	}
	return nil
}

// AnnealingProposalStore persists the annealing_proposals table (spec.md §4.8).
type AnnealingProposalStore struct {
	pool *pgxpool.Pool
}

func NewAnnealingProposalStore(pool *pgxpool.Pool) *AnnealingProposalStore {
	return &AnnealingProposalStore{pool: pool}
}

var _ ports.AnnealingProposalStore = (*AnnealingProposalStore)(nil)

func (s *AnnealingProposalStore) Save(ctx context.Context, p *entities.AnnealingProposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO annealing_proposals (id, type, target_id, scores, status, rationale, reviewer, created_at, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, rationale = EXCLUDED.rationale, reviewer = EXCLUDED.reviewer, decided_at = EXCLUDED.decided_at
	`, p.ID, string(p.Type), p.TargetID, p.Scores, string(p.Status), p.Rationale, p.Reviewer, p.CreatedAt, p.DecidedAt)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save annealing proposal", err)
	}
	return nil
}

func (s *AnnealingProposalStore) ListPending(ctx context.Context) ([]*entities.AnnealingProposal, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, type, target_id, scores, status, rationale, reviewer, created_at, decided_at
		FROM annealing_proposals WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list pending proposals", err)
	}
	defer rows.Close()

	var out []*entities.AnnealingProposal
	for rows.Next() {
		var p entities.AnnealingProposal
		var ptype, status string
		var decidedAt *time.Time
		if err := rows.Scan(&p.ID, &ptype, &p.TargetID, &p.Scores, &status, &p.Rationale, &p.Reviewer, &p.CreatedAt, &decidedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan annealing proposal", err)
		}
		p.Type, p.Status, p.DecidedAt = entities.AnnealingProposalType(ptype), entities.AnnealingProposalStatus(status), decidedAt
		out = append(out, &p)
	}
	return out, rows.Err()
}
