package services

import (
	"context"
	"time"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LauncherCondition evaluates the cheap precondition gating a scheduled
// task's job enqueue (spec.md §4.7: "vocabulary change delta >= 10",
// "epoch delta >= 5", "inactive-type ratio > 20%"). Returning false means
// skip, not failure.
type LauncherCondition func(ctx context.Context) (bool, error)

// Launcher pairs a named condition with the job type/data it enqueues
// once the condition passes.
type Launcher struct {
	Name      string
	Condition LauncherCondition
	JobType   string
	JobData   map[string]interface{}
}

// SchedulerService is the single-leader cron scheduler of spec.md §4.7:
// every minute, the elected leader scans due ScheduledTasks, evaluates
// each one's launcher condition, and enqueues work or records a skip.
type SchedulerService struct {
	tasks     ports.ScheduledTaskStore
	jobs      ports.JobQueue
	locker    ports.AdvisoryLocker
	lockKey   string
	launchers map[string]Launcher
	logger    *zap.Logger
}

func NewSchedulerService(
	tasks ports.ScheduledTaskStore,
	jobs ports.JobQueue,
	locker ports.AdvisoryLocker,
	lockKey string,
	logger *zap.Logger,
) *SchedulerService {
	return &SchedulerService{
		tasks: tasks, jobs: jobs, locker: locker, lockKey: lockKey,
		launchers: make(map[string]Launcher), logger: logger,
	}
}

// RegisterLauncher binds a launcher by name so ScheduledTask.LauncherRef
// can resolve to it at tick time.
func (s *SchedulerService) RegisterLauncher(l Launcher) {
	s.launchers[l.Name] = l
}

// Tick runs one scheduler pass: acquire the leader lock, scan due tasks,
// evaluate each launcher, enqueue or skip. A process that fails to
// acquire the lock returns immediately without error — exactly one
// instance does work per tick (spec.md invariant 7).
func (s *SchedulerService) Tick(ctx context.Context) error {
	release, acquired, err := s.locker.TryAcquire(ctx, s.lockKey)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer release(ctx)

	due, err := s.tasks.ListDue(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, task := range due {
		if err := s.runTask(ctx, task, now); err != nil {
			s.logger.Error("scheduled task run failed", zap.String("task", task.Name), zap.Error(err))
		}
	}
	return nil
}

func (s *SchedulerService) runTask(ctx context.Context, task *entities.ScheduledTask, now time.Time) error {
	next, err := nextRun(task.CronExpression, now)
	if err != nil {
		return err
	}

	launcher, ok := s.launchers[task.LauncherRef]
	if !ok {
		task.RecordFailure(now, next)
		return s.tasks.Save(ctx, task)
	}

	passed, err := launcher.Condition(ctx)
	if err != nil {
		task.RecordFailure(now, next)
		if saveErr := s.tasks.Save(ctx, task); saveErr != nil {
			return saveErr
		}
		return err
	}
	if !passed {
		task.RecordSkip(now, next)
		return s.tasks.Save(ctx, task)
	}

	if _, err := s.jobs.Enqueue(ctx, launcher.JobType, launcher.JobData, "scheduled_task"); err != nil {
		task.RecordFailure(now, next)
		if saveErr := s.tasks.Save(ctx, task); saveErr != nil {
			return saveErr
		}
		return err
	}

	task.RecordSuccess(now, next)
	return s.tasks.Save(ctx, task)
}

func nextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}

// HysteresisGate implements the "trigger above high, stop below low"
// pattern used by consolidation (spec.md §4.7's consolidation example:
// trigger when inactive_ratio > 0.20, stop when < 0.10) so a launcher
// condition doesn't thrash at the boundary: it fires once when the ratio
// rises above High, then stays quiet until the ratio has dropped below Low.
type HysteresisGate struct {
	High, Low float64
	active    bool
}

func NewHysteresisGate(high, low float64) *HysteresisGate {
	return &HysteresisGate{High: high, Low: low}
}

// Evaluate updates the gate from the latest ratio reading and reports
// whether it fires: true only on the reading that crosses above High while
// armed. Readings inside the band after firing return false; a reading
// below Low re-arms the gate.
func (h *HysteresisGate) Evaluate(ratio float64) bool {
	if !h.active && ratio > h.High {
		h.active = true
		return true
	}
	if h.active && ratio < h.Low {
		h.active = false
	}
	return false
}
