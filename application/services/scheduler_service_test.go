package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

type fakeTaskStore struct {
	due   []*entities.ScheduledTask
	saved []*entities.ScheduledTask
}

func (f *fakeTaskStore) ListDue(ctx context.Context) ([]*entities.ScheduledTask, error) {
	return f.due, nil
}
func (f *fakeTaskStore) ListAll(ctx context.Context) ([]*entities.ScheduledTask, error) {
	return f.due, nil
}
func (f *fakeTaskStore) Save(ctx context.Context, t *entities.ScheduledTask) error {
	f.saved = append(f.saved, t)
	return nil
}

type enqueuedJob struct {
	jobType string
	source  string
}

type fakeJobQueue struct {
	ports.JobQueue
	enqueued   []enqueuedJob
	enqueueErr error
}

func (f *fakeJobQueue) Enqueue(ctx context.Context, jobType string, data map[string]interface{}, source string) (valueobjects.JobID, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.enqueued = append(f.enqueued, enqueuedJob{jobType: jobType, source: source})
	return valueobjects.NewJobID(), nil
}

type fakeLocker struct {
	acquired bool
	releases int
}

func (f *fakeLocker) TryAcquire(ctx context.Context, key string) (func(context.Context), bool, error) {
	if !f.acquired {
		return nil, false, nil
	}
	return func(context.Context) { f.releases++ }, true, nil
}

func dueTask(launcherRef string) *entities.ScheduledTask {
	return &entities.ScheduledTask{
		Name: launcherRef, CronExpression: "* * * * *", LauncherRef: launcherRef,
		Enabled: true, MaxRetries: 3,
	}
}

func newTestScheduler(tasks *fakeTaskStore, jobs *fakeJobQueue, locker *fakeLocker) *SchedulerService {
	return NewSchedulerService(tasks, jobs, locker, "groundgraph.scheduler", zap.NewNop())
}

func TestTickWithoutLockDoesNothing(t *testing.T) {
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{dueTask("x")}}
	jobs := &fakeJobQueue{}
	s := newTestScheduler(tasks, jobs, &fakeLocker{acquired: false})

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, jobs.enqueued)
	assert.Empty(t, tasks.saved)
}

func TestTickEnqueuesWhenConditionPasses(t *testing.T) {
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{dueTask("annealing_cycle")}}
	jobs := &fakeJobQueue{}
	locker := &fakeLocker{acquired: true}
	s := newTestScheduler(tasks, jobs, locker)
	s.RegisterLauncher(Launcher{
		Name:      "annealing_cycle",
		Condition: func(ctx context.Context) (bool, error) { return true, nil },
		JobType:   "annealing_cycle",
	})

	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, "annealing_cycle", jobs.enqueued[0].jobType)
	assert.Equal(t, "scheduled_task", jobs.enqueued[0].source)
	assert.Equal(t, 1, locker.releases)

	require.Len(t, tasks.saved, 1)
	saved := tasks.saved[0]
	assert.NotNil(t, saved.LastSuccess)
	assert.True(t, saved.NextRun.After(time.Now()))
}

func TestTickSkipIsNotAFailure(t *testing.T) {
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{dueTask("vocab_consolidation")}}
	jobs := &fakeJobQueue{}
	s := newTestScheduler(tasks, jobs, &fakeLocker{acquired: true})
	s.RegisterLauncher(Launcher{
		Name:      "vocab_consolidation",
		Condition: func(ctx context.Context) (bool, error) { return false, nil },
		JobType:   "vocab_consolidation",
	})

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, jobs.enqueued)
	require.Len(t, tasks.saved, 1)
	saved := tasks.saved[0]
	assert.Equal(t, 0, saved.RetryCount)
	assert.NotNil(t, saved.LastRun)
	assert.Nil(t, saved.LastSuccess)
}

func TestTickConditionErrorIncrementsRetry(t *testing.T) {
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{dueTask("failing")}}
	jobs := &fakeJobQueue{}
	s := newTestScheduler(tasks, jobs, &fakeLocker{acquired: true})
	s.RegisterLauncher(Launcher{
		Name:      "failing",
		Condition: func(ctx context.Context) (bool, error) { return false, errors.New("registry unreachable") },
		JobType:   "whatever",
	})

	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, tasks.saved, 1)
	assert.Equal(t, 1, tasks.saved[0].RetryCount)
	assert.True(t, tasks.saved[0].Enabled)
}

func TestTaskDisabledAfterMaxRetries(t *testing.T) {
	task := dueTask("failing")
	task.MaxRetries = 1
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{task}}
	s := newTestScheduler(tasks, &fakeJobQueue{}, &fakeLocker{acquired: true})
	s.RegisterLauncher(Launcher{
		Name:      "failing",
		Condition: func(ctx context.Context) (bool, error) { return false, errors.New("boom") },
		JobType:   "whatever",
	})

	require.NoError(t, s.Tick(context.Background()))
	assert.False(t, task.Enabled)
}

func TestUnknownLauncherRefRecordsFailure(t *testing.T) {
	tasks := &fakeTaskStore{due: []*entities.ScheduledTask{dueTask("never_registered")}}
	s := newTestScheduler(tasks, &fakeJobQueue{}, &fakeLocker{acquired: true})

	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, tasks.saved, 1)
	assert.Equal(t, 1, tasks.saved[0].RetryCount)
}

func TestNextRunRejectsBadCron(t *testing.T) {
	_, err := nextRun("not a cron line", time.Now())
	assert.Error(t, err)
}

// Scenario S4: inactive_ratio 0.25 fires, 0.12 is suppressed inside the
// hysteresis band, and the gate re-arms only after dropping below 0.10.
func TestHysteresisGateScenario(t *testing.T) {
	gate := NewHysteresisGate(0.20, 0.10)

	assert.True(t, gate.Evaluate(0.25), "above high threshold fires")
	assert.False(t, gate.Evaluate(0.12), "suppressed inside the band after firing")

	assert.False(t, gate.Evaluate(0.08), "below low threshold deactivates")
	assert.False(t, gate.Evaluate(0.15), "re-entering the band does not re-fire")
	assert.True(t, gate.Evaluate(0.21), "crossing high again re-fires")
}
