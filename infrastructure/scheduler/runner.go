// Package scheduler drives application/services.SchedulerService.Tick on a
// cron schedule, using robfig/cron/v3 the way backend's internal/di wires
// its background jobs (spec.md §4.7: "every minute, the elected leader
// scans due tasks").
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/services"
)

// Runner owns the cron loop that ticks the scheduler every minute.
type Runner struct {
	cron    *cron.Cron
	service *services.SchedulerService
	logger  *zap.Logger
}

func NewRunner(service *services.SchedulerService, logger *zap.Logger) *Runner {
	return &Runner{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}
}

// Start registers the minute-granularity tick and begins running it in the
// background. Cancel ctx or call Stop to shut down.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc("@every 1m", func() {
		if err := r.service.Tick(ctx); err != nil {
			r.logger.Error("scheduler tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for any in-flight tick to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
