/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig holds the cron expressions of each job. An empty expression
// disables the job.
type SchedulerConfig struct {
	RememberCleanupSchedule string
	HealthProbeSchedule     string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config SchedulerConfig
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg SchedulerConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the number
// of jobs that were scheduled.
func (s *Scheduler) Start() int {
	scheduled := 0
	register := func(name, expr string, job func()) {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			s.logger.Info("job disabled", "job", name)
			return
		}
		if _, err := s.cron.AddFunc(expr, job); err != nil {
			s.logger.Error("failed to schedule job", "job", name, "schedule", expr, "error", err)
			return
		}
		scheduled++
		s.logger.Info("scheduled job", "job", name, "schedule", expr)
	}

	register("remember_cleanup", s.config.RememberCleanupSchedule, s.jobs.PurgeExpiredRememberedLogins)
	register("bank_api_health_probe", s.config.HealthProbeSchedule, s.jobs.ProbeBankAPIHealth)

	s.cron.Start()
	return scheduled
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
