package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type purgerStub struct {
	calls   int
	removed int64
	err     error
}

func (p *purgerStub) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return p.removed, p.err
}

type healthStub struct {
	healthy bool
}

func (h *healthStub) Health(context.Context) bool { return h.healthy }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobsPurgeExpiredRememberedLogins(t *testing.T) {
	purger := &purgerStub{removed: 3}
	jobs := NewJobs(purger, nil, discardLogger())
	jobs.PurgeExpiredRememberedLogins()
	if purger.calls != 1 {
		t.Fatalf("expected one purge, got %d", purger.calls)
	}

	purger.err = errors.New("db down")
	jobs.PurgeExpiredRememberedLogins()
	if purger.calls != 2 {
		t.Fatalf("expected purge to be attempted again, got %d", purger.calls)
	}
}

func TestJobsProbeBankAPIHealth(t *testing.T) {
	health := &healthStub{healthy: false}
	jobs := NewJobs(nil, health, discardLogger())

	if !jobs.BankAPIHealthy() || !jobs.LastProbe().IsZero() {
		t.Fatalf("expected healthy and unprobed before the first run")
	}

	jobs.ProbeBankAPIHealth()
	if jobs.BankAPIHealthy() {
		t.Fatalf("expected unhealthy after failed probe")
	}
	if jobs.LastProbe().IsZero() {
		t.Fatalf("expected probe time to be recorded")
	}

	health.healthy = true
	jobs.ProbeBankAPIHealth()
	if !jobs.BankAPIHealthy() {
		t.Fatalf("expected healthy after recovery")
	}
}

func TestSchedulerStartSkipsDisabledAndInvalidJobs(t *testing.T) {
	jobs := NewJobs(&purgerStub{}, &healthStub{healthy: true}, discardLogger())

	scheduler := NewScheduler(jobs, discardLogger(), SchedulerConfig{
		RememberCleanupSchedule: "@every 1h",
		HealthProbeSchedule:     "not a schedule",
	})
	if got := scheduler.Start(); got != 1 {
		t.Fatalf("expected one scheduled job, got %d", got)
	}
	<-scheduler.Stop().Done()

	disabled := NewScheduler(jobs, discardLogger(), SchedulerConfig{})
	if got := disabled.Start(); got != 0 {
		t.Fatalf("expected no scheduled jobs, got %d", got)
	}
	<-disabled.Stop().Done()
}
