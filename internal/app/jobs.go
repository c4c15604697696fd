/**
 * @description
 * Scheduled job implementations for the portal.
 */
package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const jobTimeout = 30 * time.Second

// RememberPurger removes expired remember-me credentials.
type RememberPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// HealthChecker probes the banking API.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	remember RememberPurger
	bank     HealthChecker
	logger   *slog.Logger

	bankHealthy atomic.Bool
	lastProbe   atomic.Int64
}

// NewJobs creates a new Jobs runner. The banking API is assumed healthy until
// the first probe says otherwise.
func NewJobs(remember RememberPurger, bank HealthChecker, logger *slog.Logger) *Jobs {
	j := &Jobs{remember: remember, bank: bank, logger: logger}
	j.bankHealthy.Store(true)
	return j
}

// PurgeExpiredRememberedLogins deletes expired remember-me credentials.
func (j *Jobs) PurgeExpiredRememberedLogins() {
	if j.remember == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := j.remember.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("failed to purge expired remembered logins", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("purged expired remembered logins", "count", removed)
	}
}

// ProbeBankAPIHealth records whether the banking API answers its health check.
func (j *Jobs) ProbeBankAPIHealth() {
	if j.bank == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	healthy := j.bank.Health(ctx)
	previous := j.bankHealthy.Swap(healthy)
	j.lastProbe.Store(time.Now().Unix())
	switch {
	case previous && !healthy:
		j.logger.Warn("banking api became unreachable")
	case !previous && healthy:
		j.logger.Info("banking api reachable again")
	}
}

// BankAPIHealthy reports the result of the last probe.
func (j *Jobs) BankAPIHealthy() bool {
	return j.bankHealthy.Load()
}

// LastProbe is the time of the last health probe, zero before the first.
func (j *Jobs) LastProbe() time.Time {
	if unix := j.lastProbe.Load(); unix > 0 {
		return time.Unix(unix, 0)
	}
	return time.Time{}
}
