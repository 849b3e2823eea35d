package app

import (
	"context"
	"errors"
	"time"

	"github.com/missuo/flux-panel/internal/api"
	"github.com/missuo/flux-panel/internal/lifecycle"
)

// usageRetention bounds the local hourly usage history.
const usageRetention = 48 * time.Hour

// StartBackgroundJobs starts the refresh, hourly usage and daily
// maintenance loops. They stop when parent is done or on
// StopBackgroundJobs. Calling it twice is a no-op.
func (a *App) StartBackgroundJobs(parent context.Context) {
	if a == nil || a.repo == nil {
		return
	}

	a.jobsMu.Lock()
	if a.jobsStarted {
		a.jobsMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	a.jobsCancel = cancel
	a.jobsStarted = true
	a.jobsWG.Add(3)
	a.jobsMu.Unlock()

	go a.runRefreshLoop(ctx)
	go a.runHourlyUsageLoop(ctx)
	go a.runDailyMaintenanceLoop(ctx)
}

func (a *App) StopBackgroundJobs() {
	if a == nil {
		return
	}

	a.jobsMu.Lock()
	if !a.jobsStarted {
		a.jobsMu.Unlock()
		return
	}
	cancel := a.jobsCancel
	a.jobsCancel = nil
	a.jobsStarted = false
	a.jobsMu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.jobsWG.Wait()
}

func (a *App) runRefreshLoop(ctx context.Context) {
	defer a.jobsWG.Done()

	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := a.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.Printf("refresh: %v", err)
				if errors.Is(err, api.ErrUnauthorized) {
					a.logger.Printf("refresh: session expired, log in again")
				}
			}
		}
	}
}

func (a *App) runHourlyUsageLoop(ctx context.Context) {
	defer a.jobsWG.Done()

	for {
		timer := time.NewTimer(durationUntilNextHour(a.now()))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
			a.runUsageSampleJob(a.now())
		}
	}
}

func (a *App) runDailyMaintenanceLoop(ctx context.Context) {
	defer a.jobsWG.Done()

	for {
		timer := time.NewTimer(durationUntilNextDailyMaintenance(a.now()))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
			a.runExpiryReportJob(ctx, a.now())
		}
	}
}

func durationUntilNextHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}

func durationUntilNextDailyMaintenance(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 5, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// runUsageSampleJob records the cached snapshot's usage as this hour's
// sample and drops samples past retention.
func (a *App) runUsageSampleJob(now time.Time) {
	cutoff := now.Add(-usageRetention).UnixMilli()
	if _, err := a.repo.PurgeUsageBefore(cutoff); err != nil {
		a.logger.Printf("usage: purge: %v", err)
	}

	snap, err := a.repo.LoadSnapshot()
	if err != nil || snap == nil {
		return
	}
	if _, err := a.repo.RecordUsage(snap.UsedFlowBytes, now); err != nil {
		a.logger.Printf("usage: record: %v", err)
	}
}

// runExpiryReportJob logs the account's expiry state and an upcoming flow
// reset, using the cached snapshot and a fresh dashboard when reachable.
// The dashboard fetch is abandoned when ctx is done.
func (a *App) runExpiryReportJob(ctx context.Context, now time.Time) {
	snap, err := a.repo.LoadSnapshot()
	if err != nil || snap == nil {
		return
	}
	exp := a.Classifier("WidgetSnapshot").Classify(snap.ExpTime, now)
	switch exp.Kind {
	case lifecycle.Expired:
		a.logger.Printf("account expired on %s", exp.At.Format("2006-01-02"))
	case lifecycle.ExpiringSoon:
		a.logger.Printf("account expires in %d day(s)", exp.DaysLeft)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout)
	defer cancel()
	d, _, err := a.Refresh(ctx)
	if err != nil {
		return
	}
	if next, ok := d.Account.NextReset(now); ok && next.Sub(now) < 24*time.Hour {
		a.logger.Printf("flow resets on %s", next.Format("2006-01-02"))
	}
	for _, asg := range d.Assignments {
		e := a.Classifier("TunnelAssignment").Classify(asg.ExpiresAt, now)
		if e.Kind == lifecycle.Expired {
			a.logger.Printf("tunnel %q assignment expired on %s", asg.TunnelName, e.At.Format("2006-01-02"))
		}
	}
}
