package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/internal/service"
)

// SyncSchedulerJob walks every auto-sync user on a short cron tick and
// enqueues current-year sync jobs for the ones whose interval has elapsed.
type SyncSchedulerJob struct {
	sr  repository.SyncSettingRepository
	ar  repository.PlatformAccountRepository
	sjs service.SyncJobService
	now func() time.Time
}

func NewSyncSchedulerJob(
	sr repository.SyncSettingRepository,
	ar repository.PlatformAccountRepository,
	sjs service.SyncJobService) *SyncSchedulerJob {
	return &SyncSchedulerJob{
		sr:  sr,
		ar:  ar,
		sjs: sjs,
		now: time.Now,
	}
}

func (c *SyncSchedulerJob) CheckDueUsers() {
	ctx := context.Background()

	settings, err := c.sr.ListAutoSyncEnabled(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	now := c.now()

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, setting := range settings {
		if !setting.Due(now) {
			continue
		}

		// Advance the run markers before enqueueing so a slow sync cannot be
		// picked up again on the next tick.
		nextRun := now.Add(time.Duration(setting.SyncIntervalMinutes) * time.Minute)
		if err := c.sr.AdvanceRun(ctx, setting.UserID, now, nextRun); err != nil {
			slog.Info(err.Error())
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(setting *models.SyncSetting) {
			defer wg.Done()
			defer func() { <-semaphore }()

			c.enqueueUserSyncs(ctx, setting.UserID)
		}(setting)
	}

	wg.Wait()
}

func (c *SyncSchedulerJob) enqueueUserSyncs(ctx context.Context, userID int64) {
	accounts, err := c.ar.ListActiveByUserID(ctx, userID)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, acc := range accounts {
		if _, err := c.sjs.TriggerSync(ctx, userID, acc.ID, false, 0, false); err != nil {
			slog.Info("unable to enqueue scheduled sync", "account_id", acc.ID, "error", err.Error())
		}
	}
}
