package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/queue"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/pkg/utils"
)

// yearFetchDelay spaces out per-year API passes so multi-year backfills stay
// inside platform rate limits.
const yearFetchDelay = 2 * time.Second

// SyncExecutor runs one sync job end to end: decrypt credentials, fetch the
// requested years oldest first, replace the whole requested window in one
// pass, then refresh the profile and enqueue a regeneration.
type SyncExecutor struct {
	jr  repository.SyncJobRepository
	ar  repository.PlatformAccountRepository
	cr  repository.ContributionRepository
	agg AggregationService
	gjs GenerationJobService

	encryptionKey []byte
	yearDelay     time.Duration
	now           func() time.Time
	newClient     func(platformKind, instanceURL string) (platform.Client, error)
}

func NewSyncExecutor(
	jr repository.SyncJobRepository,
	ar repository.PlatformAccountRepository,
	cr repository.ContributionRepository,
	agg AggregationService,
	gjs GenerationJobService,
	encryptionKey []byte,
) *SyncExecutor {
	return &SyncExecutor{
		jr:            jr,
		ar:            ar,
		cr:            cr,
		agg:           agg,
		gjs:           gjs,
		encryptionKey: encryptionKey,
		yearDelay:     yearFetchDelay,
		now:           time.Now,
		newClient:     platform.NewClient,
	}
}

func (e *SyncExecutor) Execute(ctx context.Context, jobID int64) error {
	job, err := e.jr.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: sync job %d not found", queue.ErrPermanent, jobID)
	}
	if job.Cancelled() {
		return queue.ErrCancelled
	}

	account, err := e.ar.GetByID(ctx, job.PlatformAccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: platform account %d not found", queue.ErrPermanent, job.PlatformAccountID)
	}
	if !account.IsActive {
		slog.Info("skipping sync for inactive account", "account_id", account.ID)
		return nil
	}
	if !account.AccessToken.Valid {
		return fmt.Errorf("%w: account %d has no access token", queue.ErrPermanent, account.ID)
	}

	// A credential that no longer decrypts will not start decrypting on a
	// retry. Fail closed immediately.
	token, err := utils.Decrypt(account.AccessToken.String, e.encryptionKey)
	if err != nil {
		return fmt.Errorf("%w: decrypt access token: %v", queue.ErrPermanent, err)
	}

	client, err := e.newClient(account.Platform, account.PlatformURL.String)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}

	years := e.jobYears(job)
	if err := e.jr.SetTotalYears(ctx, jobID, len(years)); err != nil {
		return err
	}

	windowFrom, _ := e.yearWindow(years[0])
	_, windowTo := e.yearWindow(years[len(years)-1])

	var dayRows []*models.ContributionDay
	var activityRows []*models.Activity
	var contributionsTotal int
	var warnings []string

	for i, year := range years {
		if i > 0 {
			if err := sleepCtx(ctx, e.yearDelay); err != nil {
				return err
			}
		}

		// Cancellation lands between years, never mid-year.
		fresh, err := e.jr.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if fresh == nil || fresh.Cancelled() {
			return queue.ErrCancelled
		}

		from, to := e.yearWindow(year)

		// The day-level set feeds both the contribution rows and the commit
		// month buckets, so it is fetched for either toggle.
		var days []platform.ContributionDay
		if job.SyncContributions || job.SyncActivities {
			days, err = client.FetchContributions(ctx, account.PlatformUsername, token, from, to)
			if err != nil {
				return fmt.Errorf("year %d: fetch contributions: %w", year, err)
			}
		}

		if job.SyncContributions {
			for _, d := range days {
				dayRows = append(dayRows, &models.ContributionDay{
					PlatformAccountID: account.ID,
					ContributionDate:  d.Date,
					Count:             d.Count,
					RepositoryName:    nullString(d.RepositoryName),
					IsPrivateRepo:     d.IsPrivate,
				})
				contributionsTotal += d.Count
			}
		}

		if job.SyncActivities {
			rows, warns, err := e.agg.CollectActivities(ctx, account, client, token, days, from, to)
			if err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
			activityRows = append(activityRows, rows...)
			for _, w := range warns {
				warnings = append(warnings, fmt.Sprintf("year %d: %s", year, w))
			}
		}

		if err := e.jr.UpdateProgress(ctx, jobID, contributionsTotal, len(activityRows), i+1); err != nil {
			slog.Info(err.Error())
		}
	}

	// All years are fetched before anything is replaced, so a mid-run failure
	// never leaves fresh early years next to stale late ones.
	if job.SyncContributions {
		if err := e.cr.DeleteRange(ctx, account.ID, windowFrom, windowTo); err != nil {
			return err
		}
		if err := e.cr.BulkInsert(ctx, dayRows); err != nil {
			return err
		}
	}

	if job.SyncActivities {
		if _, err := e.agg.ReplaceActivities(ctx, account.ID, activityRows, windowFrom, windowTo); err != nil {
			return err
		}
	}

	if job.SyncActivities {
		if err := e.agg.SyncOrganizations(ctx, account, client, token); err != nil {
			slog.Info(err.Error())
			warnings = append(warnings, fmt.Sprintf("organizations: %v", err))
		}
	}

	if job.SyncProfile && account.SyncProfile {
		profile, err := client.FetchUserProfile(ctx, account.PlatformUsername, token)
		if err != nil {
			slog.Info(err.Error())
			warnings = append(warnings, fmt.Sprintf("profile: %v", err))
		} else if profile != nil {
			if err := e.ar.UpdateProfile(ctx, account.ID, profile); err != nil {
				warnings = append(warnings, fmt.Sprintf("profile: %v", err))
			}
		}
	}

	if err := e.ar.SetLastSyncedAt(ctx, account.ID, e.now()); err != nil {
		slog.Info(err.Error())
	}

	if _, err := e.gjs.TriggerGeneration(ctx, job.UserID, nil, false); err != nil {
		slog.Info(err.Error())
	}

	if len(warnings) > 0 {
		message := "completed with warnings: " + strings.Join(warnings, "; ")
		if err := e.jr.SetWarning(ctx, jobID, message); err != nil {
			slog.Info(err.Error())
		}
	}

	return nil
}

// jobYears resolves the requested scope to an ascending year list. All-years
// requests are floored so accounts older than the product do not trigger
// unbounded backfills.
func (e *SyncExecutor) jobYears(job *models.SyncJob) []int {
	current := e.now().Year()

	if job.SyncAllYears {
		var years []int
		for y := models.SyncEpochYear; y <= current; y++ {
			years = append(years, y)
		}
		return years
	}

	if job.SpecificYear.Valid {
		return []int{int(job.SpecificYear.Int32)}
	}

	return []int{current}
}

// yearWindow is [Jan 1, Dec 31] for past years and [Jan 1, today] for the
// current one, so a rerun never deletes days it cannot refetch yet.
func (e *SyncExecutor) yearWindow(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	now := e.now().UTC()
	if year == now.Year() {
		to = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	}
	return from, to
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ queue.Executor = (*SyncExecutor)(nil)

// ErrJobNotFound is returned by job lookups scoped to a user when the row does
// not exist or belongs to someone else.
var ErrJobNotFound = errors.New("job not found")
