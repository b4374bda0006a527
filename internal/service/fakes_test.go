package service

import (
	"context"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/queue"
)

// In-memory repository fakes shared by the service tests.

type fakeSyncJobRepo struct {
	jobs   map[int64]*models.SyncJob
	nextID int64

	warnings map[int64]string
}

func newFakeSyncJobRepo() *fakeSyncJobRepo {
	return &fakeSyncJobRepo{
		jobs:     make(map[int64]*models.SyncJob),
		warnings: make(map[int64]string),
		nextID:   1,
	}
}

func (r *fakeSyncJobRepo) Create(ctx context.Context, job *models.SyncJob) (int64, error) {
	id := r.nextID
	r.nextID++
	stored := *job
	stored.ID = id
	stored.Status = models.JobStatusPending
	r.jobs[id] = &stored
	return id, nil
}

func (r *fakeSyncJobRepo) GetByID(ctx context.Context, id int64) (*models.SyncJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakeSyncJobRepo) FindActiveByAccount(ctx context.Context, accountID int64) (*models.SyncJob, error) {
	for _, job := range r.jobs {
		if job.PlatformAccountID == accountID && !job.Terminal() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSyncJobRepo) List(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error) {
	var out []*models.SyncJob
	for _, job := range r.jobs {
		if job.UserID != userID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		copied := *job
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeSyncJobRepo) DuePending(ctx context.Context, limit int) ([]queue.Record, error) {
	var out []queue.Record
	for _, job := range r.jobs {
		if job.Status == models.JobStatusPending {
			out = append(out, queue.Record{ID: job.ID, RetryCount: job.RetryCount, MaxRetries: job.MaxRetries})
		}
	}
	return out, nil
}

func (r *fakeSyncJobRepo) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	if r.jobs[id].Status != models.JobStatusPending {
		return false, nil
	}
	r.jobs[id].Status = models.JobStatusProcessing
	return true, nil
}

func (r *fakeSyncJobRepo) MarkCompleted(ctx context.Context, id int64) error {
	r.jobs[id].Status = models.JobStatusCompleted
	return nil
}

func (r *fakeSyncJobRepo) MarkRetry(ctx context.Context, id int64, retryCount int, message string) error {
	job := r.jobs[id]
	job.Status = models.JobStatusPending
	job.RetryCount = retryCount
	job.ErrorMessage.String = message
	job.ErrorMessage.Valid = true
	return nil
}

func (r *fakeSyncJobRepo) MarkFailed(ctx context.Context, id int64, message string) error {
	job := r.jobs[id]
	job.Status = models.JobStatusFailed
	job.ErrorMessage.String = message
	job.ErrorMessage.Valid = true
	return nil
}

func (r *fakeSyncJobRepo) ResetProcessing(ctx context.Context) (int64, error) {
	var n int64
	for _, job := range r.jobs {
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeSyncJobRepo) UpdateProgress(ctx context.Context, id int64, contributions, activities, yearsCompleted int) error {
	job := r.jobs[id]
	job.ContributionsSynced.Int32 = int32(contributions)
	job.ContributionsSynced.Valid = true
	job.ActivitiesSynced.Int32 = int32(activities)
	job.ActivitiesSynced.Valid = true
	job.YearsCompleted.Int32 = int32(yearsCompleted)
	job.YearsCompleted.Valid = true
	return nil
}

func (r *fakeSyncJobRepo) SetTotalYears(ctx context.Context, id int64, total int) error {
	r.jobs[id].TotalYears.Int32 = int32(total)
	r.jobs[id].TotalYears.Valid = true
	return nil
}

func (r *fakeSyncJobRepo) SetWarning(ctx context.Context, id int64, message string) error {
	r.warnings[id] = message
	return nil
}

func (r *fakeSyncJobRepo) Cancel(ctx context.Context, id int64) error {
	job := r.jobs[id]
	if job.Terminal() {
		return nil
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage.String = models.CancelledMarker
	job.ErrorMessage.Valid = true
	return nil
}

func (r *fakeSyncJobRepo) Delete(ctx context.Context, id int64) error {
	delete(r.jobs, id)
	return nil
}

type fakeAccountRepo struct {
	accounts map[int64]*models.PlatformAccount

	lastSynced map[int64]time.Time
	profiles   map[int64]*platform.Profile
}

func newFakeAccountRepo(accounts ...*models.PlatformAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{
		accounts:   make(map[int64]*models.PlatformAccount),
		lastSynced: make(map[int64]time.Time),
		profiles:   make(map[int64]*platform.Profile),
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.PlatformAccount) (int64, error) {
	id := int64(len(r.accounts) + 1)
	account.ID = id
	r.accounts[id] = account
	return id, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	var out []*models.PlatformAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListActiveByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	var out []*models.PlatformAccount
	for _, a := range r.accounts {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	a, ok := r.accounts[accountID]
	return ok && a.UserID == userID, nil
}

func (r *fakeAccountRepo) UpdateProfile(ctx context.Context, id int64, profile *platform.Profile) error {
	r.profiles[id] = profile
	return nil
}

func (r *fakeAccountRepo) UpdateToggles(ctx context.Context, id int64, isActive, syncContributions, syncProfile *bool) error {
	a := r.accounts[id]
	if isActive != nil {
		a.IsActive = *isActive
	}
	if syncContributions != nil {
		a.SyncContributions = *syncContributions
	}
	if syncProfile != nil {
		a.SyncProfile = *syncProfile
	}
	return nil
}

func (r *fakeAccountRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (r *fakeAccountRepo) SetLastSyncedAt(ctx context.Context, id int64, t time.Time) error {
	r.lastSynced[id] = t
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	delete(r.accounts, id)
	return nil
}

type fakeContributionRepo struct {
	rows    []*models.ContributionDay
	deletes []struct {
		accountID int64
		from, to  time.Time
	}
}

func newFakeContributionRepo() *fakeContributionRepo {
	return &fakeContributionRepo{}
}

func (r *fakeContributionRepo) DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error {
	r.deletes = append(r.deletes, struct {
		accountID int64
		from, to  time.Time
	}{accountID, from, to})

	var kept []*models.ContributionDay
	for _, row := range r.rows {
		if row.PlatformAccountID == accountID && !row.ContributionDate.Before(from) && !row.ContributionDate.After(to) {
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return nil
}

func (r *fakeContributionRepo) BulkInsert(ctx context.Context, days []*models.ContributionDay) error {
	r.rows = append(r.rows, days...)
	return nil
}

func (r *fakeContributionRepo) ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.ContributionDay, error) {
	var out []*models.ContributionDay
	for _, row := range r.rows {
		if row.PlatformAccountID == accountID && !row.ContributionDate.Before(from) && !row.ContributionDate.After(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeContributionRepo) ListByUserRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.ContributionDay, error) {
	return r.rows, nil
}

func (r *fakeContributionRepo) TotalByUser(ctx context.Context, userID int64) (int, error) {
	total := 0
	for _, row := range r.rows {
		total += row.Count
	}
	return total, nil
}

type fakeActivityRepo struct {
	rows           []*models.Activity
	deletedByType  []string
	deletedRanges int
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{}
}

func (r *fakeActivityRepo) Insert(ctx context.Context, activity *models.Activity) (int64, error) {
	activity.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, activity)
	return activity.ID, nil
}

func (r *fakeActivityRepo) DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error {
	r.deletedRanges++
	var kept []*models.Activity
	for _, row := range r.rows {
		if row.PlatformAccountID == accountID && !row.ActivityDate.Before(from) && !row.ActivityDate.After(to) {
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return nil
}

func (r *fakeActivityRepo) DeleteByType(ctx context.Context, accountID int64, activityType string) error {
	r.deletedByType = append(r.deletedByType, activityType)
	var kept []*models.Activity
	for _, row := range r.rows {
		if row.PlatformAccountID == accountID && row.ActivityType == activityType {
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return nil
}

func (r *fakeActivityRepo) ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Activity, error) {
	return r.rows, nil
}

func (r *fakeActivityRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Activity, error) {
	return r.rows, nil
}

func (r *fakeActivityRepo) CountRange(ctx context.Context, accountID int64, from, to time.Time) (int, error) {
	return len(r.rows), nil
}

type fakeGenerationJobRepo struct {
	jobs   map[int64]*models.GenerationJob
	nextID int64
}

func newFakeGenerationJobRepo() *fakeGenerationJobRepo {
	return &fakeGenerationJobRepo{
		jobs:   make(map[int64]*models.GenerationJob),
		nextID: 1,
	}
}

func (r *fakeGenerationJobRepo) Create(ctx context.Context, job *models.GenerationJob) (int64, error) {
	id := r.nextID
	r.nextID++
	stored := *job
	stored.ID = id
	stored.Status = models.JobStatusPending
	r.jobs[id] = &stored
	return id, nil
}

func (r *fakeGenerationJobRepo) GetByID(ctx context.Context, id int64) (*models.GenerationJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakeGenerationJobRepo) FindActiveByUser(ctx context.Context, userID int64) (*models.GenerationJob, error) {
	for _, job := range r.jobs {
		if job.UserID == userID && !job.Terminal() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeGenerationJobRepo) List(ctx context.Context, userID int64, limit int) ([]*models.GenerationJob, error) {
	var out []*models.GenerationJob
	for _, job := range r.jobs {
		if job.UserID == userID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeGenerationJobRepo) DuePending(ctx context.Context, limit int) ([]queue.Record, error) {
	var out []queue.Record
	for _, job := range r.jobs {
		if job.Status == models.JobStatusPending {
			out = append(out, queue.Record{ID: job.ID, RetryCount: job.RetryCount, MaxRetries: job.MaxRetries})
		}
	}
	return out, nil
}

func (r *fakeGenerationJobRepo) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	if r.jobs[id].Status != models.JobStatusPending {
		return false, nil
	}
	r.jobs[id].Status = models.JobStatusProcessing
	return true, nil
}

func (r *fakeGenerationJobRepo) MarkCompleted(ctx context.Context, id int64) error {
	r.jobs[id].Status = models.JobStatusCompleted
	return nil
}

func (r *fakeGenerationJobRepo) MarkRetry(ctx context.Context, id int64, retryCount int, message string) error {
	job := r.jobs[id]
	job.Status = models.JobStatusPending
	job.RetryCount = retryCount
	return nil
}

func (r *fakeGenerationJobRepo) MarkFailed(ctx context.Context, id int64, message string) error {
	job := r.jobs[id]
	job.Status = models.JobStatusFailed
	job.ErrorMessage.String = message
	job.ErrorMessage.Valid = true
	return nil
}

func (r *fakeGenerationJobRepo) ResetProcessing(ctx context.Context) (int64, error) {
	var n int64
	for _, job := range r.jobs {
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (r *fakeGenerationJobRepo) SetImageKey(ctx context.Context, id int64, key string) error {
	job := r.jobs[id]
	job.ImageKey.String = key
	job.ImageKey.Valid = true
	return nil
}

func (r *fakeGenerationJobRepo) Delete(ctx context.Context, id int64) error {
	delete(r.jobs, id)
	return nil
}

// fakeClient is a scriptable platform.Client.
type fakeClient struct {
	contributions []platform.ContributionDay
	activities    []platform.Activity
	repoCreations []platform.Activity
	prsAndIssues  []platform.Activity
	orgs          []platform.Organization
	profile       *platform.Profile

	activitiesErr error
	repoErr       error
	prErr         error
	profileErr    error

	contributionCalls int
}

func (c *fakeClient) FetchContributions(ctx context.Context, username, token string, from, to time.Time) ([]platform.ContributionDay, error) {
	c.contributionCalls++
	var out []platform.ContributionDay
	for _, d := range c.contributions {
		if !d.Date.Before(from) && !d.Date.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *fakeClient) FetchActivities(ctx context.Context, username, token string, from, to time.Time) ([]platform.Activity, error) {
	return c.activities, c.activitiesErr
}

func (c *fakeClient) FetchRepositoryCreationActivities(ctx context.Context, username, token string, from, to time.Time) ([]platform.Activity, error) {
	return c.repoCreations, c.repoErr
}

func (c *fakeClient) FetchPRAndIssueActivities(ctx context.Context, username, token string, from, to time.Time) ([]platform.Activity, error) {
	return c.prsAndIssues, c.prErr
}

func (c *fakeClient) FetchOrganizations(ctx context.Context, username, token string) ([]platform.Organization, error) {
	return c.orgs, nil
}

func (c *fakeClient) FetchUserProfile(ctx context.Context, username, token string) (*platform.Profile, error) {
	return c.profile, c.profileErr
}

func (c *fakeClient) ValidateToken(ctx context.Context, token string) (*platform.UserInfo, error) {
	return &platform.UserInfo{Username: "tester"}, nil
}
