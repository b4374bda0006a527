package job

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/transfer"
)

type fakeSettingRepo struct {
	settings []*models.SyncSetting

	mu       sync.Mutex
	advanced map[int64]time.Time
}

func (r *fakeSettingRepo) GetByUserID(ctx context.Context, userID int64) (*models.SyncSetting, error) {
	return nil, nil
}

func (r *fakeSettingRepo) ListAutoSyncEnabled(ctx context.Context) ([]*models.SyncSetting, error) {
	return r.settings, nil
}

func (r *fakeSettingRepo) Upsert(ctx context.Context, setting *models.SyncSetting) error {
	return nil
}

func (r *fakeSettingRepo) AdvanceRun(ctx context.Context, userID int64, lastRun, nextRun time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advanced == nil {
		r.advanced = make(map[int64]time.Time)
	}
	r.advanced[userID] = lastRun
	return nil
}

type fakeAccountRepo struct {
	accounts []*models.PlatformAccount
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.PlatformAccount) (int64, error) {
	return 0, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	return r.accounts, nil
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
	return true, nil
}

func (r *fakeAccountRepo) UpdateProfile(ctx context.Context, id int64, profile *platform.Profile) error {
	return nil
}

func (r *fakeAccountRepo) UpdateToggles(ctx context.Context, id int64, isActive, syncContributions, syncProfile *bool) error {
	return nil
}

func (r *fakeAccountRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (r *fakeAccountRepo) SetLastSyncedAt(ctx context.Context, id int64, t time.Time) error {
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type fakeSyncJobService struct {
	mu        sync.Mutex
	triggered []int64
}

func (s *fakeSyncJobService) TriggerSync(ctx context.Context, userID, accountID int64, allYears bool, specificYear int, manual bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggered = append(s.triggered, accountID)
	return int64(len(s.triggered)), nil
}

func (s *fakeSyncJobService) GetJob(ctx context.Context, userID, jobID int64) (*models.SyncJob, error) {
	return nil, nil
}

func (s *fakeSyncJobService) ListJobs(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error) {
	return nil, nil
}

func (s *fakeSyncJobService) Progress(ctx context.Context, userID, jobID int64) (*transfer.JobProgressResponse, error) {
	return nil, nil
}

func (s *fakeSyncJobService) CancelJob(ctx context.Context, userID, jobID int64) error {
	return nil
}

func (s *fakeSyncJobService) DeleteJob(ctx context.Context, userID, jobID int64) error {
	return nil
}

func TestCheckDueUsersEnqueuesActiveAccounts(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	sr := &fakeSettingRepo{
		settings: []*models.SyncSetting{
			{UserID: 10, AutoSyncEnabled: true, SyncIntervalMinutes: 60},
			{
				UserID:              11,
				AutoSyncEnabled:     true,
				SyncIntervalMinutes: 60,
				LastRunAt:           sql.NullTime{Time: now.Add(-5 * time.Minute), Valid: true},
			},
		},
	}
	ar := &fakeAccountRepo{
		accounts: []*models.PlatformAccount{
			{ID: 1, UserID: 10, IsActive: true},
			{ID: 2, UserID: 10, IsActive: false},
			{ID: 3, UserID: 11, IsActive: true},
		},
	}
	sjs := &fakeSyncJobService{}

	j := NewSyncSchedulerJob(sr, ar, sjs)
	j.now = func() time.Time { return now }
	j.CheckDueUsers()

	// User 10 was due and has one active account; user 11 ran 5 minutes ago.
	require.Len(t, sjs.triggered, 1)
	assert.Equal(t, int64(1), sjs.triggered[0])

	// The run markers advanced before enqueueing.
	assert.Contains(t, sr.advanced, int64(10))
	assert.NotContains(t, sr.advanced, int64(11))
}

func TestCheckDueUsersSkipsDisabled(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	sr := &fakeSettingRepo{
		settings: []*models.SyncSetting{
			{UserID: 10, AutoSyncEnabled: false, SyncIntervalMinutes: 60},
		},
	}
	sjs := &fakeSyncJobService{}

	j := NewSyncSchedulerJob(sr, &fakeAccountRepo{}, sjs)
	j.now = func() time.Time { return now }
	j.CheckDueUsers()

	assert.Empty(t, sjs.triggered)
}
