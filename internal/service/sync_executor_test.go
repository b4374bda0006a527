package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/queue"
	"github.com/priyankab28/contribsync/pkg/utils"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testAccount(t *testing.T, id int64) *models.PlatformAccount {
	t.Helper()

	token, err := utils.Encrypt([]byte("gh-token"), testKey)
	require.NoError(t, err)

	return &models.PlatformAccount{
		ID:                id,
		UserID:            10,
		Platform:          models.PlatformGitHub,
		PlatformUsername:  "octocat",
		AccessToken:       sql.NullString{String: token, Valid: true},
		IsActive:          true,
		SyncContributions: true,
		SyncProfile:       true,
	}
}

func newTestExecutor(jr *fakeSyncJobRepo, ar *fakeAccountRepo, cr *fakeContributionRepo, actr *fakeActivityRepo, gr *fakeGenerationJobRepo, client platform.Client, now time.Time) *SyncExecutor {
	agg := &aggregationService{actr: actr, now: func() time.Time { return now }}
	gjs := NewGenerationJobService(gr)

	e := NewSyncExecutor(jr, ar, cr, agg, gjs, testKey)
	e.yearDelay = 0
	e.now = func() time.Time { return now }
	e.newClient = func(platformKind, instanceURL string) (platform.Client, error) {
		return client, nil
	}
	return e
}

func TestExecuteSyncsCurrentYear(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	jr := newFakeSyncJobRepo()
	ar := newFakeAccountRepo(testAccount(t, 1))
	cr := newFakeContributionRepo()
	actr := newFakeActivityRepo()
	gr := newFakeGenerationJobRepo()

	client := &fakeClient{
		contributions: []platform.ContributionDay{
			{Date: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), Count: 3, RepositoryName: "octocat/hello"},
			{Date: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), Count: 2},
			{Date: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), Count: 9},
		},
		profile: &platform.Profile{DisplayName: "The Octocat"},
	}

	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncContributions: true,
		SyncActivities:    true,
		SyncProfile:       true,
		MaxRetries:        3,
	})
	require.NoError(t, err)

	e := newTestExecutor(jr, ar, cr, actr, gr, client, now)
	require.NoError(t, e.Execute(context.Background(), jobID))

	// Only the two 2026 days land; the 2025 one is outside the window.
	assert.Len(t, cr.rows, 2)

	// Commit months are built from the day-level set, so they exist even
	// though the events feed returned nothing.
	commitMonths := 0
	for _, row := range actr.rows {
		if row.ActivityType == models.ActivityCommit {
			commitMonths++
		}
	}
	assert.Equal(t, 2, commitMonths)

	job, _ := jr.GetByID(context.Background(), jobID)
	assert.Equal(t, int32(5), job.ContributionsSynced.Int32)
	assert.Equal(t, int32(1), job.TotalYears.Int32)
	assert.Equal(t, int32(1), job.YearsCompleted.Int32)

	// Profile sync and bookkeeping.
	require.Contains(t, ar.profiles, int64(1))
	assert.Equal(t, "The Octocat", ar.profiles[1].DisplayName)
	assert.Contains(t, ar.lastSynced, int64(1))

	// A regeneration was enqueued for the user.
	gen, err := gr.FindActiveByUser(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, gen)
}

func TestExecuteAllYearsWalksFromEpoch(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	jr := newFakeSyncJobRepo()
	ar := newFakeAccountRepo(testAccount(t, 1))
	cr := newFakeContributionRepo()
	gr := newFakeGenerationJobRepo()
	client := &fakeClient{}

	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncAllYears:      true,
		SyncContributions: true,
		MaxRetries:        3,
	})
	require.NoError(t, err)

	// A stale mid-window row from a previous sync must not survive.
	cr.rows = append(cr.rows, &models.ContributionDay{
		PlatformAccountID: 1,
		ContributionDate:  time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC),
		Count:             4,
	})

	e := newTestExecutor(jr, ar, cr, newFakeActivityRepo(), gr, client, now)
	require.NoError(t, e.Execute(context.Background(), jobID))

	// 2020 through 2026 inclusive.
	assert.Equal(t, 7, client.contributionCalls)

	job, _ := jr.GetByID(context.Background(), jobID)
	assert.Equal(t, int32(7), job.TotalYears.Int32)
	assert.Equal(t, int32(7), job.YearsCompleted.Int32)

	// The whole requested window is replaced in a single delete, after every
	// year has been fetched.
	require.Len(t, cr.deletes, 1)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), cr.deletes[0].from)
	assert.Equal(t, 2026, cr.deletes[0].to.Year())
	assert.Equal(t, time.June, cr.deletes[0].to.Month())
	assert.Empty(t, cr.rows)
}

func TestExecuteFailsClosedOnBadCredential(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	account := testAccount(t, 1)
	account.AccessToken = sql.NullString{String: "not-valid-ciphertext", Valid: true}

	jr := newFakeSyncJobRepo()
	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncContributions: true,
		MaxRetries:        3,
	})
	require.NoError(t, err)

	e := newTestExecutor(jr, newFakeAccountRepo(account), newFakeContributionRepo(), newFakeActivityRepo(), newFakeGenerationJobRepo(), &fakeClient{}, now)

	err = e.Execute(context.Background(), jobID)
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrPermanent)
}

func TestExecuteStopsWhenJobCancelled(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	jr := newFakeSyncJobRepo()
	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncContributions: true,
		MaxRetries:        3,
	})
	require.NoError(t, err)
	require.NoError(t, jr.Cancel(context.Background(), jobID))

	e := newTestExecutor(jr, newFakeAccountRepo(testAccount(t, 1)), newFakeContributionRepo(), newFakeActivityRepo(), newFakeGenerationJobRepo(), &fakeClient{}, now)

	err = e.Execute(context.Background(), jobID)
	assert.ErrorIs(t, err, queue.ErrCancelled)
}

func TestExecuteSkipsInactiveAccount(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	account := testAccount(t, 1)
	account.IsActive = false

	jr := newFakeSyncJobRepo()
	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncContributions: true,
		MaxRetries:        3,
	})
	require.NoError(t, err)

	cr := newFakeContributionRepo()
	e := newTestExecutor(jr, newFakeAccountRepo(account), cr, newFakeActivityRepo(), newFakeGenerationJobRepo(), &fakeClient{}, now)

	require.NoError(t, e.Execute(context.Background(), jobID))
	assert.Empty(t, cr.rows)
}

func TestExecuteRecordsWarningOnPartialFeedFailure(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	jr := newFakeSyncJobRepo()
	jobID, err := jr.Create(context.Background(), &models.SyncJob{
		UserID:            10,
		PlatformAccountID: 1,
		SyncActivities:    true,
		MaxRetries:        3,
	})
	require.NoError(t, err)

	client := &fakeClient{
		contributions: []platform.ContributionDay{
			{Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), RepositoryName: "octocat/hello", Count: 4},
		},
		activities: []platform.Activity{
			{Type: models.ActivityStar, Date: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), RepositoryName: "octocat/hello"},
		},
		repoErr: assert.AnError,
	}

	actr := newFakeActivityRepo()
	e := newTestExecutor(jr, newFakeAccountRepo(testAccount(t, 1)), newFakeContributionRepo(), actr, newFakeGenerationJobRepo(), client, now)

	require.NoError(t, e.Execute(context.Background(), jobID))

	// The healthy feed still landed and the failure surfaced as a warning.
	assert.NotEmpty(t, actr.rows)
	require.Contains(t, jr.warnings, jobID)
	assert.Contains(t, jr.warnings[jobID], "completed with warnings")
}

func TestYearWindow(t *testing.T) {
	e := &SyncExecutor{now: func() time.Time {
		return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	}}

	from, to := e.yearWindow(2024)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.December, to.Month())
	assert.Equal(t, 31, to.Day())

	from, to = e.yearWindow(2026)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.June, to.Month())
	assert.Equal(t, 15, to.Day())
}

func TestJobYears(t *testing.T) {
	e := &SyncExecutor{now: func() time.Time {
		return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	}}

	all := e.jobYears(&models.SyncJob{SyncAllYears: true})
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024, 2025, 2026}, all)

	specific := e.jobYears(&models.SyncJob{SpecificYear: sql.NullInt32{Int32: 2023, Valid: true}})
	assert.Equal(t, []int{2023}, specific)

	current := e.jobYears(&models.SyncJob{})
	assert.Equal(t, []int{2026}, current)
}
