package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyankab28/contribsync/internal/models"
)

func newTestTimelineService(t *testing.T) (TimelineService, *fakeContributionRepo, *fakeActivityRepo) {
	t.Helper()
	cr := newFakeContributionRepo()
	actr := newFakeActivityRepo()
	return NewTimelineService(newFakeAccountRepo(testAccount(t, 1)), cr, actr), cr, actr
}

func TestAccountContributionsScopedToOwner(t *testing.T) {
	svc, cr, _ := newTestTimelineService(t)

	cr.rows = append(cr.rows, &models.ContributionDay{
		PlatformAccountID: 1,
		ContributionDate:  day(2026, time.March, 2),
		Count:             3,
	})

	from := day(2026, time.January, 1)
	to := day(2026, time.December, 31)

	days, err := svc.AccountContributions(context.Background(), 10, 1, from, to)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	_, err = svc.AccountContributions(context.Background(), 99, 1, from, to)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountActivitiesReturnsWindowWithTotal(t *testing.T) {
	svc, _, actr := newTestTimelineService(t)

	actr.rows = append(actr.rows,
		&models.Activity{PlatformAccountID: 1, ActivityType: models.ActivityFork, ActivityDate: day(2026, time.March, 2), Count: 1},
		&models.Activity{PlatformAccountID: 1, ActivityType: models.ActivityStar, ActivityDate: day(2026, time.April, 5), Count: 1},
	)

	window, err := svc.AccountActivities(context.Background(), 10, 1, day(2026, time.January, 1), day(2026, time.December, 31))
	require.NoError(t, err)
	assert.Len(t, window.Activities, 2)
	assert.Equal(t, 2, window.Total)

	_, err = svc.AccountActivities(context.Background(), 99, 1, day(2026, time.January, 1), day(2026, time.December, 31))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUserActivitiesClampsLimit(t *testing.T) {
	svc, _, actr := newTestTimelineService(t)

	actr.rows = append(actr.rows, &models.Activity{
		PlatformAccountID: 1,
		ActivityType:      models.ActivityRelease,
		ActivityDate:      day(2026, time.May, 1),
		Count:             1,
	})

	activities, err := svc.UserActivities(context.Background(), 10, -5)
	require.NoError(t, err)
	assert.Len(t, activities, 1)
}

func TestContributionSummaryTotals(t *testing.T) {
	svc, cr, _ := newTestTimelineService(t)

	cr.rows = append(cr.rows,
		&models.ContributionDay{PlatformAccountID: 1, ContributionDate: day(2026, time.March, 2), Count: 3},
		&models.ContributionDay{PlatformAccountID: 1, ContributionDate: day(2026, time.March, 3), Count: 4},
	)

	summary, err := svc.ContributionSummary(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.TotalContributions)
}
