package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/repository"
)

// UnknownRepository buckets commits whose repository the source API did not
// resolve. They still count toward month totals.
const UnknownRepository = "unknown"

// AggregationService turns fetched platform data into timeline rows. Commit
// days collapse into one row per calendar month; every other kind maps one to
// one.
type AggregationService interface {
	// CollectActivities fetches and buckets one window's activity rows
	// without touching the database. Commit months are built from the
	// day-level contribution set, not the events feed, because the events
	// feed only retains recent history.
	CollectActivities(ctx context.Context, account *models.PlatformAccount, client platform.Client, token string, days []platform.ContributionDay, from, to time.Time) ([]*models.Activity, []string, error)

	// ReplaceActivities swaps the stored [from, to] window for the given
	// rows in one delete and insert pass.
	ReplaceActivities(ctx context.Context, accountID int64, rows []*models.Activity, from, to time.Time) (int, error)

	SyncOrganizations(ctx context.Context, account *models.PlatformAccount, client platform.Client, token string) error
}

type aggregationService struct {
	actr repository.ActivityRepository
	now  func() time.Time
}

func NewAggregationService(actr repository.ActivityRepository) AggregationService {
	return &aggregationService{
		actr: actr,
		now:  time.Now,
	}
}

// fromDedicatedFeed reports whether the kind is served by its own feed. Such
// events also show up in the generic events feed and must be dropped from it,
// or repo creations and PRs would be stored twice.
func fromDedicatedFeed(activityType string) bool {
	switch activityType {
	case models.ActivityCommit,
		models.ActivityRepositoryCreated,
		models.ActivityPullRequest,
		models.ActivityIssue,
		models.ActivityOrganizationJoined:
		return true
	}
	return false
}

// CollectActivities merges the reduced generic feed with the dedicated repo
// and PR/issue feeds and month-buckets the contribution days. A failing
// dedicated feed is reported as a warning and the remaining sources still
// land.
func (s *aggregationService) CollectActivities(ctx context.Context, account *models.PlatformAccount, client platform.Client, token string, days []platform.ContributionDay, from, to time.Time) ([]*models.Activity, []string, error) {
	var raw []platform.Activity
	var warnings []string

	events, err := client.FetchActivities(ctx, account.PlatformUsername, token, from, to)
	if err != nil {
		return nil, warnings, fmt.Errorf("fetch activities: %w", err)
	}
	for _, ev := range events {
		if fromDedicatedFeed(ev.Type) {
			continue
		}
		raw = append(raw, ev)
	}

	repos, err := client.FetchRepositoryCreationActivities(ctx, account.PlatformUsername, token, from, to)
	if err != nil {
		slog.Info(err.Error())
		warnings = append(warnings, fmt.Sprintf("repository feed: %v", err))
	} else {
		raw = append(raw, repos...)
	}

	prs, err := client.FetchPRAndIssueActivities(ctx, account.PlatformUsername, token, from, to)
	if err != nil {
		slog.Info(err.Error())
		warnings = append(warnings, fmt.Sprintf("pr and issue feed: %v", err))
	} else {
		raw = append(raw, prs...)
	}

	return buildActivityRows(account.ID, days, raw, from, to), warnings, nil
}

// ReplaceActivities deletes the stored window and inserts the new rows, so
// reruns replace instead of duplicating.
func (s *aggregationService) ReplaceActivities(ctx context.Context, accountID int64, rows []*models.Activity, from, to time.Time) (int, error) {
	if err := s.actr.DeleteRange(ctx, accountID, from, to); err != nil {
		return 0, err
	}

	inserted := 0
	for _, row := range rows {
		if _, err := s.actr.Insert(ctx, row); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// buildActivityRows is the pure bucketing step. Contribution days merge per
// (month, repository) with the latest day carried as the row date; events
// outside [from, to] are dropped.
func buildActivityRows(accountID int64, days []platform.ContributionDay, events []platform.Activity, from, to time.Time) []*models.Activity {
	type monthKey struct {
		year  int
		month time.Month
	}

	type monthBucket struct {
		repos   map[string]int
		private map[string]bool
		total   int
		maxDate time.Time
	}

	buckets := make(map[monthKey]*monthBucket)
	var rows []*models.Activity

	for _, day := range days {
		if day.Count <= 0 || day.Date.Before(from) || day.Date.After(to) {
			continue
		}

		key := monthKey{year: day.Date.Year(), month: day.Date.Month()}
		bucket := buckets[key]
		if bucket == nil {
			bucket = &monthBucket{
				repos:   make(map[string]int),
				private: make(map[string]bool),
			}
			buckets[key] = bucket
		}

		name := day.RepositoryName
		if name == "" {
			name = UnknownRepository
		}

		bucket.repos[name] += day.Count
		bucket.total += day.Count
		if day.IsPrivate {
			bucket.private[name] = true
		}
		if day.Date.After(bucket.maxDate) {
			bucket.maxDate = day.Date
		}
	}

	for _, ev := range events {
		if ev.Date.Before(from) || ev.Date.After(to) {
			continue
		}
		if ev.Type == models.ActivityCommit {
			continue
		}
		rows = append(rows, activityRow(accountID, ev))
	}

	for key, bucket := range buckets {
		names := make([]string, 0, len(bucket.repos))
		for name := range bucket.repos {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if bucket.repos[names[i]] != bucket.repos[names[j]] {
				return bucket.repos[names[i]] > bucket.repos[names[j]]
			}
			return names[i] < names[j]
		})

		meta := models.CommitMonthMetadata{
			TotalCount: bucket.total,
			Year:       key.year,
			Month:      int(key.month),
		}
		anyPrivate := false
		for _, name := range names {
			meta.Repositories = append(meta.Repositories, models.RepositoryCommits{
				Name:        name,
				CommitCount: bucket.repos[name],
			})
			if bucket.private[name] {
				anyPrivate = true
			}
		}

		payload, err := json.Marshal(meta)
		if err != nil {
			slog.Info(err.Error())
			continue
		}

		rows = append(rows, &models.Activity{
			PlatformAccountID: accountID,
			ActivityType:      models.ActivityCommit,
			ActivityDate:      bucket.maxDate,
			Metadata:          payload,
			RepositoryName:    nullString(names[0]),
			IsPrivateRepo:     anyPrivate,
			Count:             bucket.total,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ActivityDate.Before(rows[j].ActivityDate)
	})
	return rows
}

func activityRow(accountID int64, ev platform.Activity) *models.Activity {
	count := ev.Count
	if count == 0 {
		count = 1
	}
	return &models.Activity{
		PlatformAccountID:     accountID,
		ActivityType:          ev.Type,
		ActivityDate:          ev.Date,
		Metadata:              ev.Metadata,
		RepositoryName:        nullString(ev.RepositoryName),
		RepositoryURL:         nullString(ev.RepositoryURL),
		IsPrivateRepo:         ev.IsPrivate,
		Count:                 count,
		PrimaryLanguage:       nullString(ev.PrimaryLanguage),
		OrganizationName:      nullString(ev.OrganizationName),
		OrganizationAvatarURL: nullString(ev.OrganizationAvatarURL),
	}
}

// SyncOrganizations rebuilds organization membership rows from scratch. The
// join date comes from the profile page when it is visible there, then from
// the earliest public event involving the org, then falls back to today.
func (s *aggregationService) SyncOrganizations(ctx context.Context, account *models.PlatformAccount, client platform.Client, token string) error {
	orgs, err := client.FetchOrganizations(ctx, account.PlatformUsername, token)
	if err != nil {
		return fmt.Errorf("fetch organizations: %w", err)
	}
	if len(orgs) == 0 {
		return nil
	}

	if err := s.actr.DeleteByType(ctx, account.ID, models.ActivityOrganizationJoined); err != nil {
		return err
	}

	gh, _ := client.(*platform.GitHubClient)

	for _, org := range orgs {
		joinDate := s.now()

		if gh != nil {
			if d, ok, err := gh.ScrapeOrgJoinDate(ctx, account.PlatformUsername, org.Login); err == nil && ok {
				joinDate = d
			} else if d, ok, err := gh.FindEarliestOrgEventDate(ctx, account.PlatformUsername, org.Login); err == nil && ok {
				joinDate = d
			}
		}

		row := &models.Activity{
			PlatformAccountID:     account.ID,
			ActivityType:          models.ActivityOrganizationJoined,
			ActivityDate:          joinDate,
			OrganizationName:      nullString(org.Login),
			OrganizationAvatarURL: nullString(org.AvatarURL),
			Count:                 1,
		}
		if _, err := s.actr.Insert(ctx, row); err != nil {
			return err
		}
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
