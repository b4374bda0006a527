package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

const (
	ActivityCommit             = "commit"
	ActivityRepositoryCreated  = "repository_created"
	ActivityPullRequest        = "pull_request"
	ActivityIssue              = "issue"
	ActivityReview             = "review"
	ActivityOrganizationJoined = "organization_joined"
	ActivityFork               = "fork"
	ActivityRelease            = "release"
	ActivityStar               = "star"
)

// Activity is a derived timeline row. Commits are aggregated into one row per
// (account, calendar month); every other kind is one row per event.
type Activity struct {
	ID                int64           `db:"id" json:"id"`
	PlatformAccountID int64           `db:"platform_account_id" json:"platform_account_id"`
	ActivityType      string          `db:"activity_type" json:"activity_type"`
	ActivityDate      time.Time       `db:"activity_date" json:"activity_date"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata"`
	RepositoryName    sql.NullString  `db:"repository_name" json:"repository_name"`
	RepositoryURL     sql.NullString  `db:"repository_url" json:"repository_url"`
	IsPrivateRepo     bool            `db:"is_private_repo" json:"is_private_repo"`
	Count             int             `db:"count" json:"count"`
	PrimaryLanguage   sql.NullString  `db:"primary_language" json:"primary_language"`
	OrganizationName  sql.NullString  `db:"organization_name" json:"organization_name"`
	OrganizationAvatarURL sql.NullString `db:"organization_avatar_url" json:"organization_avatar_url"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// CommitMonthMetadata is the JSON payload of a month-aggregated commit row.
type CommitMonthMetadata struct {
	Repositories []RepositoryCommits `json:"repositories"`
	TotalCount   int                 `json:"total_count"`
	Year         int                 `json:"year"`
	Month        int                 `json:"month"`
}

type RepositoryCommits struct {
	Name        string `json:"name"`
	CommitCount int    `json:"commit_count"`
}
