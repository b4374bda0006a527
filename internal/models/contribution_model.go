package models

import (
	"database/sql"
	"time"
)

// ContributionDay is one (account, date) record of remote activity. Rows are
// never updated in place: a sync deletes the whole requested date window and
// re-inserts fresh rows.
type ContributionDay struct {
	ID                int64          `db:"id" json:"id"`
	PlatformAccountID int64          `db:"platform_account_id" json:"platform_account_id"`
	ContributionDate  time.Time      `db:"contribution_date" json:"contribution_date"`
	Count             int            `db:"count" json:"count"`
	RepositoryName    sql.NullString `db:"repository_name" json:"repository_name"`
	IsPrivateRepo     bool           `db:"is_private_repo" json:"is_private_repo"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
