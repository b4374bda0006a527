package models

import (
	"database/sql"
	"time"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	// Floor year for all-years syncs.
	SyncEpochYear = 2020

	PriorityAutomatic = 0
	PriorityManual    = 10

	DefaultMaxRetries = 3
)

// CancelledMarker distinguishes user cancellation from genuine failures in the
// error_message column; the retry logic must never re-queue a job carrying it.
const CancelledMarker = "cancelled by user"

type SyncJob struct {
	ID                int64  `db:"id" json:"id"`
	UserID            int64  `db:"user_id" json:"user_id"`
	PlatformAccountID int64  `db:"platform_account_id" json:"platform_account_id"`
	Status            string `db:"status" json:"status"`

	// Requested scope: all years, one specific year, or (neither set) the current year.
	SyncAllYears bool          `db:"sync_all_years" json:"sync_all_years"`
	SpecificYear sql.NullInt32 `db:"specific_year" json:"specific_year"`

	SyncContributions bool `db:"sync_contributions" json:"sync_contributions"`
	SyncActivities    bool `db:"sync_activities" json:"sync_activities"`
	SyncProfile       bool `db:"sync_profile" json:"sync_profile"`

	ScheduledAt  time.Time    `db:"scheduled_at" json:"scheduled_at"`
	StartedAt    sql.NullTime `db:"started_at" json:"started_at"`
	CompletedAt  sql.NullTime `db:"completed_at" json:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message" json:"error_message"`

	RetryCount int `db:"retry_count" json:"retry_count"`
	MaxRetries int `db:"max_retries" json:"max_retries"`

	ContributionsSynced sql.NullInt32 `db:"contributions_synced" json:"contributions_synced"`
	ActivitiesSynced    sql.NullInt32 `db:"activities_synced" json:"activities_synced"`
	YearsCompleted      sql.NullInt32 `db:"years_completed" json:"years_completed"`
	TotalYears          sql.NullInt32 `db:"total_years" json:"total_years"`

	IsManual  bool      `db:"is_manual" json:"is_manual"`
	Priority  int       `db:"priority" json:"priority"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Terminal reports whether the job can no longer run. Completed and Failed are
// final; everything else may still reach the worker.
func (j *SyncJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func (j *SyncJob) Cancelled() bool {
	return j.Status == JobStatusFailed && j.ErrorMessage.Valid &&
		containsFold(j.ErrorMessage.String, "cancelled")
}
