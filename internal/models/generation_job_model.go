package models

import (
	"database/sql"
	"strings"
	"time"
)

// GenerationJob drives heatmap image regeneration. It shares the sync job's
// state machine but is queued and retried independently.
type GenerationJob struct {
	ID      int64         `db:"id" json:"id"`
	UserID  int64         `db:"user_id" json:"user_id"`
	ThemeID sql.NullInt64 `db:"theme_id" json:"theme_id"`

	Status string `db:"status" json:"status"`

	ScheduledAt  time.Time      `db:"scheduled_at" json:"scheduled_at"`
	StartedAt    sql.NullTime   `db:"started_at" json:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message" json:"error_message"`

	RetryCount int `db:"retry_count" json:"retry_count"`
	MaxRetries int `db:"max_retries" json:"max_retries"`

	// Object key of the rendered image, set on success.
	ImageKey sql.NullString `db:"image_key" json:"image_key"`

	IsManual  bool      `db:"is_manual" json:"is_manual"`
	Priority  int       `db:"priority" json:"priority"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (j *GenerationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
