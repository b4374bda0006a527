package models

import (
	"database/sql"
	"time"
)

// SyncSetting is the per-user scheduling state the background scheduler reads
// and advances.
type SyncSetting struct {
	ID                  int64        `db:"id" json:"id"`
	UserID              int64        `db:"user_id" json:"user_id"`
	AutoSyncEnabled     bool         `db:"auto_sync_enabled" json:"auto_sync_enabled"`
	SyncIntervalMinutes int          `db:"sync_interval_minutes" json:"sync_interval_minutes"`
	LastRunAt           sql.NullTime `db:"last_run_at" json:"last_run_at"`
	NextRunAt           sql.NullTime `db:"next_run_at" json:"next_run_at"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// Due reports whether the user's next automatic sync is owed at the given time.
// A user that has never run is always due.
func (s *SyncSetting) Due(now time.Time) bool {
	if !s.AutoSyncEnabled {
		return false
	}
	if !s.LastRunAt.Valid {
		return true
	}
	next := s.LastRunAt.Time.Add(time.Duration(s.SyncIntervalMinutes) * time.Minute)
	return !now.Before(next)
}
