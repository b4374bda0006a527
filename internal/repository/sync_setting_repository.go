package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

type SyncSettingRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.SyncSetting, error)
	ListAutoSyncEnabled(ctx context.Context) ([]*models.SyncSetting, error)
	Upsert(ctx context.Context, setting *models.SyncSetting) error
	AdvanceRun(ctx context.Context, userID int64, lastRun, nextRun time.Time) error
}

type syncSettingRepository struct {
	db *sql.DB
}

func NewSyncSettingRepository(db *sql.DB) SyncSettingRepository {
	return &syncSettingRepository{db: db}
}

const syncSettingColumns = `id, user_id, auto_sync_enabled, sync_interval_minutes,
	last_run_at, next_run_at, created_at, updated_at`

func scanSyncSetting(row interface{ Scan(...any) error }) (*models.SyncSetting, error) {
	var s models.SyncSetting
	err := row.Scan(&s.ID, &s.UserID, &s.AutoSyncEnabled, &s.SyncIntervalMinutes,
		&s.LastRunAt, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *syncSettingRepository) GetByUserID(ctx context.Context, userID int64) (*models.SyncSetting, error) {
	query := `SELECT ` + syncSettingColumns + ` FROM sync_settings WHERE user_id = $1`
	setting, err := scanSyncSetting(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return setting, nil
}

func (r *syncSettingRepository) ListAutoSyncEnabled(ctx context.Context) ([]*models.SyncSetting, error) {
	query := `SELECT ` + syncSettingColumns + ` FROM sync_settings WHERE auto_sync_enabled = TRUE`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var settings []*models.SyncSetting
	for rows.Next() {
		setting, err := scanSyncSetting(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return settings, nil
}

func (r *syncSettingRepository) Upsert(ctx context.Context, setting *models.SyncSetting) error {
	query := `
		INSERT INTO sync_settings (user_id, auto_sync_enabled, sync_interval_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET auto_sync_enabled = EXCLUDED.auto_sync_enabled,
			sync_interval_minutes = EXCLUDED.sync_interval_minutes,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, setting.UserID, setting.AutoSyncEnabled, setting.SyncIntervalMinutes)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// AdvanceRun stamps the run markers before jobs are enqueued, so a user is
// never picked up twice while their sync is still in flight.
func (r *syncSettingRepository) AdvanceRun(ctx context.Context, userID int64, lastRun, nextRun time.Time) error {
	query := `
		UPDATE sync_settings
		SET last_run_at = $2, next_run_at = $3, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, userID, lastRun, nextRun)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
