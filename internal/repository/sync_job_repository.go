package repository

import (
	"context"
	"database/sql"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/queue"
)

type SyncJobRepository interface {
	queue.Store

	Create(ctx context.Context, job *models.SyncJob) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SyncJob, error)
	FindActiveByAccount(ctx context.Context, accountID int64) (*models.SyncJob, error)
	List(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error)
	UpdateProgress(ctx context.Context, id int64, contributions, activities, yearsCompleted int) error
	SetTotalYears(ctx context.Context, id int64, total int) error
	SetWarning(ctx context.Context, id int64, message string) error
	Cancel(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type syncJobRepository struct {
	db *sql.DB
}

func NewSyncJobRepository(db *sql.DB) SyncJobRepository {
	return &syncJobRepository{db: db}
}

const syncJobColumns = `id, user_id, platform_account_id, status,
	sync_all_years, specific_year,
	sync_contributions, sync_activities, sync_profile,
	scheduled_at, started_at, completed_at, error_message,
	retry_count, max_retries,
	contributions_synced, activities_synced, years_completed, total_years,
	is_manual, priority, created_at`

func scanSyncJob(row interface{ Scan(...any) error }) (*models.SyncJob, error) {
	var j models.SyncJob
	err := row.Scan(&j.ID, &j.UserID, &j.PlatformAccountID, &j.Status,
		&j.SyncAllYears, &j.SpecificYear,
		&j.SyncContributions, &j.SyncActivities, &j.SyncProfile,
		&j.ScheduledAt, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
		&j.RetryCount, &j.MaxRetries,
		&j.ContributionsSynced, &j.ActivitiesSynced, &j.YearsCompleted, &j.TotalYears,
		&j.IsManual, &j.Priority, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *syncJobRepository) Create(ctx context.Context, job *models.SyncJob) (int64, error) {
	query := `
		INSERT INTO sync_jobs (
			user_id,
			platform_account_id,
			status,
			sync_all_years,
			specific_year,
			sync_contributions,
			sync_activities,
			sync_profile,
			scheduled_at,
			max_retries,
			is_manual,
			priority
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		job.UserID,
		job.PlatformAccountID,
		models.JobStatusPending,
		job.SyncAllYears,
		job.SpecificYear,
		job.SyncContributions,
		job.SyncActivities,
		job.SyncProfile,
		job.ScheduledAt,
		job.MaxRetries,
		job.IsManual,
		job.Priority,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *syncJobRepository) GetByID(ctx context.Context, id int64) (*models.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE id = $1`
	job, err := scanSyncJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

// FindActiveByAccount returns the newest pending or processing job for the
// account, or nil when none exists. Used to deduplicate enqueues.
func (r *syncJobRepository) FindActiveByAccount(ctx context.Context, accountID int64) (*models.SyncJob, error) {
	query := `SELECT ` + syncJobColumns + `
		FROM sync_jobs
		WHERE platform_account_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanSyncJob(r.db.QueryRowContext(ctx, query, accountID,
		models.JobStatusPending, models.JobStatusProcessing))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *syncJobRepository) List(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error) {
	builder := sq.Select(syncJobColumns).
		From("sync_jobs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return jobs, nil
}

func (r *syncJobRepository) DuePending(ctx context.Context, limit int) ([]queue.Record, error) {
	query := `
		SELECT id, retry_count, max_retries
		FROM sync_jobs
		WHERE status = $1 AND scheduled_at <= CURRENT_TIMESTAMP
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []queue.Record
	for rows.Next() {
		var rec queue.Record
		if err := rows.Scan(&rec.ID, &rec.RetryCount, &rec.MaxRetries); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}

func (r *syncJobRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE sync_jobs
		SET status = $2, started_at = CURRENT_TIMESTAMP, error_message = NULL
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, models.JobStatusProcessing, models.JobStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}

func (r *syncJobRepository) MarkCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3
	`
	return r.exec(ctx, query, id, models.JobStatusCompleted, models.JobStatusProcessing)
}

func (r *syncJobRepository) MarkRetry(ctx context.Context, id int64, retryCount int, message string) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, retry_count = $3, error_message = $4, started_at = NULL
		WHERE id = $1 AND status = $5
	`
	return r.exec(ctx, query, id, models.JobStatusPending, retryCount, message, models.JobStatusProcessing)
}

func (r *syncJobRepository) MarkFailed(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, error_message = $3, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status <> $2
	`
	return r.exec(ctx, query, id, models.JobStatusFailed, message)
}

func (r *syncJobRepository) ResetProcessing(ctx context.Context) (int64, error) {
	query := `
		UPDATE sync_jobs
		SET status = $1, started_at = NULL, error_message = NULL
		WHERE status = $2
	`

	result, err := r.db.ExecContext(ctx, query, models.JobStatusPending, models.JobStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *syncJobRepository) UpdateProgress(ctx context.Context, id int64, contributions, activities, yearsCompleted int) error {
	query := `
		UPDATE sync_jobs
		SET contributions_synced = $2, activities_synced = $3, years_completed = $4
		WHERE id = $1
	`
	return r.exec(ctx, query, id, contributions, activities, yearsCompleted)
}

func (r *syncJobRepository) SetTotalYears(ctx context.Context, id int64, total int) error {
	query := `UPDATE sync_jobs SET total_years = $2 WHERE id = $1`
	return r.exec(ctx, query, id, total)
}

// SetWarning records a non-fatal problem without changing the job status. The
// job still completes; the message surfaces in the progress endpoint.
func (r *syncJobRepository) SetWarning(ctx context.Context, id int64, message string) error {
	query := `UPDATE sync_jobs SET error_message = $2 WHERE id = $1`
	return r.exec(ctx, query, id, message)
}

// Cancel marks a non-terminal job failed with the cancellation marker. A
// processing job keeps running until its executor observes the new status at
// the next year boundary.
func (r *syncJobRepository) Cancel(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, error_message = $3, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ($4, $5)
	`
	return r.exec(ctx, query, id, models.JobStatusFailed, models.CancelledMarker,
		models.JobStatusPending, models.JobStatusProcessing)
}

func (r *syncJobRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM sync_jobs WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *syncJobRepository) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
