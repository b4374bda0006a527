package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/queue"
)

type GenerationJobRepository interface {
	queue.Store

	Create(ctx context.Context, job *models.GenerationJob) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.GenerationJob, error)
	FindActiveByUser(ctx context.Context, userID int64) (*models.GenerationJob, error)
	List(ctx context.Context, userID int64, limit int) ([]*models.GenerationJob, error)
	SetImageKey(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

type generationJobRepository struct {
	db *sql.DB
}

func NewGenerationJobRepository(db *sql.DB) GenerationJobRepository {
	return &generationJobRepository{db: db}
}

const generationJobColumns = `id, user_id, theme_id, status,
	scheduled_at, started_at, completed_at, error_message,
	retry_count, max_retries, image_key, is_manual, priority, created_at`

func scanGenerationJob(row interface{ Scan(...any) error }) (*models.GenerationJob, error) {
	var j models.GenerationJob
	err := row.Scan(&j.ID, &j.UserID, &j.ThemeID, &j.Status,
		&j.ScheduledAt, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
		&j.RetryCount, &j.MaxRetries, &j.ImageKey, &j.IsManual, &j.Priority, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *generationJobRepository) Create(ctx context.Context, job *models.GenerationJob) (int64, error) {
	query := `
		INSERT INTO generation_jobs (
			user_id,
			theme_id,
			status,
			scheduled_at,
			max_retries,
			is_manual,
			priority
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		job.UserID,
		job.ThemeID,
		models.JobStatusPending,
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

func (r *generationJobRepository) GetByID(ctx context.Context, id int64) (*models.GenerationJob, error) {
	query := `SELECT ` + generationJobColumns + ` FROM generation_jobs WHERE id = $1`
	job, err := scanGenerationJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *generationJobRepository) FindActiveByUser(ctx context.Context, userID int64) (*models.GenerationJob, error) {
	query := `SELECT ` + generationJobColumns + `
		FROM generation_jobs
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanGenerationJob(r.db.QueryRowContext(ctx, query, userID,
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

func (r *generationJobRepository) List(ctx context.Context, userID int64, limit int) ([]*models.GenerationJob, error) {
	query := `SELECT ` + generationJobColumns + `
		FROM generation_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := scanGenerationJob(rows)
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

func (r *generationJobRepository) DuePending(ctx context.Context, limit int) ([]queue.Record, error) {
	query := `
		SELECT id, retry_count, max_retries
		FROM generation_jobs
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

func (r *generationJobRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE generation_jobs
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

func (r *generationJobRepository) MarkCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3
	`
	return r.exec(ctx, query, id, models.JobStatusCompleted, models.JobStatusProcessing)
}

func (r *generationJobRepository) MarkRetry(ctx context.Context, id int64, retryCount int, message string) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, retry_count = $3, error_message = $4, started_at = NULL
		WHERE id = $1 AND status = $5
	`
	return r.exec(ctx, query, id, models.JobStatusPending, retryCount, message, models.JobStatusProcessing)
}

func (r *generationJobRepository) MarkFailed(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, error_message = $3, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status <> $2
	`
	return r.exec(ctx, query, id, models.JobStatusFailed, message)
}

func (r *generationJobRepository) ResetProcessing(ctx context.Context) (int64, error) {
	query := `
		UPDATE generation_jobs
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

func (r *generationJobRepository) SetImageKey(ctx context.Context, id int64, key string) error {
	query := `UPDATE generation_jobs SET image_key = $2 WHERE id = $1`
	return r.exec(ctx, query, id, key)
}

func (r *generationJobRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM generation_jobs WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *generationJobRepository) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
