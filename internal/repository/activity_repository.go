package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

type ActivityRepository interface {
	Insert(ctx context.Context, activity *models.Activity) (int64, error)
	DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error
	DeleteByType(ctx context.Context, accountID int64, activityType string) error
	ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Activity, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Activity, error)
	CountRange(ctx context.Context, accountID int64, from, to time.Time) (int, error)
}

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `id, platform_account_id, activity_type, activity_date, metadata,
	repository_name, repository_url, is_private_repo, count,
	primary_language, organization_name, organization_avatar_url,
	created_at, updated_at`

func scanActivity(row interface{ Scan(...any) error }) (*models.Activity, error) {
	var a models.Activity
	err := row.Scan(&a.ID, &a.PlatformAccountID, &a.ActivityType, &a.ActivityDate, &a.Metadata,
		&a.RepositoryName, &a.RepositoryURL, &a.IsPrivateRepo, &a.Count,
		&a.PrimaryLanguage, &a.OrganizationName, &a.OrganizationAvatarURL,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activityRepository) Insert(ctx context.Context, activity *models.Activity) (int64, error) {
	query := `
		INSERT INTO activities (
			platform_account_id,
			activity_type,
			activity_date,
			metadata,
			repository_name,
			repository_url,
			is_private_repo,
			count,
			primary_language,
			organization_name,
			organization_avatar_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	metadata := activity.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		activity.PlatformAccountID,
		activity.ActivityType,
		activity.ActivityDate,
		metadata,
		activity.RepositoryName,
		activity.RepositoryURL,
		activity.IsPrivateRepo,
		activity.Count,
		activity.PrimaryLanguage,
		activity.OrganizationName,
		activity.OrganizationAvatarURL,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *activityRepository) DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error {
	query := `DELETE FROM activities WHERE platform_account_id = $1 AND activity_date >= $2 AND activity_date <= $3`

	_, err := r.db.ExecContext(ctx, query, accountID, from, to)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// DeleteByType removes every row of one kind regardless of date. Organization
// joins are rebuilt from scratch on each sync, so their window is unbounded.
func (r *activityRepository) DeleteByType(ctx context.Context, accountID int64, activityType string) error {
	query := `DELETE FROM activities WHERE platform_account_id = $1 AND activity_type = $2`

	_, err := r.db.ExecContext(ctx, query, accountID, activityType)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *activityRepository) ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE platform_account_id = $1 AND activity_date >= $2 AND activity_date <= $3
		ORDER BY activity_date DESC`

	return r.list(ctx, query, accountID, from, to)
}

func (r *activityRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Activity, error) {
	query := `SELECT ` + prefixColumns("act", activityColumns) + `
		FROM activities act
		JOIN platform_accounts a ON a.id = act.platform_account_id
		WHERE a.user_id = $1
		ORDER BY act.activity_date DESC
		LIMIT $2`

	return r.list(ctx, query, userID, limit)
}

func (r *activityRepository) list(ctx context.Context, query string, args ...any) ([]*models.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) CountRange(ctx context.Context, accountID int64, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM activities WHERE platform_account_id = $1 AND activity_date >= $2 AND activity_date <= $3`

	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID, from, to).Scan(&count); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}
