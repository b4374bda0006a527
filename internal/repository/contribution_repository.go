package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/priyankab28/contribsync/internal/models"
)

type ContributionRepository interface {
	DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error
	BulkInsert(ctx context.Context, days []*models.ContributionDay) error
	ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.ContributionDay, error)
	ListByUserRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.ContributionDay, error)
	TotalByUser(ctx context.Context, userID int64) (int, error)
}

type contributionRepository struct {
	db *sql.DB
}

func NewContributionRepository(db *sql.DB) ContributionRepository {
	return &contributionRepository{db: db}
}

func (r *contributionRepository) DeleteRange(ctx context.Context, accountID int64, from, to time.Time) error {
	query := `DELETE FROM contribution_days WHERE platform_account_id = $1 AND contribution_date >= $2 AND contribution_date <= $3`

	_, err := r.db.ExecContext(ctx, query, accountID, from, to)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// BulkInsert writes the given days in a single COPY statement.
func (r *contributionRepository) BulkInsert(ctx context.Context, days []*models.ContributionDay) error {
	if len(days) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("contribution_days",
		"platform_account_id", "contribution_date", "count", "repository_name", "is_private_repo"))
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	for _, d := range days {
		if _, err := stmt.ExecContext(ctx, d.PlatformAccountID, d.ContributionDate, d.Count, d.RepositoryName, d.IsPrivateRepo); err != nil {
			slog.Info(err.Error())
			stmt.Close()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		slog.Info(err.Error())
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		slog.Info(err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contributionRepository) ListRange(ctx context.Context, accountID int64, from, to time.Time) ([]*models.ContributionDay, error) {
	builder := sq.Select("id", "platform_account_id", "contribution_date", "count", "repository_name", "is_private_repo").
		From("contribution_days").
		Where(sq.Eq{"platform_account_id": accountID}).
		Where(sq.GtOrEq{"contribution_date": from}).
		Where(sq.LtOrEq{"contribution_date": to}).
		OrderBy("contribution_date").
		PlaceholderFormat(sq.Dollar)

	return r.listWith(ctx, builder)
}

func (r *contributionRepository) ListByUserRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.ContributionDay, error) {
	builder := sq.Select("c.id", "c.platform_account_id", "c.contribution_date", "c.count", "c.repository_name", "c.is_private_repo").
		From("contribution_days c").
		Join("platform_accounts a ON a.id = c.platform_account_id").
		Where(sq.Eq{"a.user_id": userID}).
		Where(sq.GtOrEq{"c.contribution_date": from}).
		Where(sq.LtOrEq{"c.contribution_date": to}).
		OrderBy("c.contribution_date").
		PlaceholderFormat(sq.Dollar)

	return r.listWith(ctx, builder)
}

func (r *contributionRepository) listWith(ctx context.Context, builder sq.SelectBuilder) ([]*models.ContributionDay, error) {
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

	var days []*models.ContributionDay
	for rows.Next() {
		var d models.ContributionDay
		if err := rows.Scan(&d.ID, &d.PlatformAccountID, &d.ContributionDate, &d.Count, &d.RepositoryName, &d.IsPrivateRepo); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		days = append(days, &d)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return days, nil
}

func (r *contributionRepository) TotalByUser(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(c.count), 0)
		FROM contribution_days c
		JOIN platform_accounts a ON a.id = c.platform_account_id
		WHERE a.user_id = $1
	`

	var total int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return total, nil
}
