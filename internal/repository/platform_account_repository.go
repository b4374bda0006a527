package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
)

type PlatformAccountRepository interface {
	Create(ctx context.Context, account *models.PlatformAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	ListActiveByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, profile *platform.Profile) error
	UpdateToggles(ctx context.Context, id int64, isActive, syncContributions, syncProfile *bool) error
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	SetLastSyncedAt(ctx context.Context, id int64, t time.Time) error
	Remove(ctx context.Context, id int64) error
}

type platformAccountRepository struct {
	db *sql.DB
}

func NewPlatformAccountRepository(db *sql.DB) PlatformAccountRepository {
	return &platformAccountRepository{db: db}
}

const accountColumns = `id, user_id, platform, platform_username, platform_url,
	access_token, refresh_token, token_expires_at,
	is_active, sync_contributions, sync_profile,
	avatar_url, display_name, bio, profile_url, location, company,
	followers_count, following_count,
	last_synced_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.PlatformAccount, error) {
	var a models.PlatformAccount
	err := row.Scan(&a.ID, &a.UserID, &a.Platform, &a.PlatformUsername, &a.PlatformURL,
		&a.AccessToken, &a.RefreshToken, &a.TokenExpiresAt,
		&a.IsActive, &a.SyncContributions, &a.SyncProfile,
		&a.AvatarURL, &a.DisplayName, &a.Bio, &a.ProfileURL, &a.Location, &a.Company,
		&a.FollowersCount, &a.FollowingCount,
		&a.LastSyncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *platformAccountRepository) Create(ctx context.Context, account *models.PlatformAccount) (int64, error) {
	query := `
		INSERT INTO platform_accounts (
			user_id,
			platform,
			platform_username,
			platform_url,
			access_token,
			refresh_token,
			token_expires_at,
			is_active,
			sync_contributions,
			sync_profile
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		account.UserID,
		account.Platform,
		account.PlatformUsername,
		account.PlatformURL,
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		account.IsActive,
		account.SyncContributions,
		account.SyncProfile,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *platformAccountRepository) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM platform_accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return account, nil
}

func (r *platformAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM platform_accounts WHERE user_id = $1 ORDER BY created_at`
	return r.list(ctx, query, userID)
}

func (r *platformAccountRepository) ListActiveByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM platform_accounts WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at`
	return r.list(ctx, query, userID)
}

func (r *platformAccountRepository) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM platform_accounts
		WHERE refresh_token IS NOT NULL
		AND ((token_expires_at BETWEEN $1 AND $2) OR (token_expires_at < $1))`
	return r.list(ctx, query, initialTime, finalTime)
}

func (r *platformAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.PlatformAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.PlatformAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *platformAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := `SELECT 1 FROM platform_accounts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *platformAccountRepository) UpdateProfile(ctx context.Context, id int64, profile *platform.Profile) error {
	query := `
		UPDATE platform_accounts
		SET avatar_url = COALESCE(NULLIF($2, ''), avatar_url),
			display_name = COALESCE(NULLIF($3, ''), display_name),
			bio = COALESCE(NULLIF($4, ''), bio),
			profile_url = COALESCE(NULLIF($5, ''), profile_url),
			location = COALESCE(NULLIF($6, ''), location),
			company = COALESCE(NULLIF($7, ''), company),
			followers_count = COALESCE($8, followers_count),
			following_count = COALESCE($9, following_count),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	var followers, following any
	if profile.FollowersCount != nil {
		followers = *profile.FollowersCount
	}
	if profile.FollowingCount != nil {
		following = *profile.FollowingCount
	}

	_, err := r.db.ExecContext(ctx, query, id,
		profile.AvatarURL, profile.DisplayName, profile.Bio,
		profile.ProfileURL, profile.Location, profile.Company,
		followers, following)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformAccountRepository) UpdateToggles(ctx context.Context, id int64, isActive, syncContributions, syncProfile *bool) error {
	query := `
		UPDATE platform_accounts
		SET is_active = COALESCE($2, is_active),
			sync_contributions = COALESCE($3, sync_contributions),
			sync_profile = COALESCE($4, sync_profile),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, boolArg(isActive), boolArg(syncContributions), boolArg(syncProfile))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func boolArg(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func (r *platformAccountRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE platform_accounts
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformAccountRepository) SetLastSyncedAt(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE platform_accounts SET last_synced_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, t)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Remove hard-deletes the account and everything derived from it.
func (r *platformAccountRepository) Remove(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM contribution_days WHERE platform_account_id = $1`,
		`DELETE FROM activities WHERE platform_account_id = $1`,
		`DELETE FROM sync_jobs WHERE platform_account_id = $1`,
		`DELETE FROM platform_accounts WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
