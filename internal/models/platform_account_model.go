package models

import (
	"database/sql"
	"time"
)

const (
	PlatformGitHub = "github"
	PlatformGitLab = "gitlab"
	PlatformGitea  = "gitea"
)

type PlatformAccount struct {
	ID       int64  `db:"id" json:"id"`
	UserID   int64  `db:"user_id" json:"user_id"`
	Platform string `db:"platform" json:"platform"`

	// Username on the remote platform, not the local user name.
	PlatformUsername string `db:"platform_username" json:"platform_username"`

	// Empty for github.com; self-hosted GitLab/Gitea instances carry their base URL here.
	PlatformURL sql.NullString `db:"platform_url" json:"platform_url"`

	// AES-GCM encrypted, base64-encoded.
	AccessToken  sql.NullString `db:"access_token" json:"-"`
	RefreshToken sql.NullString `db:"refresh_token" json:"-"`

	TokenExpiresAt sql.NullTime `db:"token_expires_at" json:"token_expires_at"`

	IsActive          bool `db:"is_active" json:"is_active"`
	SyncContributions bool `db:"sync_contributions" json:"sync_contributions"`
	SyncProfile       bool `db:"sync_profile" json:"sync_profile"`

	// Denormalized profile fields, overwritten by profile sync.
	AvatarURL      sql.NullString `db:"avatar_url" json:"avatar_url"`
	DisplayName    sql.NullString `db:"display_name" json:"display_name"`
	Bio            sql.NullString `db:"bio" json:"bio"`
	ProfileURL     sql.NullString `db:"profile_url" json:"profile_url"`
	Location       sql.NullString `db:"location" json:"location"`
	Company        sql.NullString `db:"company" json:"company"`
	FollowersCount sql.NullInt32  `db:"followers_count" json:"followers_count"`
	FollowingCount sql.NullInt32  `db:"following_count" json:"following_count"`

	LastSyncedAt sql.NullTime `db:"last_synced_at" json:"last_synced_at"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
