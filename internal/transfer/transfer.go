package transfer

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/priyankab28/contribsync/internal/models"
)

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TriggerSyncRequest struct {
	AccountID    int64 `json:"account_id"`
	SyncAllYears bool  `json:"sync_all_years"`
	SpecificYear int   `json:"specific_year"`
}

type SyncSettingsRequest struct {
	AutoSyncEnabled     bool `json:"auto_sync_enabled"`
	SyncIntervalMinutes int  `json:"sync_interval_minutes"`
}

type AccountTogglesRequest struct {
	IsActive          *bool `json:"is_active"`
	SyncContributions *bool `json:"sync_contributions"`
	SyncProfile       *bool `json:"sync_profile"`
}

type JobProgressResponse struct {
	JobID               int64   `json:"job_id"`
	Status              string  `json:"status"`
	ContributionsSynced int     `json:"contributions_synced"`
	ActivitiesSynced    int     `json:"activities_synced"`
	YearsCompleted      int     `json:"years_completed"`
	TotalYears          int     `json:"total_years"`
	ErrorMessage        *string `json:"error_message,omitempty"`
}

type ActivityWindowResponse struct {
	Activities []*models.Activity `json:"activities"`
	Total      int                `json:"total"`
}

type ContributionSummaryResponse struct {
	TotalContributions int `json:"total_contributions"`
}

type SuccessResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
