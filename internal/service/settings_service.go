package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/repository"
)

const (
	// Bounds on the automatic sync interval.
	minSyncIntervalMinutes = 60
	maxSyncIntervalMinutes = 7 * 24 * 60

	defaultSyncIntervalMinutes = 24 * 60
)

var ErrInvalidInterval = errors.New("sync interval out of range")

type SettingsService interface {
	GetSettings(ctx context.Context, userID int64) (*models.SyncSetting, error)
	UpdateSettings(ctx context.Context, userID int64, enabled bool, intervalMinutes int) error
}

type settingsService struct {
	sr repository.SyncSettingRepository
}

func NewSettingsService(sr repository.SyncSettingRepository) SettingsService {
	return &settingsService{
		sr: sr,
	}
}

// GetSettings returns the user's scheduling row, synthesizing defaults when
// none exists yet.
func (s *settingsService) GetSettings(ctx context.Context, userID int64) (*models.SyncSetting, error) {
	setting, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if setting == nil {
		return &models.SyncSetting{
			UserID:              userID,
			AutoSyncEnabled:     true,
			SyncIntervalMinutes: defaultSyncIntervalMinutes,
		}, nil
	}

	return setting, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, enabled bool, intervalMinutes int) error {
	if intervalMinutes == 0 {
		intervalMinutes = defaultSyncIntervalMinutes
	}
	if intervalMinutes < minSyncIntervalMinutes || intervalMinutes > maxSyncIntervalMinutes {
		slog.Info(ErrInvalidInterval.Error())
		return ErrInvalidInterval
	}

	setting := &models.SyncSetting{
		UserID:              userID,
		AutoSyncEnabled:     enabled,
		SyncIntervalMinutes: intervalMinutes,
	}
	return s.sr.Upsert(ctx, setting)
}
