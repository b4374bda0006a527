package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/platform"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/pkg/utils"
)

var ErrTokenInvalid = errors.New("platform rejected the access token")

type AccountService interface {
	ConnectAccount(ctx context.Context, userID int64, platformKind, instanceURL, accessToken, refreshToken string, expiresAt *time.Time) (int64, error)
	ListAccounts(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	UpdateToggles(ctx context.Context, userID, accountID int64, isActive, syncContributions, syncProfile *bool) error
	RemoveAccount(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	ar            repository.PlatformAccountRepository
	encryptionKey []byte
}

func NewAccountService(ar repository.PlatformAccountRepository, encryptionKey []byte) AccountService {
	return &accountService{
		ar:            ar,
		encryptionKey: encryptionKey,
	}
}

// ConnectAccount validates the token against the platform, encrypts it and
// stores the new account with syncing enabled.
func (s *accountService) ConnectAccount(ctx context.Context, userID int64, platformKind, instanceURL, accessToken, refreshToken string, expiresAt *time.Time) (int64, error) {
	client, err := platform.NewClient(platformKind, instanceURL)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	info, err := client.ValidateToken(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
		return 0, ErrTokenInvalid
	}

	encToken, err := utils.Encrypt([]byte(accessToken), s.encryptionKey)
	if err != nil {
		return 0, err
	}

	account := &models.PlatformAccount{
		UserID:            userID,
		Platform:          platformKind,
		PlatformUsername:  info.Username,
		AccessToken:       sql.NullString{String: encToken, Valid: true},
		IsActive:          true,
		SyncContributions: true,
		SyncProfile:       true,
	}
	if instanceURL != "" {
		account.PlatformURL = sql.NullString{String: instanceURL, Valid: true}
	}
	if refreshToken != "" {
		encRefresh, err := utils.Encrypt([]byte(refreshToken), s.encryptionKey)
		if err != nil {
			return 0, err
		}
		account.RefreshToken = sql.NullString{String: encRefresh, Valid: true}
	}
	if expiresAt != nil {
		account.TokenExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	return s.ar.Create(ctx, account)
}

func (s *accountService) ListAccounts(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	return s.ar.ListByUserID(ctx, userID)
}

func (s *accountService) UpdateToggles(ctx context.Context, userID, accountID int64, isActive, syncContributions, syncProfile *bool) error {
	ok, err := s.ar.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}

	return s.ar.UpdateToggles(ctx, accountID, isActive, syncContributions, syncProfile)
}

func (s *accountService) RemoveAccount(ctx context.Context, userID, accountID int64) error {
	ok, err := s.ar.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	return s.ar.Remove(ctx, accountID)
}
