package job

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	config "github.com/priyankab28/contribsync/configs"
	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/pkg/utils"
)

// TokenRefreshJob rotates expiring OAuth tokens for platforms that issue
// short-lived ones. GitHub personal tokens do not expire and are skipped.
type TokenRefreshJob struct {
	ar            repository.PlatformAccountRepository
	config        config.Config
	encryptionKey []byte
}

func NewTokenRefreshJob(ar repository.PlatformAccountRepository, cfg config.Config, encryptionKey []byte) *TokenRefreshJob {
	return &TokenRefreshJob{
		ar:            ar,
		config:        cfg,
		encryptionKey: encryptionKey,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.ar.ListByTokenExpiry(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		if acc.Platform == models.PlatformGitHub {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.PlatformAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refreshAccount(ctx, acc); err != nil {
				slog.Info("unable to refresh token", "account_id", acc.ID, "platform", acc.Platform, "error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refreshAccount(ctx context.Context, acc *models.PlatformAccount) error {
	if !acc.RefreshToken.Valid {
		return nil
	}

	refreshToken, err := utils.Decrypt(acc.RefreshToken.String, c.encryptionKey)
	if err != nil {
		return err
	}

	conf, err := c.oauthConfig(acc)
	if err != nil {
		return err
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return err
	}

	encAccess, err := utils.Encrypt([]byte(token.AccessToken), c.encryptionKey)
	if err != nil {
		return err
	}

	encRefresh := ""
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encRefresh, err = utils.Encrypt([]byte(token.RefreshToken), c.encryptionKey)
		if err != nil {
			return err
		}
	}

	return c.ar.UpdateTokens(ctx, acc.ID, encAccess, encRefresh, token.Expiry)
}

func (c *TokenRefreshJob) oauthConfig(acc *models.PlatformAccount) (*oauth2.Config, error) {
	switch acc.Platform {
	case models.PlatformGitLab:
		instance := "https://gitlab.com"
		if acc.PlatformURL.Valid {
			instance = strings.TrimRight(acc.PlatformURL.String, "/")
		}
		return &oauth2.Config{
			ClientID:     c.config.GitlabClientID,
			ClientSecret: c.config.GitlabClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  instance + "/oauth/authorize",
				TokenURL: instance + "/oauth/token",
			},
		}, nil
	case models.PlatformGitea:
		instance := strings.TrimRight(acc.PlatformURL.String, "/")
		return &oauth2.Config{
			ClientID:     c.config.GiteaClientID,
			ClientSecret: c.config.GiteaClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  instance + "/login/oauth/authorize",
				TokenURL: instance + "/login/oauth/access_token",
			},
		}, nil
	default:
		return nil, errors.New("platform does not support token refresh")
	}
}
