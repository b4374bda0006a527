package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ContributionDay is one day of remote activity as reported by a platform.
type ContributionDay struct {
	Date           time.Time
	Count          int
	RepositoryName string
	IsPrivate      bool
}

// Activity is one remote event before aggregation.
type Activity struct {
	Type                  string
	Date                  time.Time
	Metadata              json.RawMessage
	RepositoryName        string
	RepositoryURL         string
	IsPrivate             bool
	Count                 int
	PrimaryLanguage       string
	OrganizationName      string
	OrganizationAvatarURL string
}

// Organization is a remote org membership (login + avatar).
type Organization struct {
	Login     string
	AvatarURL string
}

// UserInfo is the identity returned by token validation.
type UserInfo struct {
	Username  string `json:"username"`
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Profile is the denormalized profile document a sync overwrites onto the account.
type Profile struct {
	AvatarURL      string
	DisplayName    string
	Bio            string
	ProfileURL     string
	Location       string
	Company        string
	FollowersCount *int
	FollowingCount *int
}

// Config points a client at one platform instance.
type Config struct {
	Platform    string
	InstanceURL string
	APIBaseURL  string
}

func GitHubConfig() Config {
	return Config{
		Platform:    "github",
		InstanceURL: "https://github.com",
		APIBaseURL:  "https://api.github.com",
	}
}

func GitLabConfig(instanceURL string) Config {
	if instanceURL == "" {
		instanceURL = "https://gitlab.com"
	}
	return Config{
		Platform:    "gitlab",
		InstanceURL: instanceURL,
		APIBaseURL:  strings.TrimRight(instanceURL, "/") + "/api/v4",
	}
}

func GiteaConfig(instanceURL string) Config {
	return Config{
		Platform:    "gitea",
		InstanceURL: instanceURL,
		APIBaseURL:  strings.TrimRight(instanceURL, "/") + "/api/v1",
	}
}

// Client is the capability surface every platform integration implements.
// Feeds a platform cannot serve return empty slices, not errors.
type Client interface {
	FetchContributions(ctx context.Context, username, token string, from, to time.Time) ([]ContributionDay, error)
	FetchActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error)
	FetchRepositoryCreationActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error)
	FetchPRAndIssueActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error)
	FetchOrganizations(ctx context.Context, username, token string) ([]Organization, error)
	FetchUserProfile(ctx context.Context, username, token string) (*Profile, error)
	ValidateToken(ctx context.Context, token string) (*UserInfo, error)
}

// NewClient returns the client for a platform kind. instanceURL is ignored for
// github and defaults for gitlab when empty.
func NewClient(platformKind, instanceURL string) (Client, error) {
	switch platformKind {
	case "github":
		return NewGitHubClient(GitHubConfig()), nil
	case "gitlab":
		return NewGitLabClient(GitLabConfig(instanceURL)), nil
	case "gitea":
		if instanceURL == "" {
			return nil, fmt.Errorf("gitea account has no instance url")
		}
		return NewGiteaClient(GiteaConfig(instanceURL)), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platformKind)
	}
}

const userAgent = "contribsync/1.0"

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
