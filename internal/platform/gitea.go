package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

type GiteaClient struct {
	cfg  Config
	http *http.Client
}

func NewGiteaClient(cfg Config) *GiteaClient {
	return &GiteaClient{cfg: cfg, http: newHTTPClient()}
}

func (c *GiteaClient) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gitea api %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchContributions reads the dedicated heatmap endpoint, which reports one
// (timestamp, count) entry per active day. No repository attribution exists at
// this granularity.
func (c *GiteaClient) FetchContributions(ctx context.Context, username, token string, from, to time.Time) ([]ContributionDay, error) {
	var heatmap []struct {
		Timestamp     int64 `json:"timestamp"`
		Contributions int   `json:"contributions"`
	}
	if err := c.get(ctx, token, "/users/"+username+"/heatmap", &heatmap); err != nil {
		return nil, fmt.Errorf("fetch gitea heatmap: %w", err)
	}

	var days []ContributionDay
	for _, entry := range heatmap {
		day := time.Unix(entry.Timestamp, 0).UTC().Truncate(24 * time.Hour)
		if day.Before(from) || day.After(to) {
			continue
		}
		days = append(days, ContributionDay{Date: day, Count: entry.Contributions})
	}
	return days, nil
}

type giteaFeed struct {
	OpType    string `json:"op_type"`
	CreatedAt string `json:"created"`
	Repo      *struct {
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Private  bool   `json:"private"`
		Language string `json:"language"`
	} `json:"repo"`
	Content string `json:"content"`
}

func (c *GiteaClient) FetchActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	var all []giteaFeed
	for page := 1; page <= 5; page++ {
		var feeds []giteaFeed
		path := fmt.Sprintf("/users/%s/activities/feeds?only-performed-by=true&limit=50&page=%d", username, page)
		if err := c.get(ctx, token, path, &feeds); err != nil {
			return nil, fmt.Errorf("fetch gitea feeds: %w", err)
		}
		if len(feeds) == 0 {
			break
		}
		all = append(all, feeds...)
	}

	kinds := map[string]string{
		"commit_repo":         models.ActivityCommit,
		"create_repo":         models.ActivityRepositoryCreated,
		"create_pull_request": models.ActivityPullRequest,
		"create_issue":        models.ActivityIssue,
		"star_repo":           models.ActivityStar,
		"release":             models.ActivityRelease,
	}

	var activities []Activity
	for _, feed := range all {
		kind, ok := kinds[feed.OpType]
		if !ok {
			continue
		}
		created, err := time.Parse(time.RFC3339, feed.CreatedAt)
		if err != nil || created.Before(from) || created.After(to) {
			continue
		}

		activity := Activity{
			Type:     kind,
			Date:     created.UTC().Truncate(24 * time.Hour),
			Metadata: mustJSON(map[string]any{"op_type": feed.OpType, "content": feed.Content}),
			Count:    1,
		}
		if feed.Repo != nil {
			activity.RepositoryName = feed.Repo.FullName
			activity.RepositoryURL = feed.Repo.HTMLURL
			activity.IsPrivate = feed.Repo.Private
			activity.PrimaryLanguage = feed.Repo.Language
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

func (c *GiteaClient) FetchRepositoryCreationActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	var repos []struct {
		FullName    string `json:"full_name"`
		Description string `json:"description"`
		Private     bool   `json:"private"`
		Fork        bool   `json:"fork"`
		HTMLURL     string `json:"html_url"`
		Language    string `json:"language"`
		CreatedAt   string `json:"created_at"`
	}
	if err := c.get(ctx, token, "/users/"+username+"/repos?limit=50", &repos); err != nil {
		return nil, fmt.Errorf("fetch gitea repos: %w", err)
	}

	var activities []Activity
	for _, repo := range repos {
		created, err := time.Parse(time.RFC3339, repo.CreatedAt)
		if err != nil || created.Before(from) || created.After(to) || repo.Fork {
			continue
		}
		activities = append(activities, Activity{
			Type: models.ActivityRepositoryCreated,
			Date: created.UTC().Truncate(24 * time.Hour),
			Metadata: mustJSON(map[string]any{
				"name":        repo.FullName,
				"description": repo.Description,
				"created_at":  repo.CreatedAt,
			}),
			RepositoryName:  repo.FullName,
			RepositoryURL:   repo.HTMLURL,
			IsPrivate:       repo.Private,
			Count:           1,
			PrimaryLanguage: repo.Language,
		})
	}
	return activities, nil
}

// No full-history search API; empty by contract.
func (c *GiteaClient) FetchPRAndIssueActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	return nil, nil
}

func (c *GiteaClient) FetchOrganizations(ctx context.Context, username, token string) ([]Organization, error) {
	var orgs []struct {
		Name      string `json:"name"`
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, "/users/"+username+"/orgs", &orgs); err != nil {
		return nil, fmt.Errorf("fetch gitea orgs: %w", err)
	}

	result := make([]Organization, 0, len(orgs))
	for _, org := range orgs {
		login := org.Username
		if login == "" {
			login = org.Name
		}
		result = append(result, Organization{Login: login, AvatarURL: org.AvatarURL})
	}
	return result, nil
}

func (c *GiteaClient) FetchUserProfile(ctx context.Context, username, token string) (*Profile, error) {
	var doc struct {
		FullName       string `json:"full_name"`
		AvatarURL      string `json:"avatar_url"`
		Description    string `json:"description"`
		Location       string `json:"location"`
		Website        string `json:"website"`
		FollowersCount int    `json:"followers_count"`
		FollowingCount int    `json:"following_count"`
	}
	if err := c.get(ctx, token, "/users/"+username, &doc); err != nil {
		return nil, fmt.Errorf("fetch gitea profile: %w", err)
	}

	followers, following := doc.FollowersCount, doc.FollowingCount
	return &Profile{
		AvatarURL:      doc.AvatarURL,
		DisplayName:    doc.FullName,
		Bio:            doc.Description,
		ProfileURL:     c.cfg.InstanceURL + "/" + username,
		Location:       doc.Location,
		FollowersCount: &followers,
		FollowingCount: &following,
	}, nil
}

func (c *GiteaClient) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	var doc struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, "/user", &doc); err != nil {
		return nil, fmt.Errorf("invalid gitea token: %w", err)
	}

	return &UserInfo{
		Username:  doc.Login,
		ID:        fmt.Sprintf("%d", doc.ID),
		Email:     doc.Email,
		AvatarURL: doc.AvatarURL,
	}, nil
}
