package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

type GitLabClient struct {
	cfg  Config
	http *http.Client
}

func NewGitLabClient(cfg Config) *GitLabClient {
	return &GitLabClient{cfg: cfg, http: newHTTPClient()}
}

func (c *GitLabClient) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gitlab api %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *GitLabClient) resolveUserID(ctx context.Context, username, token string) (int64, error) {
	var users []struct {
		ID int64 `json:"id"`
	}
	if err := c.get(ctx, token, "/users?username="+username, &users); err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, fmt.Errorf("gitlab user %s not found", username)
	}
	return users[0].ID, nil
}

type gitlabEvent struct {
	ActionName  string `json:"action_name"`
	TargetType  string `json:"target_type"`
	TargetTitle string `json:"target_title"`
	TargetIID   int    `json:"target_iid"`
	CreatedAt   string `json:"created_at"`
	PushData    *struct {
		CommitCount int    `json:"commit_count"`
		RefType     string `json:"ref_type"`
	} `json:"push_data"`
	Project *struct {
		PathWithNamespace string `json:"path_with_namespace"`
		WebURL            string `json:"web_url"`
	} `json:"project"`
}

func (c *GitLabClient) fetchEvents(ctx context.Context, username, token string, from, to time.Time) ([]gitlabEvent, error) {
	userID, err := c.resolveUserID(ctx, username, token)
	if err != nil {
		return nil, err
	}

	var all []gitlabEvent
	for page := 1; page <= 10; page++ {
		path := fmt.Sprintf("/users/%d/events?per_page=100&page=%d&after=%s&before=%s",
			userID, page,
			from.UTC().AddDate(0, 0, -1).Format("2006-01-02"),
			to.UTC().AddDate(0, 0, 1).Format("2006-01-02"))

		var events []gitlabEvent
		if err := c.get(ctx, token, path, &events); err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
	}
	return all, nil
}

// FetchContributions builds day records from push events. The events API does
// not expose repository visibility, so days are reported public.
func (c *GitLabClient) FetchContributions(ctx context.Context, username, token string, from, to time.Time) ([]ContributionDay, error) {
	events, err := c.fetchEvents(ctx, username, token, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch gitlab contributions: %w", err)
	}

	type dayRepo struct {
		day  string
		repo string
	}
	counts := make(map[dayRepo]int)

	for _, ev := range events {
		if ev.PushData == nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, ev.CreatedAt)
		if err != nil || created.Before(from) || created.After(to) {
			continue
		}
		key := dayRepo{day: created.UTC().Format("2006-01-02")}
		if ev.Project != nil {
			key.repo = ev.Project.PathWithNamespace
		}
		commits := ev.PushData.CommitCount
		if commits == 0 {
			commits = 1
		}
		counts[key] += commits
	}

	days := make([]ContributionDay, 0, len(counts))
	for key, count := range counts {
		date, err := time.Parse("2006-01-02", key.day)
		if err != nil {
			continue
		}
		days = append(days, ContributionDay{
			Date:           date,
			Count:          count,
			RepositoryName: key.repo,
		})
	}
	return days, nil
}

func (c *GitLabClient) FetchActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	events, err := c.fetchEvents(ctx, username, token, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch gitlab activities: %w", err)
	}

	var activities []Activity
	for _, ev := range events {
		created, err := time.Parse(time.RFC3339, ev.CreatedAt)
		if err != nil || created.Before(from) || created.After(to) {
			continue
		}
		day := created.UTC().Truncate(24 * time.Hour)

		repoName, repoURL := "", ""
		if ev.Project != nil {
			repoName = ev.Project.PathWithNamespace
			repoURL = ev.Project.WebURL
		}

		var kind string
		switch {
		case ev.PushData != nil:
			kind = models.ActivityCommit
		case ev.ActionName == "opened" && ev.TargetType == "MergeRequest":
			kind = models.ActivityPullRequest
		case ev.ActionName == "opened" && ev.TargetType == "Issue":
			kind = models.ActivityIssue
		default:
			continue
		}

		count := 1
		if ev.PushData != nil && ev.PushData.CommitCount > 0 {
			count = ev.PushData.CommitCount
		}

		activities = append(activities, Activity{
			Type: kind,
			Date: day,
			Metadata: mustJSON(map[string]any{
				"title":      ev.TargetTitle,
				"number":     ev.TargetIID,
				"repository": repoName,
			}),
			RepositoryName: repoName,
			RepositoryURL:  repoURL,
			Count:          count,
		})
	}
	return activities, nil
}

func (c *GitLabClient) FetchRepositoryCreationActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	userID, err := c.resolveUserID(ctx, username, token)
	if err != nil {
		return nil, err
	}

	var projects []struct {
		PathWithNamespace string `json:"path_with_namespace"`
		Visibility        string `json:"visibility"`
		WebURL            string `json:"web_url"`
		Description       string `json:"description"`
		CreatedAt         string `json:"created_at"`
	}
	if err := c.get(ctx, token, fmt.Sprintf("/users/%d/projects?per_page=100", userID), &projects); err != nil {
		return nil, fmt.Errorf("fetch gitlab projects: %w", err)
	}

	var activities []Activity
	for _, project := range projects {
		created, err := time.Parse(time.RFC3339, project.CreatedAt)
		if err != nil || created.Before(from) || created.After(to) {
			continue
		}
		activities = append(activities, Activity{
			Type: models.ActivityRepositoryCreated,
			Date: created.UTC().Truncate(24 * time.Hour),
			Metadata: mustJSON(map[string]any{
				"name":        project.PathWithNamespace,
				"description": project.Description,
				"created_at":  project.CreatedAt,
			}),
			RepositoryName: project.PathWithNamespace,
			RepositoryURL:  project.WebURL,
			IsPrivate:      project.Visibility == "private",
			Count:          1,
		})
	}
	return activities, nil
}

// GitLab has no full-history search comparable to GitHub's; empty by contract.
func (c *GitLabClient) FetchPRAndIssueActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	return nil, nil
}

// Organization membership is not exposed per-user; empty by contract.
func (c *GitLabClient) FetchOrganizations(ctx context.Context, username, token string) ([]Organization, error) {
	return nil, nil
}

func (c *GitLabClient) FetchUserProfile(ctx context.Context, username, token string) (*Profile, error) {
	var doc struct {
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		AvatarURL string `json:"avatar_url"`
		WebURL    string `json:"web_url"`
		Location  string `json:"location"`
		Organization string `json:"organization"`
	}
	if err := c.get(ctx, token, "/user", &doc); err != nil {
		return nil, fmt.Errorf("fetch gitlab profile: %w", err)
	}

	// The user API carries no follower counts.
	return &Profile{
		AvatarURL:   doc.AvatarURL,
		DisplayName: doc.Name,
		Bio:         doc.Bio,
		ProfileURL:  doc.WebURL,
		Location:    doc.Location,
		Company:     doc.Organization,
	}, nil
}

func (c *GitLabClient) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	var doc struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, "/user", &doc); err != nil {
		return nil, fmt.Errorf("invalid gitlab token: %w", err)
	}

	return &UserInfo{
		Username:  doc.Username,
		ID:        fmt.Sprintf("%d", doc.ID),
		Email:     doc.Email,
		AvatarURL: doc.AvatarURL,
	}, nil
}
