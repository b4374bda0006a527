package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

type GitHubClient struct {
	cfg  Config
	http *http.Client
}

func NewGitHubClient(cfg Config) *GitHubClient {
	return &GitHubClient{cfg: cfg, http: newHTTPClient()}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (c *GitHubClient) graphql(ctx context.Context, token string, reqBody graphQLRequest, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github graphql: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("github graphql: %s", envelope.Errors[0].Message)
	}

	return json.Unmarshal(envelope.Data, out)
}

func (c *GitHubClient) rest(ctx context.Context, token, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	return c.http.Do(req)
}

const contributionsQuery = `
query($username: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $username) {
    contributionsCollection(from: $from, to: $to) {
      contributionCalendar {
        weeks {
          contributionDays {
            date
            contributionCount
          }
        }
      }
      commitContributionsByRepository(maxRepositories: 100) {
        repository {
          nameWithOwner
          isPrivate
        }
        contributions(first: 100) {
          nodes {
            occurredAt
            commitCount
          }
        }
      }
    }
  }
}`

// FetchContributions returns one entry per (day, repository) from the commit
// contributions feed, plus repository-less entries for calendar days whose
// count is not fully covered by attributed commits. The GraphQL API caps the
// window at one year, which the executor honors by fetching year by year.
func (c *GitHubClient) FetchContributions(ctx context.Context, username, token string, from, to time.Time) ([]ContributionDay, error) {
	var data struct {
		User struct {
			ContributionsCollection struct {
				ContributionCalendar struct {
					Weeks []struct {
						ContributionDays []struct {
							Date              string `json:"date"`
							ContributionCount int    `json:"contributionCount"`
						} `json:"contributionDays"`
					} `json:"weeks"`
				} `json:"contributionCalendar"`
				CommitContributionsByRepository []struct {
					Repository struct {
						NameWithOwner string `json:"nameWithOwner"`
						IsPrivate     bool   `json:"isPrivate"`
					} `json:"repository"`
					Contributions struct {
						Nodes []struct {
							OccurredAt  string `json:"occurredAt"`
							CommitCount int    `json:"commitCount"`
						} `json:"nodes"`
					} `json:"contributions"`
				} `json:"commitContributionsByRepository"`
			} `json:"contributionsCollection"`
		} `json:"user"`
	}

	req := graphQLRequest{
		Query: contributionsQuery,
		Variables: map[string]any{
			"username": username,
			"from":     from.UTC().Format(time.RFC3339),
			"to":       to.UTC().Format(time.RFC3339),
		},
	}
	if err := c.graphql(ctx, token, req, &data); err != nil {
		return nil, fmt.Errorf("fetch github contributions: %w", err)
	}

	var days []ContributionDay
	attributed := make(map[string]int)

	coll := data.User.ContributionsCollection
	for _, byRepo := range coll.CommitContributionsByRepository {
		for _, node := range byRepo.Contributions.Nodes {
			occurred, err := time.Parse(time.RFC3339, node.OccurredAt)
			if err != nil {
				continue
			}
			day := occurred.UTC().Truncate(24 * time.Hour)
			days = append(days, ContributionDay{
				Date:           day,
				Count:          node.CommitCount,
				RepositoryName: byRepo.Repository.NameWithOwner,
				IsPrivate:      byRepo.Repository.IsPrivate,
			})
			attributed[day.Format("2006-01-02")] += node.CommitCount
		}
	}

	// Calendar days cover reviews, issues and commits in repos beyond the
	// per-repo cap; the remainder is emitted without a repository name.
	for _, week := range coll.ContributionCalendar.Weeks {
		for _, d := range week.ContributionDays {
			if d.ContributionCount == 0 {
				continue
			}
			rest := d.ContributionCount - attributed[d.Date]
			if rest <= 0 {
				continue
			}
			date, err := time.Parse("2006-01-02", d.Date)
			if err != nil {
				continue
			}
			days = append(days, ContributionDay{Date: date, Count: rest})
		}
	}

	return days, nil
}

type githubEvent struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Org *struct {
		Login string `json:"login"`
	} `json:"org"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// The events API serves at most 300 events across 3 pages.
func (c *GitHubClient) fetchEvents(ctx context.Context, username, token, path string) ([]githubEvent, error) {
	var all []githubEvent

	for page := 1; page <= 3; page++ {
		resp, err := c.rest(ctx, token, fmt.Sprintf("%s?per_page=100&page=%d", path, page))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch github events: status %d", resp.StatusCode)
		}

		var events []githubEvent
		err = json.NewDecoder(resp.Body).Decode(&events)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
	}

	return all, nil
}

// FetchActivities maps the generic events feed to activity rows. Commit,
// repository-creation, PR/issue and org-join kinds also appear here but are
// reconstructed with better fidelity from dedicated feeds; the aggregation
// engine filters them out before merging.
func (c *GitHubClient) FetchActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	events, err := c.fetchEvents(ctx, username, token, "/users/"+username+"/events")
	if err != nil {
		return nil, err
	}

	var activities []Activity
	for _, ev := range events {
		created, err := time.Parse(time.RFC3339, ev.CreatedAt)
		if err != nil {
			continue
		}
		if created.Before(from) || created.After(to) {
			continue
		}
		day := created.UTC().Truncate(24 * time.Hour)

		var payload map[string]json.RawMessage
		if len(ev.Payload) > 0 {
			_ = json.Unmarshal(ev.Payload, &payload)
		}

		switch ev.Type {
		case "PushEvent":
			count := 1
			var push struct {
				Size int `json:"size"`
			}
			if json.Unmarshal(ev.Payload, &push) == nil && push.Size > 0 {
				count = push.Size
			}
			activities = append(activities, Activity{
				Type:           models.ActivityCommit,
				Date:           day,
				Metadata:       mustJSON(map[string]any{"repository": ev.Repo.Name}),
				RepositoryName: ev.Repo.Name,
				RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
				Count:          count,
			})
		case "CreateEvent":
			var create struct {
				RefType string `json:"ref_type"`
			}
			if json.Unmarshal(ev.Payload, &create) != nil || create.RefType != "repository" {
				continue
			}
			activities = append(activities, Activity{
				Type:           models.ActivityRepositoryCreated,
				Date:           day,
				Metadata:       mustJSON(map[string]any{"name": ev.Repo.Name, "created_at": ev.CreatedAt}),
				RepositoryName: ev.Repo.Name,
				RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
				Count:          1,
			})
		case "PullRequestEvent":
			activities = append(activities, c.prIssueActivity(models.ActivityPullRequest, ev, day, "pull_request"))
		case "IssuesEvent":
			activities = append(activities, c.prIssueActivity(models.ActivityIssue, ev, day, "issue"))
		case "ForkEvent":
			activities = append(activities, Activity{
				Type:           models.ActivityFork,
				Date:           day,
				Metadata:       mustJSON(map[string]any{"repository": ev.Repo.Name}),
				RepositoryName: ev.Repo.Name,
				RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
				Count:          1,
			})
		case "ReleaseEvent":
			var rel struct {
				Release struct {
					TagName string `json:"tag_name"`
					Name    string `json:"name"`
				} `json:"release"`
			}
			_ = json.Unmarshal(ev.Payload, &rel)
			activities = append(activities, Activity{
				Type:           models.ActivityRelease,
				Date:           day,
				Metadata:       mustJSON(map[string]any{"repository": ev.Repo.Name, "tag": rel.Release.TagName, "name": rel.Release.Name}),
				RepositoryName: ev.Repo.Name,
				RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
				Count:          1,
			})
		case "WatchEvent":
			activities = append(activities, Activity{
				Type:           models.ActivityStar,
				Date:           day,
				Metadata:       mustJSON(map[string]any{"repository": ev.Repo.Name}),
				RepositoryName: ev.Repo.Name,
				RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
				Count:          1,
			})
		}
	}

	return activities, nil
}

func (c *GitHubClient) prIssueActivity(kind string, ev githubEvent, day time.Time, payloadKey string) Activity {
	var payload map[string]json.RawMessage
	_ = json.Unmarshal(ev.Payload, &payload)

	meta := map[string]any{"repository": ev.Repo.Name}
	if raw, ok := payload[payloadKey]; ok {
		var item struct {
			Title   string `json:"title"`
			Number  int    `json:"number"`
			State   string `json:"state"`
			HTMLURL string `json:"html_url"`
		}
		if json.Unmarshal(raw, &item) == nil {
			meta["title"] = item.Title
			meta["number"] = item.Number
			meta["state"] = item.State
			meta["url"] = item.HTMLURL
		}
	}

	return Activity{
		Type:           kind,
		Date:           day,
		Metadata:       mustJSON(meta),
		RepositoryName: ev.Repo.Name,
		RepositoryURL:  c.cfg.InstanceURL + "/" + ev.Repo.Name,
		Count:          1,
	}
}

const repositoriesQuery = `
query($username: String!, $cursor: String) {
  user(login: $username) {
    repositories(first: 100, after: $cursor, ownerAffiliations: OWNER, orderBy: {field: CREATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      nodes {
        nameWithOwner
        createdAt
        isPrivate
        isFork
        url
        description
        primaryLanguage { name }
      }
    }
  }
}`

// FetchRepositoryCreationActivities walks the repository list instead of the
// short-retention events feed, so creations from any year are visible.
func (c *GitHubClient) FetchRepositoryCreationActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	var activities []Activity
	var cursor *string

	for {
		var data struct {
			User struct {
				Repositories struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						NameWithOwner   string `json:"nameWithOwner"`
						CreatedAt       string `json:"createdAt"`
						IsPrivate       bool   `json:"isPrivate"`
						IsFork          bool   `json:"isFork"`
						URL             string `json:"url"`
						Description     string `json:"description"`
						PrimaryLanguage *struct {
							Name string `json:"name"`
						} `json:"primaryLanguage"`
					} `json:"nodes"`
				} `json:"repositories"`
			} `json:"user"`
		}

		vars := map[string]any{"username": username}
		if cursor != nil {
			vars["cursor"] = *cursor
		}
		if err := c.graphql(ctx, token, graphQLRequest{Query: repositoriesQuery, Variables: vars}, &data); err != nil {
			return nil, fmt.Errorf("fetch github repositories: %w", err)
		}

		for _, repo := range data.User.Repositories.Nodes {
			created, err := time.Parse(time.RFC3339, repo.CreatedAt)
			if err != nil || created.Before(from) || created.After(to) {
				continue
			}
			if repo.IsFork {
				continue
			}
			language := ""
			if repo.PrimaryLanguage != nil {
				language = repo.PrimaryLanguage.Name
			}
			activities = append(activities, Activity{
				Type: models.ActivityRepositoryCreated,
				Date: created.UTC().Truncate(24 * time.Hour),
				Metadata: mustJSON(map[string]any{
					"name":        repo.NameWithOwner,
					"description": repo.Description,
					"created_at":  repo.CreatedAt,
				}),
				RepositoryName:  repo.NameWithOwner,
				RepositoryURL:   repo.URL,
				IsPrivate:       repo.IsPrivate,
				Count:           1,
				PrimaryLanguage: language,
			})
		}

		if !data.User.Repositories.PageInfo.HasNextPage {
			break
		}
		c2 := data.User.Repositories.PageInfo.EndCursor
		cursor = &c2
	}

	return activities, nil
}

const searchQuery = `
query($query: String!, $type: SearchType!) {
  search(query: $query, type: $type, first: 100) {
    nodes {
      ... on PullRequest {
        title
        number
        state
        url
        createdAt
        repository { nameWithOwner isPrivate }
      }
      ... on Issue {
        title
        number
        state
        url
        createdAt
        repository { nameWithOwner isPrivate }
      }
    }
  }
}`

// FetchPRAndIssueActivities uses the search API, which covers full history
// unlike the 90-day events feed.
func (c *GitHubClient) FetchPRAndIssueActivities(ctx context.Context, username, token string, from, to time.Time) ([]Activity, error) {
	window := fmt.Sprintf("%s..%s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))

	var activities []Activity
	for _, kind := range []struct {
		search   string
		activity string
	}{
		{"pr", models.ActivityPullRequest},
		{"issue", models.ActivityIssue},
	} {
		var data struct {
			Search struct {
				Nodes []struct {
					Title      string `json:"title"`
					Number     int    `json:"number"`
					State      string `json:"state"`
					URL        string `json:"url"`
					CreatedAt  string `json:"createdAt"`
					Repository struct {
						NameWithOwner string `json:"nameWithOwner"`
						IsPrivate     bool   `json:"isPrivate"`
					} `json:"repository"`
				} `json:"nodes"`
			} `json:"search"`
		}

		query := fmt.Sprintf("author:%s type:%s created:%s", username, kind.search, window)
		req := graphQLRequest{Query: searchQuery, Variables: map[string]any{"query": query, "type": "ISSUE"}}
		if err := c.graphql(ctx, token, req, &data); err != nil {
			return nil, fmt.Errorf("search github %ss: %w", kind.search, err)
		}

		for _, node := range data.Search.Nodes {
			if node.Number == 0 && node.Title == "" {
				continue
			}
			created, err := time.Parse(time.RFC3339, node.CreatedAt)
			if err != nil {
				continue
			}
			activities = append(activities, Activity{
				Type: kind.activity,
				Date: created.UTC().Truncate(24 * time.Hour),
				Metadata: mustJSON(map[string]any{
					"title":      node.Title,
					"number":     node.Number,
					"state":      node.State,
					"repository": node.Repository.NameWithOwner,
					"url":        node.URL,
				}),
				RepositoryName: node.Repository.NameWithOwner,
				RepositoryURL:  node.URL,
				IsPrivate:      node.Repository.IsPrivate,
				Count:          1,
			})
		}
	}

	return activities, nil
}

func (c *GitHubClient) FetchOrganizations(ctx context.Context, username, token string) ([]Organization, error) {
	resp, err := c.rest(ctx, token, "/users/"+username+"/orgs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch github organizations: status %d", resp.StatusCode)
	}

	var orgs []struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&orgs); err != nil {
		return nil, err
	}

	result := make([]Organization, 0, len(orgs))
	for _, org := range orgs {
		result = append(result, Organization{Login: org.Login, AvatarURL: org.AvatarURL})
	}
	return result, nil
}

func (c *GitHubClient) FetchUserProfile(ctx context.Context, username, token string) (*Profile, error) {
	resp, err := c.rest(ctx, token, "/users/"+username)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch github profile: status %d", resp.StatusCode)
	}

	var doc struct {
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
		Bio       string `json:"bio"`
		HTMLURL   string `json:"html_url"`
		Location  string `json:"location"`
		Company   string `json:"company"`
		Followers int    `json:"followers"`
		Following int    `json:"following"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	followers, following := doc.Followers, doc.Following
	return &Profile{
		AvatarURL:      doc.AvatarURL,
		DisplayName:    doc.Name,
		Bio:            doc.Bio,
		ProfileURL:     doc.HTMLURL,
		Location:       doc.Location,
		Company:        doc.Company,
		FollowersCount: &followers,
		FollowingCount: &following,
	}, nil
}

func (c *GitHubClient) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	resp, err := c.rest(ctx, token, "/user")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid github token: status %d", resp.StatusCode)
	}

	var doc struct {
		Login     string `json:"login"`
		ID        int64  `json:"id"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	return &UserInfo{
		Username:  doc.Login,
		ID:        fmt.Sprintf("%d", doc.ID),
		Email:     doc.Email,
		AvatarURL: doc.AvatarURL,
	}, nil
}

// ScrapeOrgJoinDate reads the "Joined the <org> organization" entry from the
// user's public contribution timeline. Returns ok=false when the timeline has
// no such entry.
func (c *GitHubClient) ScrapeOrgJoinDate(ctx context.Context, username, orgLogin string) (time.Time, bool, error) {
	url := fmt.Sprintf("%s/%s?tab=contributions", c.cfg.InstanceURL, username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return time.Time{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, false, fmt.Errorf("fetch github timeline: status %d", resp.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return time.Time{}, false, err
	}

	return parseOrgJoinDate(string(html), orgLogin, time.Now().UTC())
}

// parseOrgJoinDate searches timeline HTML for a "Joined the" entry linking to
// the org and parses the <time> element that follows it.
func parseOrgJoinDate(html, orgLogin string, now time.Time) (time.Time, bool, error) {
	linkPattern := fmt.Sprintf(`<a href="/%s"`, orgLogin)

	pos := 0
	for {
		idx := strings.Index(html[pos:], linkPattern)
		if idx < 0 {
			return time.Time{}, false, nil
		}
		abs := pos + idx

		before := html[max(0, abs-100):abs]
		if !strings.Contains(before, "Joined the") {
			pos = abs + len(linkPattern)
			continue
		}

		after := html[abs:min(len(html), abs+1000)]
		open := strings.Index(after, "<time>")
		if open < 0 {
			pos = abs + len(linkPattern)
			continue
		}
		content := after[open+len("<time>"):]
		closeIdx := strings.Index(content, "</time>")
		if closeIdx < 0 {
			pos = abs + len(linkPattern)
			continue
		}

		raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content[:closeIdx]), "on "))
		if t, err := time.Parse("Jan 2, 2006", raw); err == nil {
			return t, true, nil
		}
		if t, err := time.Parse("Jan 2", raw); err == nil {
			// The timeline omits the year for the current year.
			return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true, nil
		}

		pos = abs + len(linkPattern)
	}
}

// FindEarliestOrgEventDate scans the public events feed for the earliest event
// touching the organization, either via the org field or an "org/repo" name.
func (c *GitHubClient) FindEarliestOrgEventDate(ctx context.Context, username, orgLogin string) (time.Time, bool, error) {
	events, err := c.fetchEvents(ctx, username, "", "/users/"+username+"/events/public")
	if err != nil {
		return time.Time{}, false, err
	}

	var earliest time.Time
	found := false
	for _, ev := range events {
		orgEvent := ev.Org != nil && ev.Org.Login == orgLogin
		if !orgEvent && !strings.HasPrefix(ev.Repo.Name, orgLogin+"/") {
			continue
		}
		created, err := time.Parse(time.RFC3339, ev.CreatedAt)
		if err != nil {
			continue
		}
		day := created.UTC().Truncate(24 * time.Hour)
		if !found || day.Before(earliest) {
			earliest = day
			found = true
		}
	}

	return earliest, found, nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Info(err.Error())
		return json.RawMessage(`{}`)
	}
	return data
}
