package github

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Repository is the subset of a GitHub repository the judges use.
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Archived bool   `json:"archived"`
}

// User is a GitHub account.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Issue is the subset of a GitHub issue the judges use. Pull requests are
// issues too; PullRequest is non-nil for them.
type Issue struct {
	Number      int64     `json:"number"`
	Title       string    `json:"title"`
	State       string    `json:"state"`
	User        User      `json:"user"`
	CreatedAt   time.Time `json:"created_at"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// IsPull reports whether the issue is a pull request.
func (i Issue) IsPull() bool { return i.PullRequest != nil }

// Repository fetches a repository by owner/name.
func (c *Client) Repository(ctx context.Context, fullName string) (Repository, error) {
	p, err := repoPath(fullName)
	if err != nil {
		return Repository{}, err
	}
	var r Repository
	if err := c.get(ctx, p, nil, &r); err != nil {
		return Repository{}, err
	}
	return r, nil
}

// ownerRepos lists the repositories of an owner, one page of up to 100.
func (c *Client) ownerRepos(ctx context.Context, owner string) ([]Repository, error) {
	q := url.Values{}
	q.Set("per_page", "100")
	q.Set("sort", "full_name")
	var out []Repository
	if err := c.get(ctx, "/users/"+url.PathEscape(owner)+"/repos", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve expands a comma-separated repository mask into repositories.
// Items are owner/name or owner/pattern with path.Match wildcards; an
// item starting with - excludes what it matches. Archived repositories
// are left out of wildcard matches. The result is sorted by id.
//
//	Resolve(ctx, "acme/*,-acme/secret,other/tool")
func (c *Client) Resolve(ctx context.Context, mask string) ([]Repository, error) {
	var include, exclude []string
	for _, item := range strings.Split(mask, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.HasPrefix(item, "-") {
			exclude = append(exclude, item[1:])
			continue
		}
		include = append(include, item)
	}
	if len(include) == 0 {
		return nil, fmt.Errorf("github: mask %q selects nothing", mask)
	}

	byID := make(map[int64]Repository)
	for _, item := range include {
		owner, name, ok := strings.Cut(item, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("github: bad mask item %q", item)
		}
		if !strings.ContainsAny(name, "*?[") {
			r, err := c.Repository(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", item, err)
			}
			byID[r.ID] = r
			continue
		}
		repos, err := c.ownerRepos(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", item, err)
		}
		for _, r := range repos {
			if !r.Archived && matchName(item, r.FullName) {
				byID[r.ID] = r
			}
		}
	}

	out := make([]Repository, 0, len(byID))
	for _, r := range byID {
		excluded := false
		for _, x := range exclude {
			if matchName(x, r.FullName) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.logger.Debug("mask resolved", "mask", mask, "repositories", len(out))
	return out, nil
}

// Issue fetches issue number of the repository with the given id.
func (c *Client) Issue(ctx context.Context, repoID, number int64) (Issue, error) {
	p := "/repositories/" + strconv.FormatInt(repoID, 10) + "/issues/" + strconv.FormatInt(number, 10)
	var is Issue
	if err := c.get(ctx, p, nil, &is); err != nil {
		return Issue{}, err
	}
	return is, nil
}

// LatestIssue returns the highest issue number of the repository,
// counting pull requests, or 0 when it has none.
func (c *Client) LatestIssue(ctx context.Context, repoID int64) (int64, error) {
	q := url.Values{}
	q.Set("state", "all")
	q.Set("sort", "created")
	q.Set("direction", "desc")
	q.Set("per_page", "1")
	var out []Issue
	if err := c.get(ctx, "/repositories/"+strconv.FormatInt(repoID, 10)+"/issues", q, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Number, nil
}

// NextIssue returns the existing issue with the smallest number above
// after. It probes after+1 first; when that number is missing (404) or
// deleted (410) it steps over the gap up to the latest issue number. ok
// is false when no issue above after exists yet.
func (c *Client) NextIssue(ctx context.Context, repoID, after int64) (Issue, bool, error) {
	is, err := c.Issue(ctx, repoID, after+1)
	if err == nil {
		return is, true, nil
	}
	if !IsNotFound(err) && !IsGone(err) {
		return Issue{}, false, err
	}

	latest, err := c.LatestIssue(ctx, repoID)
	if err != nil {
		return Issue{}, false, err
	}
	for n := after + 2; n <= latest; n++ {
		is, err := c.Issue(ctx, repoID, n)
		switch {
		case err == nil:
			c.logger.Debug("issue gap skipped", "repository", repoID, "from", after+1, "to", n-1)
			return is, true, nil
		case IsNotFound(err), IsGone(err):
			continue
		default:
			return Issue{}, false, err
		}
	}
	return Issue{}, false, nil
}
