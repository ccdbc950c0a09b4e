// Package github reads workflow runs from the GitHub Actions API using the
// go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// maxPerPage is the largest page size the Actions API accepts.
const maxPerPage = 100

// Client talks to one GitHub server (github.com or an Enterprise instance)
// with one token.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty baseURL targets api.github.com; anything else is treated as a
// GitHub Enterprise Server base URL.
func NewClient(baseURL, token string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", baseURL, err)
		}
	}

	return &Client{gh: client}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchRuns retrieves up to maxResults runs of a workflow on a branch, newest
// first. workflowID is either a numeric workflow ID or a workflow file name
// such as "ci.yml". It pages through the API until maxResults runs have been
// collected or the results run out.
func (c *Client) FetchRuns(ctx context.Context, repoFullName, branch, workflowID string, maxResults int) ([]model.RunRecord, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		return []model.RunRecord{}, nil
	}

	opts := &gh.ListWorkflowRunsOptions{
		Branch: branch,
		ListOptions: gh.ListOptions{
			PerPage: min(maxResults, maxPerPage),
		},
	}

	endpoint := repoFullName + "/" + workflowID + "@" + branch
	runs := make([]model.RunRecord, 0, min(maxResults, maxPerPage))

	for {
		page, resp, err := c.listRuns(ctx, owner, repo, workflowID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing runs for %s (page %d): %w", endpoint, opts.Page, err)
		}

		logRateLimit(resp, endpoint, opts.Page, len(page.WorkflowRuns))

		for _, r := range page.WorkflowRuns {
			runs = append(runs, mapWorkflowRun(r, workflowID))
			if len(runs) == maxResults {
				return runs, nil
			}
		}

		if resp.NextPage == 0 || len(page.WorkflowRuns) == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return runs, nil
}

// listRuns dispatches to the by-ID or by-file-name endpoint. The API only
// accepts a bare file name, so a workflow path such as
// .github/workflows/ci.yml is reduced to ci.yml.
func (c *Client) listRuns(ctx context.Context, owner, repo, workflowID string, opts *gh.ListWorkflowRunsOptions) (*gh.WorkflowRuns, *gh.Response, error) {
	if id, err := strconv.ParseInt(workflowID, 10, 64); err == nil {
		return c.gh.Actions.ListWorkflowRunsByID(ctx, owner, repo, id, opts)
	}
	return c.gh.Actions.ListWorkflowRunsByFileName(ctx, owner, repo, path.Base(workflowID), opts)
}

// mapWorkflowRun converts a go-github WorkflowRun to a domain model RunRecord.
// It uses GetXxx() helper methods to avoid nil pointer panics, except for
// Conclusion, whose nil value means the run has not finished.
func mapWorkflowRun(r *gh.WorkflowRun, workflowID string) model.RunRecord {
	var conclusion *string
	if r.Conclusion != nil {
		val := r.GetConclusion()
		conclusion = &val
	}

	return model.RunRecord{
		WorkflowName: r.GetName(),
		RunID:        r.GetID(),
		RunNumber:    r.GetRunNumber(),
		Event:        r.GetEvent(),
		HeadSHA:      r.GetHeadSHA(),
		Status:       r.GetStatus(),
		Conclusion:   conclusion,
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
		StartedAt:    r.GetRunStartedAt().Time,
		RunAttempt:   r.GetRunAttempt(),
		URL:          r.GetHTMLURL(),
		WorkflowID:   workflowID,
		WorkflowPath: r.GetPath(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
