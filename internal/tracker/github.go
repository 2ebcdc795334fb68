// Package tracker talks to the GitHub issues that carry capture requests.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/veille/internal/config"
)

// CaptureIssueTitle is the title given to issues opened for a capture.
const CaptureIssueTitle = "Article à traiter"

// Issue is one pending capture request.
type Issue struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

// WorkflowRun is a GitHub Actions run summary.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	Event      string    `json:"event"`
	HeadBranch string    `json:"head_branch"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Client communicates with the GitHub REST API for one repository.
type Client struct {
	baseURL    string
	token      string
	owner      string
	repo       string
	label      string
	httpClient *http.Client
}

func NewClient(baseURL, token, owner, repo, label string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		owner:   owner,
		repo:    repo,
		label:   label,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewFromConfig builds a Client from the tracker settings.
func NewFromConfig(cfg config.Config) (*Client, error) {
	if err := cfg.ValidateTracker(); err != nil {
		return nil, err
	}
	return NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubUser, cfg.RepoName, cfg.PendingLabel, cfg.TrackerTimeout), nil
}

// Repo returns "owner/repo".
func (c *Client) Repo() string {
	return c.owner + "/" + c.repo
}

func (c *Client) repoURL(parts ...string) string {
	return c.baseURL + "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo) + "/" + strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, u string, in, out any, okStatus ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, u, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ListPending returns open issues carrying the pending label, oldest first
// as GitHub returns them. Pull requests are skipped.
func (c *Client) ListPending(ctx context.Context) ([]Issue, error) {
	q := url.Values{}
	q.Set("labels", c.label)
	q.Set("state", "open")
	q.Set("per_page", "100")

	var issues []Issue
	if err := c.do(ctx, http.MethodGet, c.repoURL("issues")+"?"+q.Encode(), nil, &issues, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list pending issues: %w", err)
	}

	out := issues[:0]
	for _, is := range issues {
		if is.PullRequest == nil {
			out = append(out, is)
		}
	}
	return out, nil
}

// Comment posts body on issue n.
func (c *Client) Comment(ctx context.Context, n int, body string) error {
	u := c.repoURL("issues", strconv.Itoa(n), "comments")
	if err := c.do(ctx, http.MethodPost, u, map[string]string{"body": body}, nil, http.StatusCreated, http.StatusOK); err != nil {
		return fmt.Errorf("comment on #%d: %w", n, err)
	}
	return nil
}

// Close marks issue n as closed. Closing a closed issue succeeds.
func (c *Client) Close(ctx context.Context, n int) error {
	u := c.repoURL("issues", strconv.Itoa(n))
	if err := c.do(ctx, http.MethodPatch, u, map[string]string{"state": "closed"}, nil, http.StatusOK); err != nil {
		return fmt.Errorf("close #%d: %w", n, err)
	}
	return nil
}

// CapturePayload is the issue body written for a capture, read back by the
// request parser's structured path.
type CapturePayload struct {
	URL  string   `json:"url"`
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

// CreateCaptureIssue opens a pending issue for a capture and returns its
// number.
func (c *Client) CreateCaptureIssue(ctx context.Context, p CapturePayload) (int, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal capture: %w", err)
	}

	in := map[string]any{
		"title":  CaptureIssueTitle,
		"body":   string(body),
		"labels": []string{c.label},
	}
	var created Issue
	if err := c.do(ctx, http.MethodPost, c.repoURL("issues"), in, &created, http.StatusCreated); err != nil {
		return 0, fmt.Errorf("create issue: %w", err)
	}
	return created.Number, nil
}

// DispatchWorkflow triggers a workflow_dispatch run of workflow on ref.
func (c *Client) DispatchWorkflow(ctx context.Context, workflow, ref string) error {
	u := c.repoURL("actions", "workflows", url.PathEscape(workflow), "dispatches")
	if err := c.do(ctx, http.MethodPost, u, map[string]string{"ref": ref}, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("dispatch %s: %w", workflow, err)
	}
	return nil
}

// ListRuns returns the most recent runs of workflow.
func (c *Client) ListRuns(ctx context.Context, workflow string, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = 5
	}
	u := c.repoURL("actions", "workflows", url.PathEscape(workflow), "runs") + "?per_page=" + strconv.Itoa(limit)

	var resp struct {
		TotalCount   int           `json:"total_count"`
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", workflow, err)
	}
	if len(resp.WorkflowRuns) > limit {
		resp.WorkflowRuns = resp.WorkflowRuns[:limit]
	}
	return resp.WorkflowRuns, nil
}
