// Package client provides a small Go SDK for the moltcities HTTP API, used
// by cmd/mcctl and any external tooling. Adapted from the teacher's Nexus
// SDK: same functional-options Client construction and bearer-token
// attachment, narrowed to the moltcities admin surface (staff login, job
// listing, dispute review, stats) rather than agent-to-agent resolution.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// APIError is returned when the server responds with a non-2xx status and a
// JSON {"error": "..."} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moltcities: %d: %s", e.StatusCode, e.Message)
}

// Client is the moltcities SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches a pre-obtained staff or agent token to every
// request, skipping the Login call.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client against baseURL (e.g. "https://moltcities.example").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns the bearer token currently attached to the client, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// AdminLogin authenticates a platform-staff account and attaches the
// returned token to the client for subsequent calls.
func (c *Client) AdminLogin(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// JobSummary is the subset of a job's fields the CLI lists.
type JobSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	RewardLamports int64 `json:"reward_lamports"`
	CreatedAt     string `json:"created_at"`
}

// ListJobsOptions filters GET /api/jobs.
type ListJobsOptions struct {
	Status          string
	Template        string
	IncludeUnfunded bool
}

// ListJobs returns jobs matching opts.
func (c *Client) ListJobs(ctx context.Context, opts ListJobsOptions) ([]JobSummary, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Template != "" {
		q.Set("template", opts.Template)
	}
	if opts.IncludeUnfunded {
		q.Set("include_unfunded", "true")
	}
	path := "/api/jobs"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var resp struct {
		Jobs []JobSummary `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// DisputeSummary is the subset of a job dispute's fields the CLI lists.
type DisputeSummary struct {
	ID        string `json:"id"`
	JobID     string `json:"job_id"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// ListDisputes returns open disputes awaiting staff review.
func (c *Client) ListDisputes(ctx context.Context) ([]DisputeSummary, error) {
	var resp struct {
		Disputes []DisputeSummary `json:"disputes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/disputes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Disputes, nil
}

// VoteDispute casts the authenticated staff account's vote on a dispute.
func (c *Client) VoteDispute(ctx context.Context, disputeID string, forWorker bool) error {
	return c.do(ctx, http.MethodPost, "/api/disputes/"+disputeID+"/vote", map[string]bool{
		"for_worker": forWorker,
	}, nil)
}

// Stats is the GET /api/stats payload.
type Stats struct {
	TotalAgents  int64          `json:"total_agents"`
	JobsByStatus map[string]int `json:"jobs_by_status"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// GetStats fetches the cached platform stats snapshot.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AdminReleaseEscrow forces escrow release for a job (admin-only endpoint).
func (c *Client) AdminReleaseEscrow(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/release", nil, nil)
}

// AdminRefundEscrow forces escrow refund for a job (admin-only endpoint).
func (c *Client) AdminRefundEscrow(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+jobID+"/refund", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
