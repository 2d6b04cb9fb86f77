// Package api implements the REST client for the archive backend.
//
// Every read goes through a shared rate limiter and a single retry policy;
// mutations are sent exactly once. All failures come back as *APIError so
// callers can branch on the error kind instead of status codes.
package api

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/telearc/archive-console/internal/config"
	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/models"
)

// Client talks to the archive backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryPolicy
	log     *logger.Logger
}

// New builds a client from configuration.
func New(cfg *config.Config, log *logger.Logger) *Client {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts

	return &Client{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		token:   cfg.AuthToken,
		http:    &http.Client{Timeout: cfg.RequestTimeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		retry:   policy,
		log:     log.Component("api"),
	}
}

// NewWithBaseURL builds a client for a known server address. Used by tests
// and tools that bypass configuration loading.
func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 0),
		retry:   DefaultRetryPolicy(),
		log:     logger.Nop(),
	}
}

// SetToken replaces the bearer token for subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// SetRetryPolicy overrides the retry policy. Mainly for tests that exercise
// failure paths without waiting out the production backoff schedule.
func (c *Client) SetRetryPolicy(p RetryPolicy) { c.retry = p }

// ============================================================================
// Health
// ============================================================================

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============================================================================
// Groups
// ============================================================================

// ListGroups returns every tracked group.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var resp GroupsResponse
	if err := c.get(ctx, "/api/groups", &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// AddGroup registers a new group by username.
func (c *Client) AddGroup(ctx context.Context, username string) (*models.Group, error) {
	if strings.TrimSpace(username) == "" {
		return nil, validationError(fmt.Errorf("group username is required"))
	}
	var group models.Group
	if err := c.doJSON(ctx, http.MethodPost, "/api/groups", AddGroupRequest{Username: username}, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// SyncGroup asks the backend to pull fresh messages for a group.
func (c *Client) SyncGroup(ctx context.Context, groupID int64) (*SyncResult, error) {
	var result SyncResult
	path := fmt.Sprintf("/api/groups/%d/sync", groupID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateGroup applies a partial update (activity, pinning) to a group.
func (c *Client) UpdateGroup(ctx context.Context, groupID int64, req UpdateGroupRequest) (*models.Group, error) {
	var group models.Group
	path := fmt.Sprintf("/api/groups/%d", groupID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// ============================================================================
// Messages
// ============================================================================

// ListMessages fetches one page of a group's history, newest first. A nil
// filter returns everything.
func (c *Client) ListMessages(ctx context.Context, groupID int64, skip, limit int, filter *models.MessageFilter) (*MessagesResponse, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, validationError(err)
		}
		for key, vals := range filter.Query() {
			for _, v := range vals {
				q.Set(key, v)
			}
		}
	}

	var resp MessagesResponse
	path := fmt.Sprintf("/api/groups/%d/messages?%s", groupID, q.Encode())
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage posts a text message into a group through the backend.
func (c *Client) SendMessage(ctx context.Context, groupID int64, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validationError(fmt.Errorf("message text is required"))
	}
	var msg models.Message
	path := fmt.Sprintf("/api/groups/%d/messages", groupID)
	if err := c.doJSON(ctx, http.MethodPost, path, SendMessageRequest{Text: text}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message from the archive.
func (c *Client) DeleteMessage(ctx context.Context, groupID, messageID int64) error {
	path := fmt.Sprintf("/api/groups/%d/messages/%d", groupID, messageID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ============================================================================
// Rules
// ============================================================================

// ListRules returns all saved filter rules.
func (c *Client) ListRules(ctx context.Context) ([]models.Rule, error) {
	var resp RulesResponse
	if err := c.get(ctx, "/api/rules", &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// GetRule fetches a single rule by id.
func (c *Client) GetRule(ctx context.Context, ruleID int64) (*models.Rule, error) {
	var rule models.Rule
	path := fmt.Sprintf("/api/rules/%d", ruleID)
	if err := c.get(ctx, path, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// CreateRule saves a new filter rule.
func (c *Client) CreateRule(ctx context.Context, rule models.Rule) (*models.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, validationError(err)
	}
	var created models.Rule
	if err := c.doJSON(ctx, http.MethodPost, "/api/rules", rule, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRule replaces an existing rule.
func (c *Client) UpdateRule(ctx context.Context, rule models.Rule) (*models.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, validationError(err)
	}
	var updated models.Rule
	path := fmt.Sprintf("/api/rules/%d", rule.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, rule, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRule removes a rule.
func (c *Client) DeleteRule(ctx context.Context, ruleID int64) error {
	path := fmt.Sprintf("/api/rules/%d", ruleID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ============================================================================
// Tasks
// ============================================================================

// ListTasks returns all download tasks.
func (c *Client) ListTasks(ctx context.Context) ([]models.DownloadTask, error) {
	var resp TasksResponse
	if err := c.get(ctx, "/api/tasks", &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	var task models.DownloadTask
	path := fmt.Sprintf("/api/tasks/%d", taskID)
	if err := c.get(ctx, path, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask registers a new download task.
func (c *Client) CreateTask(ctx context.Context, task models.DownloadTask) (*models.DownloadTask, error) {
	if err := task.Validate(); err != nil {
		return nil, validationError(err)
	}
	var created models.DownloadTask
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks", task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask replaces an existing task definition.
func (c *Client) UpdateTask(ctx context.Context, task models.DownloadTask) (*models.DownloadTask, error) {
	if err := task.Validate(); err != nil {
		return nil, validationError(err)
	}
	var updated models.DownloadTask
	path := fmt.Sprintf("/api/tasks/%d", task.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, task, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	path := fmt.Sprintf("/api/tasks/%d", taskID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// StartTask begins or resumes task execution.
func (c *Client) StartTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return c.taskAction(ctx, taskID, "start")
}

// PauseTask suspends a running task.
func (c *Client) PauseTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return c.taskAction(ctx, taskID, "pause")
}

// StopTask aborts a task and resets its progress.
func (c *Client) StopTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return c.taskAction(ctx, taskID, "stop")
}

func (c *Client) taskAction(ctx context.Context, taskID int64, action string) (*models.DownloadTask, error) {
	var task models.DownloadTask
	path := fmt.Sprintf("/api/tasks/%d/%s", taskID, action)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTaskRuns returns the execution history of a task.
func (c *Client) ListTaskRuns(ctx context.Context, taskID int64) ([]models.TaskRun, error) {
	var resp TaskRunsResponse
	path := fmt.Sprintf("/api/tasks/%d/runs", taskID)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// ============================================================================
// Logs
// ============================================================================

// ListLogs fetches backend log entries, optionally filtered by level.
func (c *Client) ListLogs(ctx context.Context, level string, limit int) (*LogsResponse, error) {
	q := url.Values{}
	if level != "" {
		q.Set("level", level)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp LogsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearLogs wipes the backend log buffer.
func (c *Client) ClearLogs(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/logs", nil, nil)
}

// ============================================================================
// Dashboard
// ============================================================================

// DashboardOverview returns the headline archive counters.
func (c *Client) DashboardOverview(ctx context.Context) (*models.Overview, error) {
	var overview models.Overview
	if err := c.get(ctx, "/api/dashboard/overview", &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// GroupSummaries returns per-group activity for the dashboard.
func (c *Client) GroupSummaries(ctx context.Context) ([]models.GroupSummary, error) {
	var summaries []models.GroupSummary
	if err := c.get(ctx, "/api/dashboard/groups", &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// RecentActivity returns the latest archive events for the dashboard feed.
func (c *Client) RecentActivity(ctx context.Context, limit int) ([]models.ActivityItem, error) {
	path := "/api/dashboard/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var items []models.ActivityItem
	if err := c.get(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DownloadStats returns aggregate media download statistics.
func (c *Client) DownloadStats(ctx context.Context) (*models.DownloadStats, error) {
	var stats models.DownloadStats
	if err := c.get(ctx, "/api/dashboard/downloads", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SystemInfo returns backend version, uptime and storage figures.
func (c *Client) SystemInfo(ctx context.Context) (*models.SystemInfo, error) {
	var info models.SystemInfo
	if err := c.get(ctx, "/api/dashboard/system", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ============================================================================
// Transport
// ============================================================================

// get wraps doJSON with the retry policy. Only reads are retried since they
// are safe to repeat.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, out)
	})
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return transportError(err, requestID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp, requestID)
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Str("path", path).
			Str("request_id", requestID).
			Msg("api error")
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError turns a non-2xx response into a classified *APIError.
func decodeAPIError(resp *http.Response, requestID string) *APIError {
	var payload ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	message := payload.Error
	if message == "" {
		message = resp.Status
	}
	if payload.Details != "" {
		message += ": " + payload.Details
	}

	return &APIError{
		Kind:       classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    message,
		RequestID:  requestID,
	}
}
