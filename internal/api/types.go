package api

import (
	"time"

	"github.com/telearc/archive-console/internal/models"
)

// ============================================================================
// Common Types
// ============================================================================

// ErrorResponse is the error envelope the backend returns for failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatusResponse acknowledges an operation with no payload.
type StatusResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// Groups Types
// ============================================================================

// GroupsResponse wraps the group listing.
type GroupsResponse struct {
	Groups []models.Group `json:"groups"`
	Total  int            `json:"total"`
}

// AddGroupRequest registers a new group by its public username or invite link.
type AddGroupRequest struct {
	Username string `json:"username"`
}

// UpdateGroupRequest carries partial group updates. Nil fields are left
// untouched by the server.
type UpdateGroupRequest struct {
	IsActive *bool `json:"is_active,omitempty"`
	IsPinned *bool `json:"is_pinned,omitempty"`
	PinOrder *int  `json:"pin_order,omitempty"`
}

// SyncResult reports the outcome of a manual group sync.
type SyncResult struct {
	GroupID     int64     `json:"group_id"`
	NewMessages int       `json:"new_messages"`
	SyncedAt    time.Time `json:"synced_at"`
}

// ============================================================================
// Messages Types
// ============================================================================

// MessagesResponse is one page of a group's message history, newest first.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
	HasMore  bool             `json:"has_more"`
}

// SendMessageRequest posts a new text message into a group.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// ============================================================================
// Rules / Tasks Types
// ============================================================================

// RulesResponse wraps the rule listing.
type RulesResponse struct {
	Rules []models.Rule `json:"rules"`
	Total int           `json:"total"`
}

// TasksResponse wraps the download-task listing.
type TasksResponse struct {
	Tasks []models.DownloadTask `json:"tasks"`
	Total int                   `json:"total"`
}

// TaskRunsResponse wraps the run history of one task.
type TaskRunsResponse struct {
	Runs []models.TaskRun `json:"runs"`
}

// ============================================================================
// Logs Types
// ============================================================================

// LogsResponse is one page of backend log entries, newest first.
type LogsResponse struct {
	Logs  []models.LogEntry `json:"logs"`
	Total int               `json:"total"`
}
