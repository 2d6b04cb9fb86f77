package models

import (
	"errors"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a download task.
type TaskStatus string

// TaskStatus constants define the possible states of a download task.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsValid reports whether the status is a known task state.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusPaused,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the task will not progress further on its own.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// task validation errors
var (
	ErrTaskNameRequired = errors.New("task name is required")
	ErrTaskGroupMissing = errors.New("task group id is required")
	ErrTaskPathMissing  = errors.New("task destination path is required")
)

// TaskProgress carries the counters the backend reports while a task runs.
type TaskProgress struct {
	TotalMessages     int `json:"total_messages"`
	ProcessedMessages int `json:"processed_messages"`
	DownloadedFiles   int `json:"downloaded_files"`
	FailedFiles       int `json:"failed_files"`
}

// DownloadTask binds a group and one or more rules to a destination path,
// optionally on a recurring schedule.
type DownloadTask struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	GroupID int64   `json:"group_id"`
	RuleIDs []int64 `json:"rule_ids,omitempty"`

	DestinationPath string `json:"destination_path"`

	// Schedule is an opaque cron expression owned by the backend.
	// Empty means a one-off task.
	Schedule string `json:"schedule,omitempty"`

	Status   TaskStatus   `json:"status"`
	Progress TaskProgress `json:"progress"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// timestamps
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate performs basic validation before the task is submitted.
func (t *DownloadTask) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrTaskNameRequired
	}
	if t.GroupID <= 0 {
		return ErrTaskGroupMissing
	}
	if strings.TrimSpace(t.DestinationPath) == "" {
		return ErrTaskPathMissing
	}
	return nil
}

// TaskRun is one execution from a task's run history.
type TaskRun struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     TaskStatus `json:"status"`
	Downloaded int        `json:"downloaded"`
	Error      string     `json:"error,omitempty"`
}
