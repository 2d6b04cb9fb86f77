package models

import "time"

// Overview contains the headline counters for the dashboard page.
type Overview struct {
	TotalGroups     int   `json:"total_groups"`
	ActiveGroups    int   `json:"active_groups"`
	TotalMessages   int64 `json:"total_messages"`
	MessagesToday   int64 `json:"messages_today"`
	MediaFiles      int64 `json:"media_files"`
	DownloadedFiles int64 `json:"downloaded_files"`
	RunningTasks    int   `json:"running_tasks"`
}

// GroupSummary is the per-group row on the dashboard.
type GroupSummary struct {
	GroupID       int64      `json:"group_id"`
	Title         string     `json:"title"`
	MessageCount  int64      `json:"message_count"`
	MediaCount    int64      `json:"media_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}

// ActivityItem is one entry of the recent-activity feed.
type ActivityItem struct {
	Type      string    `json:"type"` // message, task, group, system
	GroupID   int64     `json:"group_id,omitempty"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// MediaTypeCount aggregates download statistics per media type.
type MediaTypeCount struct {
	Type  MediaType `json:"type"`
	Files int       `json:"files"`
	Bytes int64     `json:"bytes"`
}

// DownloadStats aggregates media download statistics.
type DownloadStats struct {
	TotalFiles      int              `json:"total_files"`
	FailedFiles     int              `json:"failed_files"`
	ActiveDownloads int              `json:"active_downloads"`
	TotalBytes      int64            `json:"total_bytes"`
	ByType          []MediaTypeCount `json:"by_type,omitempty"`
}

// SystemInfo describes the backend process for the dashboard footer.
type SystemInfo struct {
	Version          string `json:"version"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
	StorageFreeBytes int64  `json:"storage_free_bytes"`
	ConnectedClients int    `json:"connected_clients"`
}
