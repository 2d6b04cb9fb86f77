package models

import "time"

// LogEntry is one line from the backend's system log.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
