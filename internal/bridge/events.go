package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/telearc/archive-console/internal/models"
)

// Push event types
const (
	EventMessageNew     = "message.new"
	EventMessageUpdated = "message.updated"
	EventMessageDeleted = "message.deleted"
	EventTaskStatus     = "task.status"
	EventTaskProgress   = "task.progress"
	EventGroupUpdated   = "group.updated"
	EventLogNew         = "log.new"
)

// Event is the envelope every push message travels in. Payload stays raw
// until the consumer decodes it by type.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at,omitempty"`
}

// MessageDeletedPayload identifies a removed message.
type MessageDeletedPayload struct {
	GroupID   int64 `json:"group_id"`
	MessageID int64 `json:"message_id"`
}

// TaskStatusPayload carries a task status transition.
type TaskStatusPayload struct {
	TaskID int64             `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// TaskProgressPayload carries updated task counters.
type TaskProgressPayload struct {
	TaskID   int64               `json:"task_id"`
	Progress models.TaskProgress `json:"progress"`
}

// Message decodes the payload of message.new and message.updated events.
func (e Event) Message() (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return models.Message{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return msg, nil
}

// MessageDeleted decodes the payload of message.deleted events.
func (e Event) MessageDeleted() (MessageDeletedPayload, error) {
	var p MessageDeletedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return MessageDeletedPayload{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// TaskStatus decodes the payload of task.status events.
func (e Event) TaskStatus() (TaskStatusPayload, error) {
	var p TaskStatusPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return TaskStatusPayload{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// TaskProgress decodes the payload of task.progress events.
func (e Event) TaskProgress() (TaskProgressPayload, error) {
	var p TaskProgressPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return TaskProgressPayload{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// Group decodes the payload of group.updated events.
func (e Event) Group() (models.Group, error) {
	var g models.Group
	if err := json.Unmarshal(e.Payload, &g); err != nil {
		return models.Group{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return g, nil
}

// LogEntry decodes the payload of log.new events.
func (e Event) LogEntry() (models.LogEntry, error) {
	var entry models.LogEntry
	if err := json.Unmarshal(e.Payload, &entry); err != nil {
		return models.LogEntry{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return entry, nil
}

// NewEvent wraps any payload into an envelope. The broadcasting side uses it
// to keep the wire format in one place.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: raw, SentAt: time.Now().UTC()}, nil
}
