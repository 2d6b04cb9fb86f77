// Package models defines shared data types for the archive console.
package models

import (
	"errors"
	"time"
)

// MediaType represents the kind of media attached to a message.
type MediaType string

// MediaType constants cover the media kinds the archive backend reports.
const (
	MediaTypePhoto     MediaType = "photo"
	MediaTypeVideo     MediaType = "video"
	MediaTypeDocument  MediaType = "document"
	MediaTypeAudio     MediaType = "audio"
	MediaTypeVoice     MediaType = "voice"
	MediaTypeSticker   MediaType = "sticker"
	MediaTypeAnimation MediaType = "animation"
)

// IsValid reports whether the media type is one the backend can return.
func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypePhoto, MediaTypeVideo, MediaTypeDocument, MediaTypeAudio,
		MediaTypeVoice, MediaTypeSticker, MediaTypeAnimation:
		return true
	}
	return false
}

// DownloadStatus represents the backend-side state of an archived media file.
type DownloadStatus string

// DownloadStatus constants define the possible media download states.
const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusFailed      DownloadStatus = "failed"
)

// validation errors
var (
	ErrInvalidMessageID = errors.New("message id must be positive")
	ErrInvalidGroupID   = errors.New("group id must be positive")
	ErrZeroDate         = errors.New("message date is required")
	ErrUnknownMediaType = errors.New("unknown media type")
)

// MediaInfo describes a media attachment on an archived message.
type MediaInfo struct {
	Type     MediaType      `json:"type"`
	Path     string         `json:"path,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Size     int64          `json:"size,omitempty"`
	Status   DownloadStatus `json:"status,omitempty"`
}

// ForwardInfo describes the origin of a forwarded message.
type ForwardInfo struct {
	FromType string    `json:"from_type,omitempty"` // user, channel, hidden
	FromName string    `json:"from_name,omitempty"`
	FromID   int64     `json:"from_id,omitempty"`
	Date     time.Time `json:"date,omitempty"` // original send time
}

// Reaction is an aggregated emoji reaction on a message.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Message represents one archived chat message.
//
// ID is unique across the whole system and is the de-duplication key;
// MessageID is Telegram's message number, unique only within its group.
type Message struct {
	ID        int64 `json:"id"`
	MessageID int64 `json:"message_id"`
	GroupID   int64 `json:"group_id"`

	// sender
	SenderID       int64  `json:"sender_id,omitempty"`
	SenderUsername string `json:"sender_username,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`

	// content
	Date  time.Time  `json:"date"`
	Text  string     `json:"text,omitempty"`
	Media *MediaInfo `json:"media,omitempty"`

	// forwarding
	IsForwarded bool         `json:"is_forwarded"`
	Forward     *ForwardInfo `json:"forward,omitempty"`

	// state
	IsPinned bool       `json:"is_pinned"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	// annotations
	Reactions []Reaction `json:"reactions,omitempty"`
	Mentions  []string   `json:"mentions,omitempty"`
	Hashtags  []string   `json:"hashtags,omitempty"`
	URLs      []string   `json:"urls,omitempty"`

	// timestamps
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the record at the API boundary.
// A response that fails here is rejected instead of propagating half-empty
// records into the stores.
func (m *Message) Validate() error {
	if m.ID <= 0 || m.MessageID <= 0 {
		return ErrInvalidMessageID
	}
	if m.GroupID <= 0 {
		return ErrInvalidGroupID
	}
	if m.Date.IsZero() {
		return ErrZeroDate
	}
	if m.Media != nil && !m.Media.Type.IsValid() {
		return ErrUnknownMediaType
	}
	return nil
}

// Less orders messages by send time ascending, ties broken by ID ascending.
// This is the display order and the canonical merge order.
func (m *Message) Less(other *Message) bool {
	if !m.Date.Equal(other.Date) {
		return m.Date.Before(other.Date)
	}
	return m.ID < other.ID
}

// MediaKind returns the media type, or "" for text-only messages.
func (m *Message) MediaKind() MediaType {
	if m.Media == nil {
		return ""
	}
	return m.Media.Type
}

// HasMedia reports whether the message carries a media attachment.
func (m *Message) HasMedia() bool {
	return m.Media != nil
}
