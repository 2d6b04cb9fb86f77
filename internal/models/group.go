package models

import (
	"errors"
	"sort"
	"time"
)

// group validation errors
var (
	ErrInvalidGroupTitle = errors.New("group title is required")
)

// Group represents a Telegram group or channel tracked by the archive.
type Group struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`

	// state
	MemberCount int  `json:"member_count"`
	IsActive    bool `json:"is_active"`
	IsPinned    bool `json:"is_pinned"`
	PinOrder    int  `json:"pin_order,omitempty"`

	Description string `json:"description,omitempty"`

	// permission flags as the backend account sees them
	CanSendMessages   bool `json:"can_send_messages"`
	CanDeleteMessages bool `json:"can_delete_messages"`

	// timestamps
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks the record at the API boundary.
func (g *Group) Validate() error {
	if g.ID <= 0 {
		return ErrInvalidGroupID
	}
	if g.Title == "" {
		return ErrInvalidGroupTitle
	}
	return nil
}

// SortGroups orders groups for display: pinned first (by pin order), then
// active before paused, then most recently updated. Active-before-inactive
// outranks recency for unpinned groups.
func SortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if a.IsPinned && b.IsPinned && a.PinOrder != b.PinOrder {
			return a.PinOrder < b.PinOrder
		}
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
