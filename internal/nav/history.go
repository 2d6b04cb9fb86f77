// Package nav keeps the bounded back/forward trail of jump actions.
package nav

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultLimit caps the trail when no explicit limit is configured.
const DefaultLimit = 50

// EntryType says what kind of jump an entry records.
type EntryType string

const (
	// EntryGroup records switching to a group.
	EntryGroup EntryType = "group"
	// EntryMessage records jumping to a specific message.
	EntryMessage EntryType = "message"
)

// Entry is one step in the navigation trail.
type Entry struct {
	Type      EntryType `json:"type"`
	GroupID   int64     `json:"group_id"`
	MessageID int64     `json:"message_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// equivalent ignores timestamp and title so a repeated jump to the same
// place is recognized as a duplicate.
func (e Entry) equivalent(other Entry) bool {
	return e.Type == other.Type && e.GroupID == other.GroupID && e.MessageID == other.MessageID
}

// History is a bounded trail with browser-style back/forward semantics.
type History struct {
	mu      sync.Mutex
	entries []Entry
	pos     int // index of the current entry, -1 when empty
	limit   int
}

// New builds an empty history capped at limit entries.
func New(limit int) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &History{pos: -1, limit: limit}
}

// Push appends a jump at the current position. Pushing a duplicate of the
// current entry is a no-op; pushing while positioned mid-trail truncates the
// forward part first; the oldest entry is evicted beyond the cap.
func (h *History) Push(entry Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos >= 0 && h.entries[h.pos].equivalent(entry) {
		return
	}

	// drop forward history
	h.entries = h.entries[:h.pos+1]
	h.entries = append(h.entries, entry)
	h.pos++

	if len(h.entries) > h.limit {
		h.entries = h.entries[1:]
		h.pos--
	}
}

// Back steps to the previous entry and returns it.
func (h *History) Back() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos <= 0 {
		return Entry{}, false
	}
	h.pos--
	return h.entries[h.pos], true
}

// Forward steps to the next entry and returns it.
func (h *History) Forward() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos < 0 || h.pos >= len(h.entries)-1 {
		return Entry{}, false
	}
	h.pos++
	return h.entries[h.pos], true
}

// Current returns the entry the trail is positioned at.
func (h *History) Current() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pos < 0 {
		return Entry{}, false
	}
	return h.entries[h.pos], true
}

// CanBack reports whether Back would move.
func (h *History) CanBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos > 0
}

// CanForward reports whether Forward would move.
func (h *History) CanForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos >= 0 && h.pos < len(h.entries)-1
}

// Len returns the number of entries in the trail.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of the trail, oldest first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// snapshot is the persisted wire form of the trail.
type snapshot struct {
	Entries  []Entry `json:"entries"`
	Position int     `json:"position"`
}

// Snapshot serializes the trail for durable storage.
func (h *History) Snapshot() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.Marshal(snapshot{Entries: h.entries, Position: h.pos})
}

// Restore replaces the trail from a stored snapshot. Oversized snapshots are
// trimmed to the cap, keeping the most recent entries.
func (h *History) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode navigation history: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := snap.Entries
	pos := snap.Position
	if len(entries) > h.limit {
		drop := len(entries) - h.limit
		entries = entries[drop:]
		pos -= drop
	}
	if pos >= len(entries) {
		pos = len(entries) - 1
	}
	if pos < -1 {
		pos = -1
	}
	if len(entries) == 0 {
		pos = -1
	}

	h.entries = entries
	h.pos = pos
	return nil
}
