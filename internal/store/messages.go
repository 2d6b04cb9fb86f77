// Package store holds the in-memory client state: the canonical message
// list for the selected group, the group and task lists, and the
// download-state overlay. Stores are plain dependency-injected objects;
// every mutation goes through their methods.
package store

import (
	"reflect"
	"sort"
	"sync"

	"github.com/telearc/archive-console/internal/models"
)

// MergeStats reports what a merge changed, so callers can decide whether to
// follow new arrivals or keep the viewport anchored.
type MergeStats struct {
	Added          int
	Updated        int
	PrependedOlder bool
	AppendedNewer  bool
}

// Changed reports whether the merge altered the list at all.
func (s MergeStats) Changed() bool {
	return s.Added > 0 || s.Updated > 0
}

// mergeMessages reconciles an incoming batch into the current ordered list.
// The result contains exactly the union of ids, sorted by (date, id)
// ascending, with incoming records winning on conflict. An empty batch
// returns current unchanged, same backing array.
func mergeMessages(current, batch []models.Message) ([]models.Message, MergeStats) {
	if len(batch) == 0 {
		return current, MergeStats{}
	}

	index := make(map[int64]int, len(current))
	for i := range current {
		index[current[i].ID] = i
	}

	// bounds of the existing list, for prepend/append detection
	var oldest, newest models.Message
	if len(current) > 0 {
		oldest, newest = current[0], current[0]
		for i := 1; i < len(current); i++ {
			if current[i].Less(&oldest) {
				oldest = current[i]
			}
			if newest.Less(&current[i]) {
				newest = current[i]
			}
		}
	}

	var stats MergeStats
	merged := make([]models.Message, len(current), len(current)+len(batch))
	copy(merged, current)

	for _, incoming := range batch {
		if pos, ok := index[incoming.ID]; ok {
			if !reflect.DeepEqual(merged[pos], incoming) {
				merged[pos] = incoming
				stats.Updated++
			}
			continue
		}

		index[incoming.ID] = len(merged)
		merged = append(merged, incoming)
		stats.Added++

		switch {
		case len(current) == 0:
			stats.AppendedNewer = true
		case incoming.Less(&oldest):
			stats.PrependedOlder = true
		case newest.Less(&incoming):
			stats.AppendedNewer = true
		}
	}

	if !stats.Changed() {
		return current, stats
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Less(&merged[j])
	})
	return merged, stats
}

// MessageStore is the canonical ordered message list for one selected group.
// Safe for concurrent use; the real-time bridge and the UI loop both touch it.
type MessageStore struct {
	mu       sync.RWMutex
	groupID  int64
	messages []models.Message
	version  uint64
}

// NewMessageStore returns an empty store bound to no group.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// GroupID returns the group the store currently holds messages for.
func (s *MessageStore) GroupID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupID
}

// Version increments on every mutation. Renderers use it to skip redraws.
func (s *MessageStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reset clears the store and binds it to a new group.
func (s *MessageStore) Reset(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupID = groupID
	s.messages = nil
	s.version++
}

// Replace installs a full page for a group, discarding prior contents.
// Used for the initial load after group selection.
func (s *MessageStore) Replace(groupID int64, msgs []models.Message) MergeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groupID = groupID
	s.messages = nil
	merged, stats := mergeMessages(nil, msgs)
	s.messages = merged
	s.version++
	return stats
}

// Merge reconciles a batch into the list. The batch is discarded when it was
// fetched for a group that is no longer selected; ok reports acceptance.
func (s *MessageStore) Merge(groupID int64, batch []models.Message) (stats MergeStats, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if groupID != s.groupID {
		return MergeStats{}, false
	}

	merged, stats := mergeMessages(s.messages, batch)
	if stats.Changed() {
		s.messages = merged
		s.version++
	}
	return stats, true
}

// Remove deletes one message by id.
func (s *MessageStore) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.version++
			return true
		}
	}
	return false
}

// Get returns one message by id.
func (s *MessageStore) Get(id int64) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// Messages returns a copy of the ordered list.
func (s *MessageStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of held messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Oldest returns the first message in display order.
func (s *MessageStore) Oldest() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return models.Message{}, false
	}
	return s.messages[0], true
}

// Newest returns the last message in display order.
func (s *MessageStore) Newest() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return models.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
