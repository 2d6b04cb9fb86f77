package store

import (
	"sync"

	"github.com/telearc/archive-console/internal/models"
)

// GroupStore holds the tracked group list and the current selection.
type GroupStore struct {
	mu       sync.RWMutex
	groups   []models.Group
	selected int64 // 0 means nothing selected
}

// NewGroupStore returns an empty group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{}
}

// Set replaces the whole list. A selection pointing at a group that
// disappeared is cleared.
func (s *GroupStore) Set(groups []models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = make([]models.Group, len(groups))
	copy(s.groups, groups)
	models.SortGroups(s.groups)

	if s.selected != 0 && s.indexOf(s.selected) < 0 {
		s.selected = 0
	}
}

// Upsert inserts or replaces one group and re-sorts the list.
func (s *GroupStore) Upsert(group models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(group.ID); i >= 0 {
		s.groups[i] = group
	} else {
		s.groups = append(s.groups, group)
	}
	models.SortGroups(s.groups)
}

// Get returns one group by id.
func (s *GroupStore) Get(id int64) (models.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.groups[i], true
	}
	return models.Group{}, false
}

// All returns a copy of the list in display order.
func (s *GroupStore) All() []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// Select marks a group as the current one. Selecting an unknown id fails.
func (s *GroupStore) Select(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return false
	}
	s.selected = id
	return true
}

// ClearSelection drops the current selection.
func (s *GroupStore) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = 0
}

// Selected returns the currently selected group.
func (s *GroupStore) Selected() (models.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == 0 {
		return models.Group{}, false
	}
	if i := s.indexOf(s.selected); i >= 0 {
		return s.groups[i], true
	}
	return models.Group{}, false
}

// SelectedID returns the selected group id, 0 when none.
func (s *GroupStore) SelectedID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// indexOf must be called with the lock held.
func (s *GroupStore) indexOf(id int64) int {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return i
		}
	}
	return -1
}
