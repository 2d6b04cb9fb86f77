package store

import (
	"sort"
	"sync"

	"github.com/telearc/archive-console/internal/models"
)

// TaskStore holds the download-task list, kept fresh by REST responses and
// task events from the push channel.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[int64]models.DownloadTask
}

// NewTaskStore returns an empty task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[int64]models.DownloadTask)}
}

// Set replaces the whole task list.
func (s *TaskStore) Set(tasks []models.DownloadTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[int64]models.DownloadTask, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
}

// Upsert inserts or replaces one task.
func (s *TaskStore) Upsert(task models.DownloadTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Remove deletes a task by id.
func (s *TaskStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// SetStatus updates only the status of a task, for push events that carry no
// full record. Unknown ids are ignored.
func (s *TaskStore) SetStatus(id int64, status models.TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	task.Status = status
	s.tasks[id] = task
	return true
}

// SetProgress updates only the progress counters of a task.
func (s *TaskStore) SetProgress(id int64, progress models.TaskProgress) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	task.Progress = progress
	s.tasks[id] = task
	return true
}

// Get returns one task by id.
func (s *TaskStore) Get(id int64) (models.DownloadTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// All returns the tasks sorted by id.
func (s *TaskStore) All() []models.DownloadTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DownloadTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
