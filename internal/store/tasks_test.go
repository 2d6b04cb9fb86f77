package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/models"
)

func TestTaskStore_StatusAndProgressEvents(t *testing.T) {
	s := NewTaskStore()
	s.Set([]models.DownloadTask{
		{ID: 1, Name: "one", Status: models.TaskStatusPending},
		{ID: 2, Name: "two", Status: models.TaskStatusPending},
	})

	assert.True(t, s.SetStatus(1, models.TaskStatusRunning))
	assert.False(t, s.SetStatus(99, models.TaskStatusRunning), "unknown task ignored")

	task, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusRunning, task.Status)

	progress := models.TaskProgress{TotalMessages: 100, ProcessedMessages: 40, DownloadedFiles: 12}
	assert.True(t, s.SetProgress(1, progress))

	task, _ = s.Get(1)
	assert.Equal(t, progress, task.Progress)
	assert.Equal(t, models.TaskStatusRunning, task.Status, "progress update keeps status")
}

func TestTaskStore_AllSortedById(t *testing.T) {
	s := NewTaskStore()
	s.Upsert(models.DownloadTask{ID: 3, Name: "c"})
	s.Upsert(models.DownloadTask{ID: 1, Name: "a"})
	s.Upsert(models.DownloadTask{ID: 2, Name: "b"})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	s.Remove(2)
	assert.Len(t, s.All(), 2)
}
