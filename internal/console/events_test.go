package console

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/bridge"
	"github.com/telearc/archive-console/internal/models"
)

func mustEvent(t *testing.T, eventType string, payload any) bridge.Event {
	t.Helper()
	evt, err := bridge.NewEvent(eventType, payload)
	require.NoError(t, err)
	return evt
}

func TestHandleEvent_MessageForSelectedGroupMerges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SelectGroup(ctx, 1001))
	before := svc.Messages().Len()

	msg := models.Message{
		ID:      900001,
		GroupID: 1001,
		Text:    "fresh from the wire",
		Date:    time.Now().UTC(),
	}
	svc.HandleEvent(mustEvent(t, bridge.EventMessageNew, msg))

	assert.Equal(t, before+1, svc.Messages().Len())
	got, ok := svc.Messages().Get(900001)
	require.True(t, ok)
	assert.Equal(t, "fresh from the wire", got.Text)
	assert.Zero(t, svc.UnseenCount(), "selected-group traffic is not unseen")
}

func TestHandleEvent_MessageForOtherGroupBumpsUnseen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SelectGroup(ctx, 1001))
	before := svc.Messages().Len()

	svc.HandleEvent(mustEvent(t, bridge.EventMessageNew, models.Message{
		ID: 900002, GroupID: 1002, Text: "elsewhere",
	}))
	svc.HandleEvent(mustEvent(t, bridge.EventMessageDeleted, bridge.MessageDeletedPayload{
		GroupID: 1002, MessageID: 1,
	}))

	assert.Equal(t, int64(2), svc.UnseenCount())
	assert.Equal(t, before, svc.Messages().Len(), "other-group events never touch the list")

	// switching groups resets the counter
	require.NoError(t, svc.SelectGroup(ctx, 1002))
	assert.Zero(t, svc.UnseenCount())
}

func TestHandleEvent_MessageUpdatedReplacesInPlace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SelectGroup(ctx, 1001))

	head, ok := svc.Messages().Newest()
	require.True(t, ok)
	before := svc.Messages().Len()

	head.Text = head.Text + " (edited)"
	svc.HandleEvent(mustEvent(t, bridge.EventMessageUpdated, head))

	assert.Equal(t, before, svc.Messages().Len())
	got, ok := svc.Messages().Get(head.ID)
	require.True(t, ok)
	assert.Contains(t, got.Text, "(edited)")
}

func TestHandleEvent_MessageDeletedRemovesFromList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SelectGroup(ctx, 1001))

	head, ok := svc.Messages().Newest()
	require.True(t, ok)
	before := svc.Messages().Len()

	svc.HandleEvent(mustEvent(t, bridge.EventMessageDeleted, bridge.MessageDeletedPayload{
		GroupID: 1001, MessageID: head.ID,
	}))

	assert.Equal(t, before-1, svc.Messages().Len())
	_, ok = svc.Messages().Get(head.ID)
	assert.False(t, ok)
}

func TestHandleEvent_TaskStatusNotifies(t *testing.T) {
	svc, notifier := newTestService(t)
	_, err := svc.RefreshTasks(context.Background())
	require.NoError(t, err)
	notifier.DismissAll()

	svc.HandleEvent(mustEvent(t, bridge.EventTaskStatus, bridge.TaskStatusPayload{
		TaskID: 1, Status: models.TaskStatusCompleted,
	}))

	task, ok := svc.Tasks().Get(1)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	active := notifier.Active()
	require.Len(t, active, 1)
	assert.Equal(t, SeverityInfo, active[0].Severity)
	assert.Contains(t, active[0].Message, "task 1 completed")

	svc.HandleEvent(mustEvent(t, bridge.EventTaskStatus, bridge.TaskStatusPayload{
		TaskID: 1, Status: models.TaskStatusFailed,
	}))
	active = notifier.Active()
	require.Len(t, active, 2)
	assert.Equal(t, SeverityWarning, active[1].Severity)
}

func TestHandleEvent_TaskProgressUpdatesStore(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RefreshTasks(context.Background())
	require.NoError(t, err)

	svc.HandleEvent(mustEvent(t, bridge.EventTaskProgress, bridge.TaskProgressPayload{
		TaskID:   1,
		Progress: models.TaskProgress{TotalMessages: 140, ProcessedMessages: 70},
	}))

	task, ok := svc.Tasks().Get(1)
	require.True(t, ok)
	assert.Equal(t, 70, task.Progress.ProcessedMessages)
}

func TestHandleEvent_GroupUpdatedUpserts(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RefreshGroups(context.Background())
	require.NoError(t, err)

	group, ok := svc.Groups().Get(1001)
	require.True(t, ok)
	group.Title = "Release Watch (archived)"
	svc.HandleEvent(mustEvent(t, bridge.EventGroupUpdated, group))

	got, ok := svc.Groups().Get(1001)
	require.True(t, ok)
	assert.Equal(t, "Release Watch (archived)", got.Title)
}

func TestHandleEvent_LogNewFeedsTail(t *testing.T) {
	svc, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		svc.HandleEvent(mustEvent(t, bridge.EventLogNew, models.LogEntry{
			ID: int64(i + 1), Level: "info", Message: "line",
		}))
	}

	tail := svc.BackendLogTail()
	require.Len(t, tail, 3)
	assert.Equal(t, int64(1), tail[0].ID, "oldest first")
}

func TestHandleEvent_MalformedPayloadIsDropped(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.SelectGroup(context.Background(), 1001))
	before := svc.Messages().Len()

	svc.HandleEvent(bridge.Event{Type: bridge.EventMessageNew, Payload: json.RawMessage(`"not an object"`)})
	svc.HandleEvent(bridge.Event{Type: bridge.EventTaskStatus, Payload: json.RawMessage(`[]`)})
	svc.HandleEvent(bridge.Event{Type: "unknown.event", Payload: json.RawMessage(`{}`)})

	assert.Equal(t, before, svc.Messages().Len())
	assert.Zero(t, svc.UnseenCount())
}

func TestService_BackendLogTailIsBounded(t *testing.T) {
	svc, _ := newTestService(t)

	for i := 0; i < backendLogLimit+25; i++ {
		svc.appendBackendLog(models.LogEntry{ID: int64(i + 1), Level: "info", Message: "line"})
	}

	tail := svc.BackendLogTail()
	require.Len(t, tail, backendLogLimit)
	assert.Equal(t, int64(26), tail[0].ID, "oldest lines evicted")
}
