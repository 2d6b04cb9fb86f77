package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewWithBaseURL(server.URL, "test-token")
	c.SetRetryPolicy(fastPolicy(3))
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListMessages(t *testing.T) {
	var gotQuery map[string]string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/groups/42/messages", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}

		writeJSON(t, w, MessagesResponse{
			Messages: []models.Message{
				{ID: 2, MessageID: 2, GroupID: 42, Date: time.Unix(200, 0).UTC()},
				{ID: 1, MessageID: 1, GroupID: 42, Date: time.Unix(100, 0).UTC()},
			},
			Total:   120,
			Skip:    50,
			Limit:   50,
			HasMore: true,
		})
	}))

	filter := &models.MessageFilter{
		Search:    "invoice",
		MediaType: models.MediaTypePhoto,
		HasMedia:  boolPtr(true),
	}
	resp, err := c.ListMessages(context.Background(), 42, 50, 50, filter)
	require.NoError(t, err)

	assert.Equal(t, "50", gotQuery["skip"])
	assert.Equal(t, "50", gotQuery["limit"])
	assert.Equal(t, "invoice", gotQuery["search"])
	assert.Equal(t, "photo", gotQuery["media_type"])
	assert.Equal(t, "true", gotQuery["has_media"])

	assert.Len(t, resp.Messages, 2)
	assert.Equal(t, 120, resp.Total)
	assert.True(t, resp.HasMore)
}

func TestClient_ListMessages_InvalidFilter(t *testing.T) {
	var called atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
	}))

	_, err := c.ListMessages(context.Background(), 1, 0, 50, &models.MessageFilter{StartDate: "not-a-date"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, int32(0), called.Load(), "invalid filters never reach the network")
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"not found", http.StatusNotFound, KindNotFound},
		{"unprocessable", http.StatusUnprocessableEntity, KindValidation},
		{"conflict", http.StatusConflict, KindBusiness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "nope"})
			}))

			_, err := c.ListGroups(context.Background())
			require.Error(t, err)

			apiErr := AsAPIError(err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, "nope")
		})
	}
}

func TestClient_RetriesReadsOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, GroupsResponse{Groups: []models.Group{{ID: 1, Title: "A"}}})
	}))

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].Title)
}

func TestClient_DoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "down"})
	}))

	_, err := c.SendMessage(context.Background(), 1, "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "mutations are sent exactly once")
}

func TestClient_CreateRule_ValidatesLocally(t *testing.T) {
	var called atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
	}))

	_, err := c.CreateRule(context.Background(), models.Rule{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, models.ErrRuleNameRequired)
	assert.Equal(t, int32(0), called.Load())
}

func TestClient_TaskActions(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		writeJSON(t, w, models.DownloadTask{ID: 9, Name: "t", GroupID: 1, DestinationPath: "/x", Status: models.TaskStatusRunning})
	}))

	ctx := context.Background()
	task, err := c.StartTask(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, task.Status)

	_, err = c.PauseTask(ctx, 9)
	require.NoError(t, err)
	_, err = c.StopTask(ctx, 9)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/tasks/9/start",
		"/api/tasks/9/pause",
		"/api/tasks/9/stop",
	}, paths)
}

func TestClient_DashboardEndpoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dashboard/overview":
			writeJSON(t, w, models.Overview{TotalGroups: 3, TotalMessages: 1000})
		case "/api/dashboard/system":
			writeJSON(t, w, models.SystemInfo{Version: "1.2.3", ConnectedClients: 2})
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()

	overview, err := c.DashboardOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalGroups)
	assert.Equal(t, int64(1000), overview.TotalMessages)

	info, err := c.SystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
}

func boolPtr(b bool) *bool { return &b }
