package mockserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/bridge"
	"github.com/telearc/archive-console/internal/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200

	// taskStep is how many messages a simulated run processes per tick.
	taskStep = 25
)

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// handleListGroups handles GET /api/groups
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.data.Groups()
	respondJSON(w, http.StatusOK, api.GroupsResponse{Groups: groups, Total: len(groups)})
}

// handleAddGroup handles POST /api/groups
func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var req api.AddGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	group := s.data.AddGroup(req.Username)
	s.broadcast(bridge.EventGroupUpdated, group)
	respondJSON(w, http.StatusCreated, group)
}

// handleUpdateGroup handles PATCH /api/groups/{groupID}
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var patch api.UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	group, err := s.data.UpdateGroup(groupID, patch)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.broadcast(bridge.EventGroupUpdated, group)
	respondJSON(w, http.StatusOK, group)
}

// handleSyncGroup handles POST /api/groups/{groupID}/sync
func (s *Server) handleSyncGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	result, added, err := s.data.SyncGroup(groupID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	for _, msg := range added {
		s.broadcast(bridge.EventMessageNew, msg)
	}
	respondJSON(w, http.StatusOK, result)
}

// handleListMessages handles GET /api/groups/{groupID}/messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	if _, ok := s.data.Group(groupID); !ok {
		respondError(w, http.StatusNotFound, ErrGroupNotFound.Error())
		return
	}

	q := r.URL.Query()
	skip := intParam(q, "skip", 0)
	limit := intParam(q, "limit", defaultPageLimit)
	if skip < 0 {
		skip = 0
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := filterFromQuery(q)
	if err := filter.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, total, hasMore := s.data.MessagesPage(groupID, skip, limit, filter)
	respondJSON(w, http.StatusOK, api.MessagesResponse{
		Messages: messages,
		Total:    total,
		Skip:     skip,
		Limit:    limit,
		HasMore:  hasMore,
	})
}

// handleSendMessage handles POST /api/groups/{groupID}/messages
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	var req api.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if group, ok := s.data.Group(groupID); ok && !group.CanSendMessages {
		respondError(w, http.StatusUnprocessableEntity, "group does not accept messages")
		return
	}

	msg, err := s.data.AppendMessage(groupID, req.Text, consoleSender)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.broadcast(bridge.EventMessageNew, msg)
	respondJSON(w, http.StatusCreated, msg)
}

// handleDeleteMessage handles DELETE /api/groups/{groupID}/messages/{messageID}
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := s.data.DeleteMessage(groupID, messageID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.broadcast(bridge.EventMessageDeleted, bridge.MessageDeletedPayload{
		GroupID:   groupID,
		MessageID: messageID,
	})
	respondJSON(w, http.StatusOK, api.StatusResponse{Status: "deleted"})
}

// handleListRules handles GET /api/rules
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := s.data.Rules()
	respondJSON(w, http.StatusOK, api.RulesResponse{Rules: rules, Total: len(rules)})
}

// handleCreateRule handles POST /api/rules
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, s.data.CreateRule(rule))
}

// handleGetRule handles GET /api/rules/{ruleID}
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathID(r, "ruleID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, ok := s.data.Rule(ruleID)
	if !ok {
		respondError(w, http.StatusNotFound, ErrRuleNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// handleUpdateRule handles PUT /api/rules/{ruleID}
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathID(r, "ruleID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	rule.ID = ruleID
	if err := rule.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.data.UpdateRule(rule)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// handleDeleteRule handles DELETE /api/rules/{ruleID}
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathID(r, "ruleID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := s.data.DeleteRule(ruleID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, api.StatusResponse{Status: "deleted"})
}

// handleListTasks handles GET /api/tasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.data.Tasks()
	respondJSON(w, http.StatusOK, api.TasksResponse{Tasks: tasks, Total: len(tasks)})
}

// handleCreateTask handles POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task models.DownloadTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := task.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.data.Group(task.GroupID); !ok {
		respondError(w, http.StatusBadRequest, "task references unknown group")
		return
	}
	respondJSON(w, http.StatusCreated, s.data.CreateTask(task))
}

// handleGetTask handles GET /api/tasks/{taskID}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, ok := s.data.Task(taskID)
	if !ok {
		respondError(w, http.StatusNotFound, ErrTaskNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handleUpdateTask handles PUT /api/tasks/{taskID}
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var task models.DownloadTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	task.ID = taskID
	if err := task.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.data.UpdateTask(task)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// handleDeleteTask handles DELETE /api/tasks/{taskID}
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.data.DeleteTask(taskID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, api.StatusResponse{Status: "deleted"})
}

// handleStartTask handles POST /api/tasks/{taskID}/start
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.data.StartTask(taskID)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.broadcast(bridge.EventTaskStatus, bridge.TaskStatusPayload{TaskID: taskID, Status: task.Status})
	go s.runTask(taskID)
	respondJSON(w, http.StatusOK, task)
}

// handlePauseTask handles POST /api/tasks/{taskID}/pause
func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.data.PauseTask(taskID)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.broadcast(bridge.EventTaskStatus, bridge.TaskStatusPayload{TaskID: taskID, Status: task.Status})
	respondJSON(w, http.StatusOK, task)
}

// handleStopTask handles POST /api/tasks/{taskID}/stop
func (s *Server) handleStopTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.data.StopTask(taskID)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.broadcast(bridge.EventTaskStatus, bridge.TaskStatusPayload{TaskID: taskID, Status: task.Status})
	s.broadcast(bridge.EventTaskProgress, bridge.TaskProgressPayload{TaskID: taskID, Progress: task.Progress})
	respondJSON(w, http.StatusOK, task)
}

// handleTaskRuns handles GET /api/tasks/{taskID}/runs
func (s *Server) handleTaskRuns(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "taskID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if _, ok := s.data.Task(taskID); !ok {
		respondError(w, http.StatusNotFound, ErrTaskNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, api.TaskRunsResponse{Runs: s.data.Runs(taskID)})
}

// handleListLogs handles GET /api/logs
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, total := s.data.Logs(q.Get("level"), intParam(q, "limit", defaultPageLimit))
	respondJSON(w, http.StatusOK, api.LogsResponse{Logs: logs, Total: total})
}

// handleClearLogs handles DELETE /api/logs
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.data.ClearLogs()
	respondJSON(w, http.StatusOK, api.StatusResponse{Status: "cleared"})
}

// handleOverview handles GET /api/dashboard/overview
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Overview())
}

// handleGroupSummaries handles GET /api/dashboard/groups
func (s *Server) handleGroupSummaries(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.GroupSummaries())
}

// handleRecentActivity handles GET /api/dashboard/activity
func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query(), "limit", 20)
	respondJSON(w, http.StatusOK, s.data.RecentActivity(limit))
}

// handleDownloadStats handles GET /api/dashboard/downloads
func (s *Server) handleDownloadStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.DownloadStats())
}

// handleSystemInfo handles GET /api/dashboard/system
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	stats := s.data.DownloadStats()
	respondJSON(w, http.StatusOK, models.SystemInfo{
		Version:          Version,
		UptimeSeconds:    int64(s.data.Uptime().Seconds()),
		StorageUsedBytes: stats.TotalBytes,
		StorageFreeBytes: 50 << 30,
		ConnectedClients: s.hub.ClientCount(),
	})
}

// handleMediaFile handles GET /api/media/{messageID}/file. The payload is a
// filler pattern of the seeded size so download progress is observable.
func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "messageID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	msg, ok := s.data.MessageByID(messageID)
	if !ok || msg.Media == nil {
		respondError(w, http.StatusNotFound, "no media for message")
		return
	}

	size := msg.Media.Size
	if size <= 0 {
		size = 1024
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", msg.Media.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))

	chunk := bytes.Repeat([]byte{0xA5}, 4096)
	for size > 0 {
		n := int64(len(chunk))
		if size < n {
			n = size
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return
		}
		size -= n
	}
}

// runTask drives one simulated task run, pushing progress over the hub until
// the task completes or leaves the running state.
func (s *Server) runTask(taskID int64) {
	ticker := time.NewTicker(s.progressTick)
	defer ticker.Stop()

	for range ticker.C {
		task, ok := s.data.Task(taskID)
		if !ok || task.Status != models.TaskStatusRunning {
			return
		}

		task, done, err := s.data.AdvanceTask(taskID, taskStep)
		if err != nil {
			return
		}
		s.broadcast(bridge.EventTaskProgress, bridge.TaskProgressPayload{TaskID: taskID, Progress: task.Progress})
		if done {
			s.broadcast(bridge.EventTaskStatus, bridge.TaskStatusPayload{TaskID: taskID, Status: task.Status})
			entry := s.data.AppendLog("info", "downloader", fmt.Sprintf("task %q finished: %d files", task.Name, task.Progress.DownloadedFiles))
			s.broadcast(bridge.EventLogNew, entry)
			return
		}
	}
}

// broadcast pushes one event envelope to every websocket client.
func (s *Server) broadcast(eventType string, payload any) {
	evt, err := bridge.NewEvent(eventType, payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", eventType).Msg("encode event")
		return
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		s.log.Error().Err(err).Str("type", eventType).Msg("marshal event")
		return
	}
	s.hub.Broadcast(raw)
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, api.ErrorResponse{Error: message})
}

func respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func intParam(q url.Values, key string, fallback int) int {
	raw := q.Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func boolParam(q url.Values, key string) *bool {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// filterFromQuery rebuilds a message filter from listing query parameters.
func filterFromQuery(q url.Values) *models.MessageFilter {
	return &models.MessageFilter{
		Search:         q.Get("search"),
		SenderUsername: q.Get("sender_username"),
		MediaType:      models.MediaType(q.Get("media_type")),
		HasMedia:       boolParam(q, "has_media"),
		IsForwarded:    boolParam(q, "is_forwarded"),
		IsPinned:       boolParam(q, "is_pinned"),
		StartDate:      q.Get("start_date"),
		EndDate:        q.Get("end_date"),
	}
}
