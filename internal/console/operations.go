package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/export"
	"github.com/telearc/archive-console/internal/models"
)

// ============================================================================
// Groups
// ============================================================================

// RefreshGroups reloads the tracked group list from the backend.
func (s *Service) RefreshGroups(ctx context.Context) ([]models.Group, error) {
	groups, err := s.client.ListGroups(ctx)
	if err != nil {
		s.reportError("load groups", err)
		return nil, err
	}
	s.groups.Set(groups)
	return s.groups.All(), nil
}

// AddGroup registers a new group by username.
func (s *Service) AddGroup(ctx context.Context, username string) (*models.Group, error) {
	group, err := s.client.AddGroup(ctx, username)
	if err != nil {
		s.reportError("add group", err)
		return nil, err
	}
	s.groups.Upsert(*group)
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("group %q added", group.Title))
	return group, nil
}

// UpdateGroup applies a partial update to a group.
func (s *Service) UpdateGroup(ctx context.Context, groupID int64, req api.UpdateGroupRequest) (*models.Group, error) {
	group, err := s.client.UpdateGroup(ctx, groupID, req)
	if err != nil {
		s.reportError("update group", err)
		return nil, err
	}
	s.groups.Upsert(*group)
	return group, nil
}

// SetGroupActive toggles archiving for a group.
func (s *Service) SetGroupActive(ctx context.Context, groupID int64, active bool) (*models.Group, error) {
	return s.UpdateGroup(ctx, groupID, api.UpdateGroupRequest{IsActive: &active})
}

// SetGroupPinned pins or unpins a group in the sidebar ordering.
func (s *Service) SetGroupPinned(ctx context.Context, groupID int64, pinned bool, order int) (*models.Group, error) {
	req := api.UpdateGroupRequest{IsPinned: &pinned}
	if pinned {
		req.PinOrder = &order
	}
	return s.UpdateGroup(ctx, groupID, req)
}

// SyncGroup asks the backend to pull fresh messages for a group, then nudges
// the controller so the new head shows up without waiting for push events.
func (s *Service) SyncGroup(ctx context.Context, groupID int64) (*api.SyncResult, error) {
	result, err := s.client.SyncGroup(ctx, groupID)
	if err != nil {
		s.reportError("sync group", err)
		return nil, err
	}
	if groupID == s.groups.SelectedID() {
		s.scroll.CatchUp()
	}
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("sync pulled %d new messages", result.NewMessages))
	return result, nil
}

// ============================================================================
// Messages
// ============================================================================

// Search runs a filtered query against a group's history and returns the hits
// as an ad hoc list. The canonical message store is never touched. groupID 0
// means the selected group.
func (s *Service) Search(ctx context.Context, groupID int64, filter *models.MessageFilter, limit int) ([]models.Message, error) {
	if groupID == 0 {
		groupID = s.groups.SelectedID()
		if groupID == 0 {
			return nil, ErrNoSelection
		}
	}
	if limit < 1 {
		limit = s.cfg.PageSize
	}

	resp, err := s.client.ListMessages(ctx, groupID, 0, limit, filter)
	if err != nil {
		s.reportError("search messages", err)
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a text message into the selected group.
func (s *Service) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	group, ok := s.groups.Selected()
	if !ok {
		return nil, ErrNoSelection
	}
	if !group.CanSendMessages {
		return nil, &api.APIError{Kind: api.KindValidation, Message: "group does not accept messages"}
	}

	msg, err := s.client.SendMessage(ctx, group.ID, text)
	if err != nil {
		s.reportError("send message", err)
		return nil, err
	}

	// show it immediately; the echo from the push channel merges as a no-op
	stats, ok := s.messages.Merge(group.ID, []models.Message{*msg})
	if ok && stats.Added > 0 {
		s.scroll.NotifyNewData(stats.Added)
	}
	return msg, nil
}

// DeleteMessage removes a message of the selected group from the archive.
func (s *Service) DeleteMessage(ctx context.Context, messageID int64) error {
	group, ok := s.groups.Selected()
	if !ok {
		return ErrNoSelection
	}
	if !group.CanDeleteMessages {
		return &api.APIError{Kind: api.KindValidation, Message: "group does not allow deletions"}
	}

	if err := s.client.DeleteMessage(ctx, group.ID, messageID); err != nil {
		s.reportError("delete message", err)
		return err
	}
	s.messages.Remove(messageID)
	return nil
}

// ExportMessages writes the currently loaded message list to a file. The
// format follows the extension: .xlsx for a workbook, anything else CSV.
func (s *Service) ExportMessages(path string) (int, error) {
	msgs := s.messages.Messages()
	if len(msgs) == 0 {
		return 0, &api.APIError{Kind: api.KindValidation, Message: "nothing to export"}
	}

	if err := writeExport(path, msgs); err != nil {
		s.reportError("export messages", err)
		return 0, err
	}
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("exported %d messages to %s", len(msgs), path))
	return len(msgs), nil
}

func writeExport(path string, msgs []models.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := export.Messages(f, formatForPath(path), msgs); err != nil {
		return err
	}
	return f.Close()
}

func formatForPath(path string) export.Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return export.FormatXLSX
	}
	return export.FormatCSV
}

// ============================================================================
// Media downloads
// ============================================================================

// DownloadMedia fetches the media file of a loaded message into the download
// directory, tracking progress in the overlay. Returns the local path.
func (s *Service) DownloadMedia(ctx context.Context, messageID int64) (string, error) {
	msg, ok := s.messages.Get(messageID)
	if !ok {
		return "", &api.APIError{Kind: api.KindNotFound, Message: fmt.Sprintf("message %d is not loaded", messageID)}
	}
	if !msg.HasMedia() {
		return "", &api.APIError{Kind: api.KindValidation, Message: "message carries no media"}
	}

	s.overlay.Start(messageID)
	path, err := s.client.DownloadMedia(ctx, messageID, s.cfg.DownloadDir, func(p api.DownloadProgress) {
		s.overlay.Progress(messageID, p.Fraction)
	})
	if err != nil {
		s.overlay.Fail(messageID, err)
		s.reportError("download media", err)
		return "", err
	}

	s.overlay.Complete(messageID, path)
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("saved %s", filepath.Base(path)))
	return path, nil
}

// ============================================================================
// Rules
// ============================================================================

// Rules lists all saved filter rules.
func (s *Service) Rules(ctx context.Context) ([]models.Rule, error) {
	rules, err := s.client.ListRules(ctx)
	if err != nil {
		s.reportError("load rules", err)
		return nil, err
	}
	return rules, nil
}

// Rule fetches one rule by id.
func (s *Service) Rule(ctx context.Context, ruleID int64) (*models.Rule, error) {
	rule, err := s.client.GetRule(ctx, ruleID)
	if err != nil {
		s.reportError("load rule", err)
		return nil, err
	}
	return rule, nil
}

// CreateRule saves a new rule.
func (s *Service) CreateRule(ctx context.Context, rule models.Rule) (*models.Rule, error) {
	created, err := s.client.CreateRule(ctx, rule)
	if err != nil {
		s.reportError("create rule", err)
		return nil, err
	}
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("rule %q created", created.Name))
	return created, nil
}

// UpdateRule replaces an existing rule.
func (s *Service) UpdateRule(ctx context.Context, rule models.Rule) (*models.Rule, error) {
	updated, err := s.client.UpdateRule(ctx, rule)
	if err != nil {
		s.reportError("update rule", err)
		return nil, err
	}
	return updated, nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, ruleID int64) error {
	if err := s.client.DeleteRule(ctx, ruleID); err != nil {
		s.reportError("delete rule", err)
		return err
	}
	return nil
}

// ImportRules reads a YAML rule file and creates every rule in it. On the
// first failure the rules created so far are returned alongside the error.
func (s *Service) ImportRules(ctx context.Context, path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var file models.RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	created := make([]models.Rule, 0, len(file.Rules))
	for _, rule := range file.Rules {
		rule.ID = 0 // imported rules always get fresh ids
		saved, err := s.CreateRule(ctx, rule)
		if err != nil {
			return created, fmt.Errorf("import rule %q: %w", rule.Name, err)
		}
		created = append(created, *saved)
	}
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("imported %d rules from %s", len(created), path))
	return created, nil
}

// ExportRules writes all saved rules to a YAML file.
func (s *Service) ExportRules(ctx context.Context, path string) (int, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return 0, err
	}

	data, err := yaml.Marshal(models.RuleFile{Rules: rules})
	if err != nil {
		return 0, fmt.Errorf("encode rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("write rule file: %w", err)
	}
	return len(rules), nil
}

// PreviewRule fetches a recent window of a group's history and returns the
// messages the rule would select. Matching runs client-side so unsaved rules
// can be previewed too.
func (s *Service) PreviewRule(ctx context.Context, groupID int64, rule models.Rule, limit int) ([]models.Message, error) {
	if err := rule.Validate(); err != nil {
		return nil, &api.APIError{Kind: api.KindValidation, Message: err.Error()}
	}
	if groupID == 0 {
		groupID = s.groups.SelectedID()
		if groupID == 0 {
			return nil, ErrNoSelection
		}
	}
	if limit < 1 {
		limit = 100
	}

	resp, err := s.client.ListMessages(ctx, groupID, 0, limit, nil)
	if err != nil {
		s.reportError("preview rule", err)
		return nil, err
	}
	return lo.Filter(resp.Messages, func(m models.Message, _ int) bool {
		return rule.Matches(&m)
	}), nil
}

// ============================================================================
// Tasks
// ============================================================================

// RefreshTasks reloads the download-task list.
func (s *Service) RefreshTasks(ctx context.Context) ([]models.DownloadTask, error) {
	tasks, err := s.client.ListTasks(ctx)
	if err != nil {
		s.reportError("load tasks", err)
		return nil, err
	}
	s.tasks.Set(tasks)
	return s.tasks.All(), nil
}

// CreateTask registers a new download task.
func (s *Service) CreateTask(ctx context.Context, task models.DownloadTask) (*models.DownloadTask, error) {
	created, err := s.client.CreateTask(ctx, task)
	if err != nil {
		s.reportError("create task", err)
		return nil, err
	}
	s.tasks.Upsert(*created)
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("task %q created", created.Name))
	return created, nil
}

// UpdateTask replaces a task definition.
func (s *Service) UpdateTask(ctx context.Context, task models.DownloadTask) (*models.DownloadTask, error) {
	updated, err := s.client.UpdateTask(ctx, task)
	if err != nil {
		s.reportError("update task", err)
		return nil, err
	}
	s.tasks.Upsert(*updated)
	return updated, nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	if err := s.client.DeleteTask(ctx, taskID); err != nil {
		s.reportError("delete task", err)
		return err
	}
	s.tasks.Remove(taskID)
	return nil
}

// StartTask begins or resumes task execution.
func (s *Service) StartTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return s.taskAction(ctx, taskID, "start", s.client.StartTask)
}

// PauseTask suspends a running task.
func (s *Service) PauseTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return s.taskAction(ctx, taskID, "pause", s.client.PauseTask)
}

// StopTask aborts a task and resets its progress.
func (s *Service) StopTask(ctx context.Context, taskID int64) (*models.DownloadTask, error) {
	return s.taskAction(ctx, taskID, "stop", s.client.StopTask)
}

func (s *Service) taskAction(ctx context.Context, taskID int64, name string,
	action func(context.Context, int64) (*models.DownloadTask, error)) (*models.DownloadTask, error) {
	task, err := action(ctx, taskID)
	if err != nil {
		s.reportError(name+" task", err)
		return nil, err
	}
	s.tasks.Upsert(*task)
	return task, nil
}

// TaskRuns returns the execution history of a task, newest first.
func (s *Service) TaskRuns(ctx context.Context, taskID int64) ([]models.TaskRun, error) {
	runs, err := s.client.ListTaskRuns(ctx, taskID)
	if err != nil {
		s.reportError("load task runs", err)
		return nil, err
	}
	return runs, nil
}

// ============================================================================
// Logs, dashboard, health
// ============================================================================

// BackendLogs fetches backend log entries, optionally filtered by level.
func (s *Service) BackendLogs(ctx context.Context, level string, limit int) (*api.LogsResponse, error) {
	resp, err := s.client.ListLogs(ctx, level, limit)
	if err != nil {
		s.reportError("load logs", err)
		return nil, err
	}
	return resp, nil
}

// ClearBackendLogs wipes the backend log buffer.
func (s *Service) ClearBackendLogs(ctx context.Context) error {
	if err := s.client.ClearLogs(ctx); err != nil {
		s.reportError("clear logs", err)
		return err
	}
	return nil
}

// Overview fetches the headline dashboard counters.
func (s *Service) Overview(ctx context.Context) (*models.Overview, error) {
	overview, err := s.client.DashboardOverview(ctx)
	if err != nil {
		s.reportError("load overview", err)
		return nil, err
	}
	return overview, nil
}

// GroupSummaries fetches the per-group dashboard rows.
func (s *Service) GroupSummaries(ctx context.Context) ([]models.GroupSummary, error) {
	summaries, err := s.client.GroupSummaries(ctx)
	if err != nil {
		s.reportError("load group summaries", err)
		return nil, err
	}
	return summaries, nil
}

// RecentActivity fetches the latest archive events.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]models.ActivityItem, error) {
	items, err := s.client.RecentActivity(ctx, limit)
	if err != nil {
		s.reportError("load activity", err)
		return nil, err
	}
	return items, nil
}

// DownloadStats fetches aggregate media download statistics.
func (s *Service) DownloadStats(ctx context.Context) (*models.DownloadStats, error) {
	stats, err := s.client.DownloadStats(ctx)
	if err != nil {
		s.reportError("load download stats", err)
		return nil, err
	}
	return stats, nil
}

// SystemInfo fetches backend version, uptime and storage figures.
func (s *Service) SystemInfo(ctx context.Context) (*models.SystemInfo, error) {
	info, err := s.client.SystemInfo(ctx)
	if err != nil {
		s.reportError("load system info", err)
		return nil, err
	}
	return info, nil
}

// Health probes the backend. No error routing; callers use it to diagnose
// connectivity, so the raw failure matters.
func (s *Service) Health(ctx context.Context) (*api.HealthResponse, error) {
	return s.client.Health(ctx)
}
