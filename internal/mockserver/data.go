// Package mockserver implements a stand-in for the archive backend: the
// full REST surface over a seeded in-memory data set plus the websocket
// push channel. It exists for offline development of the console and as
// the fixture for integration tests.
package mockserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/models"
)

// dataset errors
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrBadTransition   = errors.New("task state does not allow this action")
)

// activityLimit caps the recent-activity ring.
const activityLimit = 100

// Dataset is the in-memory backing store of the mock backend. All access
// goes through its methods; handlers and the feed generator share one
// instance.
type Dataset struct {
	mu sync.Mutex

	groups   map[int64]models.Group
	messages map[int64][]models.Message // per group, ascending (date, id)
	rules    map[int64]models.Rule
	tasks    map[int64]models.DownloadTask
	runs     map[int64][]models.TaskRun
	logs     []models.LogEntry
	activity []models.ActivityItem

	seq       int64           // system-wide message id sequence
	msgSeq    map[int64]int64 // per-group telegram message numbers
	groupSeq  int64
	ruleSeq   int64
	taskSeq   int64
	runSeq    int64
	logSeq    int64
	startedAt time.Time
	now       func() time.Time
}

// NewDataset returns a dataset seeded with three groups, a few hundred
// messages and a sprinkle of rules, tasks and logs.
func NewDataset() *Dataset {
	d := &Dataset{
		groups:    make(map[int64]models.Group),
		messages:  make(map[int64][]models.Message),
		rules:     make(map[int64]models.Rule),
		tasks:     make(map[int64]models.DownloadTask),
		runs:      make(map[int64][]models.TaskRun),
		msgSeq:    make(map[int64]int64),
		seq:       5000,
		groupSeq:  1000,
		startedAt: time.Now(),
		now:       time.Now,
	}
	d.seed()
	return d
}

// ============================================================================
// Groups
// ============================================================================

// Groups returns every tracked group in display order.
func (d *Dataset) Groups() []models.Group {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := lo.Values(d.groups)
	models.SortGroups(out)
	return out
}

// Group returns one group by id.
func (d *Dataset) Group(id int64) (models.Group, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[id]
	return g, ok
}

// AddGroup registers a new group under a public username.
func (d *Dataset) AddGroup(username string) models.Group {
	d.mu.Lock()
	defer d.mu.Unlock()

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	d.groupSeq++
	now := d.now()
	g := models.Group{
		ID:              d.groupSeq,
		Title:           username,
		Username:        username,
		MemberCount:     int(100 + d.groupSeq%900),
		IsActive:        true,
		CanSendMessages: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	d.groups[g.ID] = g
	d.recordActivity("group", g.ID, fmt.Sprintf("group @%s added", username))
	return g
}

// UpdateGroup applies a partial update. Nil fields stay untouched.
func (d *Dataset) UpdateGroup(id int64, patch api.UpdateGroupRequest) (models.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[id]
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	if patch.IsActive != nil {
		g.IsActive = *patch.IsActive
	}
	if patch.IsPinned != nil {
		g.IsPinned = *patch.IsPinned
	}
	if patch.PinOrder != nil {
		g.PinOrder = *patch.PinOrder
	}
	g.UpdatedAt = d.now()
	d.groups[id] = g
	return g, nil
}

// SyncGroup simulates a backend pull of fresh messages for a group.
func (d *Dataset) SyncGroup(id int64) (api.SyncResult, []models.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[id]
	if !ok {
		return api.SyncResult{}, nil, ErrGroupNotFound
	}

	const fresh = 3
	added := make([]models.Message, 0, fresh)
	for i := 0; i < fresh; i++ {
		msg := d.appendMessageLocked(id, fmt.Sprintf("synced update %d for %s", i+1, g.Title), seedSenders[i%len(seedSenders)])
		added = append(added, msg)
	}
	d.recordActivity("group", id, fmt.Sprintf("sync pulled %d messages for %s", fresh, g.Title))

	return api.SyncResult{GroupID: id, NewMessages: fresh, SyncedAt: d.now()}, added, nil
}

// ============================================================================
// Messages
// ============================================================================

// MessagesPage returns one page of a group's history, newest first. skip
// counts back from the live head; total reflects the filtered count.
func (d *Dataset) MessagesPage(groupID int64, skip, limit int, filter *models.MessageFilter) ([]models.Message, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	matched := d.messages[groupID]
	if filter != nil && !filter.IsZero() {
		matched = lo.Filter(matched, func(m models.Message, _ int) bool {
			return filter.Matches(&m)
		})
	}

	total := len(matched)
	end := total - skip // window over the ascending list, counted from the tail
	if end <= 0 || limit <= 0 {
		return []models.Message{}, total, false
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	window := matched[start:end]
	page := make([]models.Message, len(window))
	for i := range window {
		page[i] = window[len(window)-1-i]
	}
	return page, total, start > 0
}

// Message finds one message by its system id.
func (d *Dataset) Message(groupID, id int64) (models.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range d.messages[groupID] {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// MessageByID finds a message by system id across all groups. The media
// endpoint addresses files this way.
func (d *Dataset) MessageByID(id int64) (models.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, msgs := range d.messages {
		for i := range msgs {
			if msgs[i].ID == id {
				return msgs[i], true
			}
		}
	}
	return models.Message{}, false
}

// AppendMessage stores a new message sent through the console.
func (d *Dataset) AppendMessage(groupID int64, text string, sender seedSender) (models.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.groups[groupID]; !ok {
		return models.Message{}, ErrGroupNotFound
	}
	msg := d.appendMessageLocked(groupID, text, sender)
	return msg, nil
}

// EditLatestMessage rewrites the newest message of a group and marks it
// edited. Returns false when the group has no history.
func (d *Dataset) EditLatestMessage(groupID int64, suffix string) (models.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msgs := d.messages[groupID]
	if len(msgs) == 0 {
		return models.Message{}, false
	}
	m := &msgs[len(msgs)-1]
	now := d.now()
	m.Text += suffix
	m.EditedAt = &now
	m.UpdatedAt = now
	return *m, true
}

// DeleteMessage removes a message by system id.
func (d *Dataset) DeleteMessage(groupID, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	msgs, ok := d.messages[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	for i := range msgs {
		if msgs[i].ID == id {
			d.messages[groupID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// appendMessageLocked creates a message at the head of a group's history.
// Must be called with the lock held.
func (d *Dataset) appendMessageLocked(groupID int64, text string, sender seedSender) models.Message {
	d.seq++
	d.msgSeq[groupID]++
	now := d.now()

	msg := models.Message{
		ID:             d.seq,
		MessageID:      d.msgSeq[groupID],
		GroupID:        groupID,
		SenderID:       sender.id,
		SenderUsername: sender.username,
		SenderName:     sender.name,
		Date:           now,
		Text:           text,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	d.messages[groupID] = append(d.messages[groupID], msg)

	if g, ok := d.groups[groupID]; ok {
		g.UpdatedAt = now
		d.groups[groupID] = g
		d.recordActivity("message", groupID, fmt.Sprintf("new message in %s", g.Title))
	}
	return msg
}

// ============================================================================
// Rules
// ============================================================================

// Rules returns all saved rules sorted by id.
func (d *Dataset) Rules() []models.Rule {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := lo.Values(d.rules)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rule returns one rule by id.
func (d *Dataset) Rule(id int64) (models.Rule, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rules[id]
	return r, ok
}

// CreateRule stores a new rule and assigns its id.
func (d *Dataset) CreateRule(rule models.Rule) models.Rule {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ruleSeq++
	rule.ID = d.ruleSeq
	rule.CreatedAt = d.now()
	rule.UpdatedAt = rule.CreatedAt
	d.rules[rule.ID] = rule
	return rule
}

// UpdateRule replaces an existing rule.
func (d *Dataset) UpdateRule(rule models.Rule) (models.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.rules[rule.ID]
	if !ok {
		return models.Rule{}, ErrRuleNotFound
	}
	rule.CreatedAt = current.CreatedAt
	rule.UpdatedAt = d.now()
	d.rules[rule.ID] = rule
	return rule, nil
}

// DeleteRule removes a rule by id.
func (d *Dataset) DeleteRule(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(d.rules, id)
	return nil
}

// ============================================================================
// Tasks
// ============================================================================

// Tasks returns all download tasks sorted by id.
func (d *Dataset) Tasks() []models.DownloadTask {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := lo.Values(d.tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Task returns one task by id.
func (d *Dataset) Task(id int64) (models.DownloadTask, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[id]
	return t, ok
}

// CreateTask stores a new task and assigns its id.
func (d *Dataset) CreateTask(task models.DownloadTask) models.DownloadTask {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.taskSeq++
	task.ID = d.taskSeq
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	task.CreatedAt = d.now()
	task.UpdatedAt = task.CreatedAt
	d.tasks[task.ID] = task
	d.recordActivity("task", task.GroupID, fmt.Sprintf("task %q created", task.Name))
	return task
}

// UpdateTask replaces an existing task definition. Status and progress are
// owned by the runner and survive the update.
func (d *Dataset) UpdateTask(task models.DownloadTask) (models.DownloadTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.tasks[task.ID]
	if !ok {
		return models.DownloadTask{}, ErrTaskNotFound
	}
	task.Status = current.Status
	task.Progress = current.Progress
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = d.now()
	d.tasks[task.ID] = task
	return task, nil
}

// DeleteTask removes a task and its run history.
func (d *Dataset) DeleteTask(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(d.tasks, id)
	delete(d.runs, id)
	return nil
}

// StartTask moves a task to running and opens a new run record.
func (d *Dataset) StartTask(id int64) (models.DownloadTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, ok := d.tasks[id]
	if !ok {
		return models.DownloadTask{}, ErrTaskNotFound
	}
	// completed is terminal; re-sweeping a group takes a new task. Failed
	// tasks may be retried.
	if task.Status == models.TaskStatusRunning || task.Status == models.TaskStatusCompleted {
		return models.DownloadTask{}, ErrBadTransition
	}

	if task.Status != models.TaskStatusPaused {
		// fresh run: size the workload from the group's history
		task.Progress = models.TaskProgress{TotalMessages: len(d.messages[task.GroupID])}
		d.runSeq++
		d.runs[id] = append(d.runs[id], models.TaskRun{
			ID:        d.runSeq,
			TaskID:    id,
			StartedAt: d.now(),
			Status:    models.TaskStatusRunning,
		})
	}
	task.Status = models.TaskStatusRunning
	now := d.now()
	task.LastRunAt = &now
	task.UpdatedAt = now
	d.tasks[id] = task
	d.recordActivity("task", task.GroupID, fmt.Sprintf("task %q started", task.Name))
	return task, nil
}

// PauseTask suspends a running task.
func (d *Dataset) PauseTask(id int64) (models.DownloadTask, error) {
	return d.transition(id, models.TaskStatusRunning, models.TaskStatusPaused)
}

// StopTask aborts a task and resets its progress.
func (d *Dataset) StopTask(id int64) (models.DownloadTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, ok := d.tasks[id]
	if !ok {
		return models.DownloadTask{}, ErrTaskNotFound
	}
	if task.Status != models.TaskStatusRunning && task.Status != models.TaskStatusPaused {
		return models.DownloadTask{}, ErrBadTransition
	}
	task.Status = models.TaskStatusPending
	task.Progress = models.TaskProgress{}
	task.UpdatedAt = d.now()
	d.tasks[id] = task
	d.closeRunLocked(id, models.TaskStatusFailed, "stopped by operator")
	return task, nil
}

// AdvanceTask moves a running task's counters forward by step and completes
// it when the workload is done. The second return reports completion.
func (d *Dataset) AdvanceTask(id int64, step int) (models.DownloadTask, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, ok := d.tasks[id]
	if !ok {
		return models.DownloadTask{}, false, ErrTaskNotFound
	}
	if task.Status != models.TaskStatusRunning {
		return task, false, nil
	}

	task.Progress.ProcessedMessages += step
	task.Progress.DownloadedFiles += step / 2
	done := task.Progress.ProcessedMessages >= task.Progress.TotalMessages
	if done {
		task.Progress.ProcessedMessages = task.Progress.TotalMessages
		task.Status = models.TaskStatusCompleted
		d.closeRunLocked(id, models.TaskStatusCompleted, "")
		d.recordActivity("task", task.GroupID, fmt.Sprintf("task %q completed", task.Name))
	}
	task.UpdatedAt = d.now()
	d.tasks[id] = task
	return task, done, nil
}

// Runs returns the run history of one task, newest first.
func (d *Dataset) Runs(taskID int64) []models.TaskRun {
	d.mu.Lock()
	defer d.mu.Unlock()

	runs := d.runs[taskID]
	out := make([]models.TaskRun, len(runs))
	for i := range runs {
		out[i] = runs[len(runs)-1-i]
	}
	return out
}

func (d *Dataset) transition(id int64, from, to models.TaskStatus) (models.DownloadTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, ok := d.tasks[id]
	if !ok {
		return models.DownloadTask{}, ErrTaskNotFound
	}
	if task.Status != from {
		return models.DownloadTask{}, ErrBadTransition
	}
	task.Status = to
	task.UpdatedAt = d.now()
	d.tasks[id] = task
	return task, nil
}

// closeRunLocked finishes the latest open run. Must hold the lock.
func (d *Dataset) closeRunLocked(taskID int64, status models.TaskStatus, errMsg string) {
	runs := d.runs[taskID]
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].FinishedAt == nil {
			now := d.now()
			runs[i].FinishedAt = &now
			runs[i].Status = status
			runs[i].Error = errMsg
			if task, ok := d.tasks[taskID]; ok {
				runs[i].Downloaded = task.Progress.DownloadedFiles
			}
			return
		}
	}
}

// ============================================================================
// Logs & dashboard
// ============================================================================

// Logs returns backend log entries, newest first, optionally by level.
func (d *Dataset) Logs(level string, limit int) ([]models.LogEntry, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	matched := d.logs
	if level != "" {
		matched = lo.Filter(d.logs, func(e models.LogEntry, _ int) bool {
			return strings.EqualFold(e.Level, level)
		})
	}
	total := len(matched)

	if limit <= 0 || limit > total {
		limit = total
	}
	out := make([]models.LogEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = matched[total-1-i]
	}
	return out, total
}

// AppendLog adds one log line.
func (d *Dataset) AppendLog(level, source, message string) models.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logSeq++
	entry := models.LogEntry{
		ID:        d.logSeq,
		Level:     level,
		Source:    source,
		Message:   message,
		CreatedAt: d.now(),
	}
	d.logs = append(d.logs, entry)
	return entry
}

// ClearLogs wipes the log buffer.
func (d *Dataset) ClearLogs() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logs = nil
}

// Overview computes the headline dashboard counters.
func (d *Dataset) Overview() models.Overview {
	d.mu.Lock()
	defer d.mu.Unlock()

	var o models.Overview
	o.TotalGroups = len(d.groups)
	for _, g := range d.groups {
		if g.IsActive {
			o.ActiveGroups++
		}
	}

	midnight := d.now().Truncate(24 * time.Hour)
	for _, msgs := range d.messages {
		o.TotalMessages += int64(len(msgs))
		for _, m := range msgs {
			if !m.Date.Before(midnight) {
				o.MessagesToday++
			}
			if m.Media != nil {
				o.MediaFiles++
				if m.Media.Status == models.DownloadStatusCompleted {
					o.DownloadedFiles++
				}
			}
		}
	}
	for _, t := range d.tasks {
		if t.Status == models.TaskStatusRunning {
			o.RunningTasks++
		}
	}
	return o
}

// GroupSummaries computes the per-group dashboard rows in display order.
func (d *Dataset) GroupSummaries() []models.GroupSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	groups := lo.Values(d.groups)
	models.SortGroups(groups)

	return lo.Map(groups, func(g models.Group, _ int) models.GroupSummary {
		s := models.GroupSummary{GroupID: g.ID, Title: g.Title, IsActive: g.IsActive}
		msgs := d.messages[g.ID]
		s.MessageCount = int64(len(msgs))
		for _, m := range msgs {
			if m.Media != nil {
				s.MediaCount++
			}
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1].Date
			s.LastMessageAt = &last
		}
		return s
	})
}

// RecentActivity returns the newest activity items, most recent first.
func (d *Dataset) RecentActivity(limit int) []models.ActivityItem {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit <= 0 || limit > len(d.activity) {
		limit = len(d.activity)
	}
	out := make([]models.ActivityItem, limit)
	for i := 0; i < limit; i++ {
		out[i] = d.activity[len(d.activity)-1-i]
	}
	return out
}

// DownloadStats aggregates media download statistics across all groups.
func (d *Dataset) DownloadStats() models.DownloadStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stats models.DownloadStats
	byType := make(map[models.MediaType]*models.MediaTypeCount)

	for _, msgs := range d.messages {
		for _, m := range msgs {
			if m.Media == nil {
				continue
			}
			switch m.Media.Status {
			case models.DownloadStatusCompleted:
				stats.TotalFiles++
				stats.TotalBytes += m.Media.Size
				tc, ok := byType[m.Media.Type]
				if !ok {
					tc = &models.MediaTypeCount{Type: m.Media.Type}
					byType[m.Media.Type] = tc
				}
				tc.Files++
				tc.Bytes += m.Media.Size
			case models.DownloadStatusFailed:
				stats.FailedFiles++
			case models.DownloadStatusDownloading:
				stats.ActiveDownloads++
			}
		}
	}

	stats.ByType = lo.Map(lo.Values(byType), func(tc *models.MediaTypeCount, _ int) models.MediaTypeCount {
		return *tc
	})
	sort.Slice(stats.ByType, func(i, j int) bool { return stats.ByType[i].Type < stats.ByType[j].Type })
	return stats
}

// Uptime reports how long the dataset has been serving.
func (d *Dataset) Uptime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Sub(d.startedAt)
}

// recordActivity appends to the bounded activity ring. Must hold the lock.
func (d *Dataset) recordActivity(kind string, groupID int64, detail string) {
	d.activity = append(d.activity, models.ActivityItem{
		Type:      kind,
		GroupID:   groupID,
		Detail:    detail,
		Timestamp: d.now(),
	})
	if len(d.activity) > activityLimit {
		d.activity = d.activity[len(d.activity)-activityLimit:]
	}
}
