package console

import (
	"context"
	"fmt"

	"github.com/telearc/archive-console/internal/bridge"
	"github.com/telearc/archive-console/internal/models"
)

// RunBridge connects the push channel and keeps it alive until ctx is done.
// Every (re)connect triggers a catch-up fetch, since events during the gap
// are gone for good.
func (s *Service) RunBridge(ctx context.Context) error {
	b := bridge.New(s.cfg.WSURL(), s.client.Token(), s.log)
	b.OnEvent = s.HandleEvent
	b.OnStatus = func(status bridge.Status) {
		prev := s.ConnStatus()
		s.connStatus.Store(status)

		switch status {
		case bridge.StatusConnected:
			if prev != "" && prev != bridge.StatusConnected {
				s.notifier.Notify(SeverityInfo, "live updates restored")
			}
			s.CatchUp(ctx)
		case bridge.StatusDisconnected:
			s.notifier.Notify(SeverityWarning, "live updates interrupted, reconnecting")
		}
	}
	return b.Run(ctx)
}

// ConnStatus returns the last known push-channel state.
func (s *Service) ConnStatus() bridge.Status {
	if v := s.connStatus.Load(); v != nil {
		return v.(bridge.Status)
	}
	return ""
}

// CatchUp refreshes everything the push channel keeps current: the newest
// message page for the selected group plus the group and task lists.
func (s *Service) CatchUp(ctx context.Context) {
	s.scroll.CatchUp()

	if _, err := s.RefreshGroups(ctx); err != nil {
		s.log.Warn().Err(err).Msg("group catch-up failed")
	}
	if _, err := s.RefreshTasks(ctx); err != nil {
		s.log.Warn().Err(err).Msg("task catch-up failed")
	}
}

// HandleEvent dispatches one push event into the stores. Message events for
// the selected group merge into the list; events for other groups only bump
// the unseen counter. Malformed payloads are dropped with a log line.
func (s *Service) HandleEvent(evt bridge.Event) {
	switch evt.Type {
	case bridge.EventMessageNew, bridge.EventMessageUpdated:
		msg, err := evt.Message()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		if msg.GroupID != s.groups.SelectedID() {
			s.unseen.Add(1)
			return
		}
		stats, ok := s.messages.Merge(msg.GroupID, []models.Message{msg})
		if ok && stats.Added > 0 {
			s.scroll.NotifyNewData(stats.Added)
		}

	case bridge.EventMessageDeleted:
		p, err := evt.MessageDeleted()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		if p.GroupID != s.groups.SelectedID() {
			s.unseen.Add(1)
			return
		}
		s.messages.Remove(p.MessageID)

	case bridge.EventTaskStatus:
		p, err := evt.TaskStatus()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		s.tasks.SetStatus(p.TaskID, p.Status)
		switch p.Status {
		case models.TaskStatusCompleted:
			s.notifier.Notify(SeverityInfo, fmt.Sprintf("download task %d completed", p.TaskID))
		case models.TaskStatusFailed:
			s.notifier.Notify(SeverityWarning, fmt.Sprintf("download task %d failed", p.TaskID))
		}

	case bridge.EventTaskProgress:
		p, err := evt.TaskProgress()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		s.tasks.SetProgress(p.TaskID, p.Progress)

	case bridge.EventGroupUpdated:
		group, err := evt.Group()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		s.groups.Upsert(group)

	case bridge.EventLogNew:
		entry, err := evt.LogEntry()
		if err != nil {
			s.dropEvent(evt, err)
			return
		}
		s.appendBackendLog(entry)

	default:
		s.log.Debug().Str("type", evt.Type).Msg("ignoring unknown event type")
	}
}

func (s *Service) dropEvent(evt bridge.Event, err error) {
	s.log.Warn().Err(err).Str("type", evt.Type).Msg("dropping malformed event")
}

// appendBackendLog keeps a bounded tail of pushed backend log lines.
func (s *Service) appendBackendLog(entry models.LogEntry) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	s.backendLogs = append(s.backendLogs, entry)
	if len(s.backendLogs) > backendLogLimit {
		s.backendLogs = s.backendLogs[len(s.backendLogs)-backendLogLimit:]
	}
}

// BackendLogTail returns the pushed backend log lines, oldest first.
func (s *Service) BackendLogTail() []models.LogEntry {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	out := make([]models.LogEntry, len(s.backendLogs))
	copy(out, s.backendLogs)
	return out
}
