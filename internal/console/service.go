// Package console is the orchestration layer of the archive client. It owns
// the stores, the navigation trail and the persisted session, turns push
// events into store mutations, and exposes the operations the terminal UI
// calls. All methods are safe for concurrent use.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/config"
	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/models"
	"github.com/telearc/archive-console/internal/nav"
	"github.com/telearc/archive-console/internal/scroll"
	"github.com/telearc/archive-console/internal/state"
	"github.com/telearc/archive-console/internal/store"
)

// ErrNoHistory is returned by Back/Forward when the trail cannot move.
var ErrNoHistory = errors.New("no history entry in that direction")

// ErrNoSelection is returned by operations that need a selected group.
var ErrNoSelection = errors.New("no group selected")

// backendLogLimit caps the ring of backend log lines kept from push events.
const backendLogLimit = 200

// Service wires the REST client, the stores, navigation and the push channel
// together.
type Service struct {
	cfg      *config.Config
	client   *api.Client
	log      *logger.Logger
	notifier Notifier

	groups   *store.GroupStore
	messages *store.MessageStore
	tasks    *store.TaskStore
	overlay  *store.DownloadOverlay

	history *nav.History
	session *state.Store
	scroll  *scroll.Controller

	// events for groups other than the selected one only bump this counter
	unseen atomic.Int64

	connStatus atomic.Value // bridge.Status

	logMu       sync.Mutex
	backendLogs []models.LogEntry
}

// NewService builds the service around an authenticated client and an open
// state store. A nil notifier falls back to the log.
func NewService(cfg *config.Config, client *api.Client, session *state.Store, notifier Notifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	s := &Service{
		cfg:      cfg,
		client:   client,
		log:      log.Component("console"),
		notifier: notifier,
		groups:   store.NewGroupStore(),
		messages: store.NewMessageStore(),
		tasks:    store.NewTaskStore(),
		overlay:  store.NewDownloadOverlay(),
		history:  nav.New(cfg.HistoryLimit),
		session:  session,
	}

	s.scroll = scroll.New(pageFetcher{client: client}, s.messages, cfg.PageSize, log)
	s.scroll.OnError = func(dir scroll.Direction, err error) {
		s.reportError(fmt.Sprintf("load %s messages", dir), err)
	}
	return s
}

// pageFetcher adapts the REST client to the scroll controller.
type pageFetcher struct {
	client *api.Client
}

func (f pageFetcher) FetchPage(ctx context.Context, groupID int64, skip, limit int) (scroll.Page, error) {
	resp, err := f.client.ListMessages(ctx, groupID, skip, limit, nil)
	if err != nil {
		return scroll.Page{}, err
	}
	return scroll.Page{Messages: resp.Messages, Total: resp.Total, HasMore: resp.HasMore}, nil
}

// ============================================================================
// Store access
// ============================================================================

// Groups returns the group store.
func (s *Service) Groups() *store.GroupStore { return s.groups }

// Messages returns the message store for the selected group.
func (s *Service) Messages() *store.MessageStore { return s.messages }

// Tasks returns the task store.
func (s *Service) Tasks() *store.TaskStore { return s.tasks }

// Downloads returns the download-state overlay.
func (s *Service) Downloads() *store.DownloadOverlay { return s.overlay }

// Scroll returns the infinite-scroll controller bound to the message view.
func (s *Service) Scroll() *scroll.Controller { return s.scroll }

// History returns the navigation trail.
func (s *Service) History() *nav.History { return s.history }

// UnseenCount reports how many push events arrived for groups other than the
// selected one since the counter was last reset.
func (s *Service) UnseenCount() int64 { return s.unseen.Load() }

// ResetUnseen zeroes the unseen-event counter.
func (s *Service) ResetUnseen() { s.unseen.Store(0) }

// SetPageSize overrides the configured page size for subsequent loads and
// searches.
func (s *Service) SetPageSize(n int) {
	if n < 1 {
		return
	}
	s.cfg.PageSize = n
	s.scroll.SetPageSize(n)
}

// ============================================================================
// Session
// ============================================================================

// RestoreSession loads the persisted token and navigation trail, and returns
// the last selected group id (0 when none was stored). The caller decides
// whether to re-select it; restoring never touches the network.
func (s *Service) RestoreSession() (int64, error) {
	token, err := s.session.Get(state.KeyAuthToken)
	switch {
	case err == nil:
		s.client.SetToken(token)
	case !errors.Is(err, state.ErrNotFound):
		return 0, fmt.Errorf("restore token: %w", err)
	}

	if data, err := s.session.Get(state.KeyNavHistory); err == nil {
		if err := s.history.Restore([]byte(data)); err != nil {
			// a corrupt trail is not worth failing startup over
			s.log.Warn().Err(err).Msg("discarding unreadable navigation history")
		}
	}

	raw, err := s.session.Get(state.KeyLastGroup)
	if errors.Is(err, state.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("restore last group: %w", err)
	}
	lastGroup, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.log.Warn().Str("value", raw).Msg("discarding unreadable last group")
		return 0, nil
	}
	return lastGroup, nil
}

// SetToken stores a new bearer token for this and future sessions.
func (s *Service) SetToken(token string) error {
	s.client.SetToken(token)
	if err := s.session.Set(state.KeyAuthToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Logout drops the bearer token from the client and the session store.
func (s *Service) Logout() {
	s.client.SetToken("")
	if err := s.session.Delete(state.KeyAuthToken); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear stored token")
	}
}

// ============================================================================
// Selection & navigation
// ============================================================================

// SelectGroup switches the message view to a group: cancels in-flight loads,
// fetches the first page, records the jump in the trail and persists the
// selection. Stale responses for the previous group are discarded by the
// controller generation.
func (s *Service) SelectGroup(ctx context.Context, groupID int64) error {
	if err := s.applyGroup(ctx, groupID); err != nil {
		return err
	}

	title := ""
	if g, ok := s.groups.Get(groupID); ok {
		title = g.Title
	}
	s.pushNav(nav.Entry{Type: nav.EntryGroup, GroupID: groupID, Title: title})
	return nil
}

// JumpToMessage selects a group and anchors the trail entry to one message.
// The anchored message is returned when it sits inside the loaded window;
// deeper history is reached by scrolling up from the anchor's group.
func (s *Service) JumpToMessage(ctx context.Context, groupID, messageID int64) (*models.Message, error) {
	if err := s.applyGroup(ctx, groupID); err != nil {
		return nil, err
	}

	title := ""
	if g, ok := s.groups.Get(groupID); ok {
		title = g.Title
	}
	s.pushNav(nav.Entry{Type: nav.EntryMessage, GroupID: groupID, MessageID: messageID, Title: title})

	if msg, ok := s.messages.Get(messageID); ok {
		return &msg, nil
	}
	return nil, nil
}

// Back replays the previous trail entry without recording a new one.
func (s *Service) Back(ctx context.Context) (nav.Entry, error) {
	entry, ok := s.history.Back()
	if !ok {
		return nav.Entry{}, ErrNoHistory
	}
	if err := s.applyGroup(ctx, entry.GroupID); err != nil {
		return entry, err
	}
	s.persistNav()
	return entry, nil
}

// Forward replays the next trail entry without recording a new one.
func (s *Service) Forward(ctx context.Context) (nav.Entry, error) {
	entry, ok := s.history.Forward()
	if !ok {
		return nav.Entry{}, ErrNoHistory
	}
	if err := s.applyGroup(ctx, entry.GroupID); err != nil {
		return entry, err
	}
	s.persistNav()
	return entry, nil
}

// applyGroup performs the actual switch: selection, store reset, first page.
// It is shared by SelectGroup, JumpToMessage and trail replay.
func (s *Service) applyGroup(ctx context.Context, groupID int64) error {
	if _, ok := s.groups.Get(groupID); !ok {
		// the list may simply not be loaded yet
		if _, err := s.RefreshGroups(ctx); err != nil {
			return err
		}
		if _, ok := s.groups.Get(groupID); !ok {
			return &api.APIError{Kind: api.KindNotFound, Message: fmt.Sprintf("unknown group %d", groupID)}
		}
	}

	s.groups.Select(groupID)
	s.messages.Reset(groupID)
	s.ResetUnseen()

	if err := s.scroll.Activate(ctx, groupID); err != nil {
		s.reportError("load group history", err)
		return err
	}

	if err := s.session.Set(state.KeyLastGroup, strconv.FormatInt(groupID, 10)); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist group selection")
	}
	s.log.Info().Int64("group_id", groupID).Msg("group selected")
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

func (s *Service) pushNav(entry nav.Entry) {
	entry.Timestamp = nowUTC()
	s.history.Push(entry)
	s.persistNav()
}

func (s *Service) persistNav() {
	data, err := s.history.Snapshot()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to snapshot navigation history")
		return
	}
	if err := s.session.Set(state.KeyNavHistory, string(data)); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist navigation history")
	}
}

// ============================================================================
// Error routing
// ============================================================================

// reportError maps a failure to the user-facing recovery behavior: auth
// failures end the session, validation failures stay inline with the caller,
// everything else becomes a notification while displayed data stays intact.
func (s *Service) reportError(op string, err error) {
	if err == nil {
		return
	}

	apiErr := api.AsAPIError(err)
	if apiErr == nil {
		s.notifier.Notify(SeverityError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	switch apiErr.Kind {
	case api.KindAuth:
		s.Logout()
		s.notifier.Notify(SeverityCritical, "session expired, sign in again")
	case api.KindValidation:
		// surfaced inline by the caller, never as a notification
	case api.KindNotFound:
		s.notifier.Notify(SeverityWarning, fmt.Sprintf("%s: %s", op, apiErr.Message))
	default:
		s.notifier.Notify(SeverityError, fmt.Sprintf("%s: %s", op, apiErr.Message))
	}

	s.log.Warn().
		Str("op", op).
		Str("kind", string(apiErr.Kind)).
		Int("status", apiErr.StatusCode).
		Msg("operation failed")
}
