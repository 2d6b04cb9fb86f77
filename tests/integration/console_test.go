package integration

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/api"
	"github.com/telearc/archive-console/internal/bridge"
	"github.com/telearc/archive-console/internal/config"
	"github.com/telearc/archive-console/internal/console"
	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/mockserver"
	"github.com/telearc/archive-console/internal/models"
	"github.com/telearc/archive-console/internal/state"
)

// startBackend boots the seeded mock backend on a loopback listener.
func startBackend(t *testing.T) (*mockserver.Server, *httptest.Server) {
	t.Helper()

	hub := mockserver.NewHub(logger.Nop())
	go hub.Run()

	srv := mockserver.NewServer(mockserver.NewDataset(), hub, logger.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func consoleConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	return &config.Config{
		ServerURL:         serverURL,
		AuthToken:         "integration-token",
		RequestTimeoutSec: 5,
		RateLimitRPS:      1000,
		RateLimitBurst:    1000,
		RetryMaxAttempts:  2,
		PageSize:          10,
		DownloadDir:       t.TempDir(),
		HistoryLimit:      10,
	}
}

// newConsole wires a full console service against the given backend. The
// state store lives at statePath so tests can simulate a process restart.
func newConsole(t *testing.T, serverURL, statePath string) (*console.Service, *console.MemoryNotifier, *state.Store) {
	t.Helper()

	session, err := state.Open(statePath)
	require.NoError(t, err)

	cfg := consoleConfig(t, serverURL)
	notifier := console.NewMemoryNotifier(50)
	svc := console.NewService(cfg, api.New(cfg, logger.Nop()), session, notifier, logger.Nop())
	svc.Scroll().SetDebounce(0)
	return svc, notifier, session
}

func TestConsole_LiveFollowAgainstMockBackend(t *testing.T) {
	srv, ts := startBackend(t)

	svc, _, session := newConsole(t, ts.URL, filepath.Join(t.TempDir(), "state.db"))
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.SelectGroup(ctx, 1001))
	initial := svc.Messages().Len()
	require.Equal(t, 10, initial)

	go func() { _ = svc.RunBridge(ctx) }()
	require.Eventually(t, func() bool {
		return svc.ConnStatus() == bridge.StatusConnected
	}, 3*time.Second, 10*time.Millisecond)

	// synthetic traffic lands in both active groups
	feed := mockserver.NewFeed(srv, 25*time.Millisecond)
	go feed.Run(ctx)

	require.Eventually(t, func() bool {
		return svc.Messages().Len() > initial
	}, 3*time.Second, 20*time.Millisecond, "feed messages for the selected group merge in live")

	require.Eventually(t, func() bool {
		return svc.UnseenCount() > 0
	}, 3*time.Second, 20*time.Millisecond, "other-group traffic only bumps the counter")

	// switching groups resets the counter and swaps the window
	require.NoError(t, svc.SelectGroup(ctx, 1002))
	assert.Zero(t, svc.UnseenCount())
	assert.Equal(t, int64(1002), svc.Messages().GroupID())
}

func TestConsole_CrossClientDelivery(t *testing.T) {
	_, ts := startBackend(t)
	dir := t.TempDir()

	follower, _, followerSession := newConsole(t, ts.URL, filepath.Join(dir, "follower.db"))
	defer followerSession.Close()
	operator, _, operatorSession := newConsole(t, ts.URL, filepath.Join(dir, "operator.db"))
	defer operatorSession.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, follower.SelectGroup(ctx, 1001))
	go func() { _ = follower.RunBridge(ctx) }()
	require.Eventually(t, func() bool {
		return follower.ConnStatus() == bridge.StatusConnected
	}, 3*time.Second, 10*time.Millisecond)

	// a second client posts into the same group
	require.NoError(t, operator.SelectGroup(ctx, 1001))
	sent, err := operator.SendMessage(ctx, "cross-client hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msg, ok := follower.Messages().Get(sent.ID)
		return ok && msg.Text == "cross-client hello"
	}, 3*time.Second, 20*time.Millisecond, "the send reaches the follower over the push channel")

	// and deletes it again
	require.NoError(t, operator.DeleteMessage(ctx, sent.ID))
	require.Eventually(t, func() bool {
		_, ok := follower.Messages().Get(sent.ID)
		return !ok
	}, 3*time.Second, 20*time.Millisecond, "the deletion reaches the follower too")
}

func TestConsole_TaskCompletionOverPush(t *testing.T) {
	_, ts := startBackend(t)

	svc, notifier, session := newConsole(t, ts.URL, filepath.Join(t.TempDir(), "state.db"))
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.RunBridge(ctx) }()
	require.Eventually(t, func() bool {
		return svc.ConnStatus() == bridge.StatusConnected
	}, 3*time.Second, 10*time.Millisecond)

	_, err := svc.RefreshTasks(ctx)
	require.NoError(t, err)
	notifier.DismissAll()

	created, err := svc.CreateTask(ctx, models.DownloadTask{
		Name:            "attic pull",
		GroupID:         1003,
		DestinationPath: "/archive/attic",
	})
	require.NoError(t, err)

	_, err = svc.StartTask(ctx, created.ID)
	require.NoError(t, err)

	// the runner finishes the 25-message group after one progress step; the
	// completion arrives as a push event, not a poll
	require.Eventually(t, func() bool {
		task, ok := svc.Tasks().Get(created.ID)
		return ok && task.Status == models.TaskStatusCompleted
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, n := range notifier.Active() {
			if n.Severity == console.SeverityInfo && strings.Contains(n.Message, fmt.Sprintf("task %d completed", created.ID)) {
				return true
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond)

	runs, err := svc.TaskRuns(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.TaskStatusCompleted, runs[0].Status)
}

func TestConsole_SessionSurvivesRestart(t *testing.T) {
	_, ts := startBackend(t)
	statePath := filepath.Join(t.TempDir(), "state.db")

	first, _, firstSession := newConsole(t, ts.URL, statePath)
	ctx := context.Background()

	require.NoError(t, first.SetToken("rotated-token"))
	require.NoError(t, first.SelectGroup(ctx, 1001))
	require.NoError(t, first.SelectGroup(ctx, 1003))
	require.NoError(t, firstSession.Close())

	// a new process opens the same state file
	second, _, secondSession := newConsole(t, ts.URL, statePath)
	defer secondSession.Close()

	lastGroup, err := second.RestoreSession()
	require.NoError(t, err)
	assert.Equal(t, int64(1003), lastGroup)
	assert.Equal(t, 2, second.History().Len())

	require.NoError(t, second.SelectGroup(ctx, lastGroup))
	assert.Equal(t, int64(1003), second.Messages().GroupID())

	// and the trail still replays
	entry, err := second.Back(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), entry.GroupID)
	assert.Equal(t, int64(1001), second.Groups().SelectedID())
}
