package scroll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/models"
	"github.com/telearc/archive-console/internal/store"
)

type fetchCall struct {
	groupID int64
	skip    int
	limit   int
}

// fakeFetcher scripts page responses and tracks call concurrency.
type fakeFetcher struct {
	mu  sync.Mutex
	fn  func(fetchCall) (Page, error)
	log []fetchCall
	cur int
	max int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, groupID int64, skip, limit int) (Page, error) {
	f.mu.Lock()
	call := fetchCall{groupID: groupID, skip: skip, limit: limit}
	f.log = append(f.log, call)
	f.cur++
	if f.cur > f.max {
		f.max = f.cur
	}
	fn := f.fn
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.cur--
		f.mu.Unlock()
	}()
	return fn(call)
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.log)
}

func (f *fakeFetcher) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.max
}

// spySink wraps a real message store and records which groups got merges.
type spySink struct {
	store        *store.MessageStore
	mu           sync.Mutex
	mergedGroups []int64
}

func newSpySink() *spySink {
	return &spySink{store: store.NewMessageStore()}
}

func (s *spySink) Replace(groupID int64, msgs []models.Message) store.MergeStats {
	return s.store.Replace(groupID, msgs)
}

func (s *spySink) Merge(groupID int64, batch []models.Message) (store.MergeStats, bool) {
	s.mu.Lock()
	s.mergedGroups = append(s.mergedGroups, groupID)
	s.mu.Unlock()
	return s.store.Merge(groupID, batch)
}

func (s *spySink) merges() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.mergedGroups))
	copy(out, s.mergedGroups)
	return out
}

func testMsg(id, ts int64) models.Message {
	return models.Message{ID: id, MessageID: id, GroupID: 1, Date: time.Unix(ts, 0).UTC()}
}

// fullPage fabricates a page of `limit` messages ending just above `base`.
func fullPage(base int64, limit, total int) Page {
	msgs := make([]models.Message, limit)
	for i := 0; i < limit; i++ {
		id := base + int64(i)
		msgs[i] = testMsg(id, id*10)
	}
	return Page{Messages: msgs, Total: total, HasMore: true}
}

func newTestController(f *fakeFetcher, sink Sink, pageSize int) *Controller {
	c := New(f, sink, pageSize, logger.Nop())
	c.SetDebounce(time.Millisecond)
	return c
}

func TestController_ActivateLoadsFirstPage(t *testing.T) {
	f := &fakeFetcher{fn: func(call fetchCall) (Page, error) {
		return fullPage(100, call.limit, 500), nil
	}}
	sink := newSpySink()
	c := newTestController(f, sink, 3)

	require.NoError(t, c.Activate(context.Background(), 1))

	assert.Equal(t, 1, f.calls())
	assert.Equal(t, fetchCall{groupID: 1, skip: 0, limit: 3}, f.log[0])
	assert.Equal(t, 3, sink.store.Len())
	assert.Equal(t, 500, c.Total())
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.NearBottom(), "a fresh view starts at the newest message")
}

func TestController_ShortFirstPageExhaustsOlder(t *testing.T) {
	f := &fakeFetcher{fn: func(call fetchCall) (Page, error) {
		return Page{Messages: []models.Message{testMsg(1, 10)}, Total: 1, HasMore: false}, nil
	}}
	c := newTestController(f, newSpySink(), 50)

	require.NoError(t, c.Activate(context.Background(), 1))
	assert.Equal(t, StateExhaustedOlder, c.State())

	c.OnNearTop()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.calls(), "exhausted direction never fetches again")
}

func TestController_SingleOlderRequestInFlight(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{}
	f.fn = func(call fetchCall) (Page, error) {
		if call.skip > 0 {
			<-release
		}
		return fullPage(int64(1000-call.skip), call.limit, 1000), nil
	}
	c := newTestController(f, newSpySink(), 4)
	require.NoError(t, c.Activate(context.Background(), 1))

	// a burst of near-top events must coalesce into one request
	for i := 0; i < 5; i++ {
		c.OnNearTop()
	}
	require.Eventually(t, func() bool {
		return c.State() == StateLoadingOlder
	}, time.Second, time.Millisecond)

	// more triggers while the request is in flight are suppressed
	c.OnNearTop()
	c.OnNearTop()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		return c.State() != StateLoadingOlder
	}, time.Second, time.Millisecond)

	assert.Equal(t, 2, f.calls(), "initial page plus exactly one older page")
	assert.Equal(t, 1, f.maxConcurrent())
}

func TestController_OlderPagination(t *testing.T) {
	f := &fakeFetcher{fn: func(call fetchCall) (Page, error) {
		if call.skip >= 4 {
			// final short page
			return Page{Messages: []models.Message{testMsg(1, 10)}, Total: 5, HasMore: false}, nil
		}
		return fullPage(int64(10+call.skip), call.limit, 5), nil
	}}
	sink := newSpySink()
	c := newTestController(f, sink, 2)
	require.NoError(t, c.Activate(context.Background(), 1))

	c.OnNearTop()
	require.Eventually(t, func() bool { return f.calls() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, time.Millisecond)

	c.OnNearTop()
	require.Eventually(t, func() bool { return c.State() == StateExhaustedOlder }, time.Second, time.Millisecond)

	require.Len(t, f.log, 3)
	assert.Equal(t, 0, f.log[0].skip)
	assert.Equal(t, 2, f.log[1].skip, "second request continues past the first page")
	assert.Equal(t, 4, f.log[2].skip)
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{}
	f.fn = func(call fetchCall) (Page, error) {
		if call.groupID == 1 && call.skip > 0 {
			<-block
		}
		return fullPage(int64(100*call.groupID), call.limit, 100), nil
	}
	sink := newSpySink()
	c := newTestController(f, sink, 2)

	require.NoError(t, c.Activate(context.Background(), 1))
	c.OnNearTop()
	require.Eventually(t, func() bool { return c.State() == StateLoadingOlder }, time.Second, time.Millisecond)

	// user switches group while the older page for group 1 is in flight
	require.NoError(t, c.Activate(context.Background(), 2))
	close(block)

	time.Sleep(30 * time.Millisecond)
	assert.NotContains(t, sink.merges(), int64(1), "late response for the old group is dropped")
	assert.Equal(t, int64(2), sink.store.GroupID())
	assert.Equal(t, StateIdle, c.State())
}

func TestController_OlderFailureReturnsToIdle(t *testing.T) {
	var failNext atomic.Bool
	f := &fakeFetcher{}
	f.fn = func(call fetchCall) (Page, error) {
		if call.skip > 0 && failNext.Load() {
			return Page{}, errors.New("backend down")
		}
		return fullPage(int64(50-call.skip), call.limit, 100), nil
	}
	c := newTestController(f, newSpySink(), 2)

	var mu sync.Mutex
	var failures []Direction
	c.OnError = func(dir Direction, err error) {
		mu.Lock()
		failures = append(failures, dir)
		mu.Unlock()
	}

	require.NoError(t, c.Activate(context.Background(), 1))

	failNext.Store(true)
	c.OnNearTop()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, StateIdle, c.State(), "failure leaves the controller retryable")
	assert.Equal(t, []Direction{DirectionOlder}, failures)

	// the retry goes through
	failNext.Store(false)
	c.OnNearTop()
	require.Eventually(t, func() bool { return f.calls() == 3 }, time.Second, time.Millisecond)
}

func TestController_NewerCatchUpAndExhaustion(t *testing.T) {
	f := &fakeFetcher{fn: func(call fetchCall) (Page, error) {
		return fullPage(100, call.limit, 10), nil
	}}
	c := newTestController(f, newSpySink(), 3)
	require.NoError(t, c.Activate(context.Background(), 1))

	// catch-up returns only already-known messages
	c.SetNearBottom(true)
	require.Eventually(t, func() bool { return c.State() == StateExhaustedNewer }, time.Second, time.Millisecond)

	// further near-bottom events do not refetch
	calls := f.calls()
	c.SetNearBottom(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, f.calls())

	// a push event proves there is newer data again
	c.NotifyNewData(1)
	assert.NotEqual(t, StateExhaustedNewer, c.State())
}

func TestController_CatchUpFetchesEvenWhenScrolledUp(t *testing.T) {
	var total atomic.Int32
	total.Store(3)
	f := &fakeFetcher{}
	f.fn = func(call fetchCall) (Page, error) {
		n := int(total.Load())
		return fullPage(100, call.limit, n), nil
	}
	sink := newSpySink()
	c := newTestController(f, sink, 3)
	require.NoError(t, c.Activate(context.Background(), 1))

	// user reads old history; newer fetches are normally suppressed
	c.SetNearBottom(false)

	total.Store(5)
	c.CatchUp()
	require.Eventually(t, func() bool { return c.Total() == 5 }, time.Second, time.Millisecond)

	assert.Equal(t, 2, f.calls())
	assert.False(t, c.NearBottom(), "catch-up does not move the viewport")
}

func TestController_DeactivateStopsEverything(t *testing.T) {
	f := &fakeFetcher{fn: func(call fetchCall) (Page, error) {
		return fullPage(100, call.limit, 10), nil
	}}
	c := newTestController(f, newSpySink(), 3)
	require.NoError(t, c.Activate(context.Background(), 1))

	c.Deactivate()
	c.OnNearTop()
	c.SetNearBottom(true)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, f.calls(), "no fetches after deactivation")
	assert.Equal(t, StateIdle, c.State())
}
