// Package scroll decides when to fetch older or newer message pages for the
// current group and feeds the results into the message store.
package scroll

import (
	"context"
	"sync"
	"time"

	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/models"
	"github.com/telearc/archive-console/internal/store"
)

// DefaultDebounce is the trailing debounce applied to scroll triggers.
const DefaultDebounce = 300 * time.Millisecond

// State is the externally visible controller state.
type State string

const (
	StateIdle           State = "idle"
	StateLoadingOlder   State = "loading-older"
	StateLoadingNewer   State = "loading-newer"
	StateExhaustedOlder State = "exhausted-older"
	StateExhaustedNewer State = "exhausted-newer"
)

// Direction names a fetch direction for error reporting.
type Direction string

const (
	DirectionOlder Direction = "older"
	DirectionNewer Direction = "newer"
)

// Page is one fetched slice of a group's history.
type Page struct {
	Messages []models.Message
	Total    int
	HasMore  bool
}

// Fetcher loads one page of messages, newest first, skip counted from the
// newest message.
type Fetcher interface {
	FetchPage(ctx context.Context, groupID int64, skip, limit int) (Page, error)
}

// Sink receives fetched pages. *store.MessageStore satisfies it.
type Sink interface {
	Replace(groupID int64, msgs []models.Message) store.MergeStats
	Merge(groupID int64, batch []models.Message) (store.MergeStats, bool)
}

type activity int

const (
	actIdle activity = iota
	actOlder
	actNewer
)

// Controller is the infinite-scroll state machine. One instance serves one
// message view; Activate rebinds it when the user selects another group.
type Controller struct {
	fetcher  Fetcher
	sink     Sink
	pageSize int
	log      *logger.Logger

	// OnChange, when set before Activate, is notified after every state
	// transition. Called from internal goroutines.
	OnChange func(State)
	// OnError, when set before Activate, receives fetch failures. The
	// controller returns to idle so the trigger can fire again.
	OnError func(Direction, error)

	mu             sync.Mutex
	debounce       time.Duration
	groupID        int64
	generation     uint64
	act            activity
	olderExhausted bool
	newerExhausted bool
	olderSkip      int
	total          int
	nearBottom     bool
	ctx            context.Context
	cancel         context.CancelFunc
	olderTimer     *time.Timer
	newerTimer     *time.Timer
}

// New builds a controller around a fetcher and a message sink.
func New(fetcher Fetcher, sink Sink, pageSize int, log *logger.Logger) *Controller {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Controller{
		fetcher:  fetcher,
		sink:     sink,
		pageSize: pageSize,
		debounce: DefaultDebounce,
		log:      log.Component("scroll"),
	}
}

// SetDebounce overrides the trailing debounce interval. Zero disables
// debouncing, which is mainly useful in tests.
func (c *Controller) SetDebounce(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounce = d
}

// SetPageSize overrides the fetch window size. Takes effect on the next
// activation or page load.
func (c *Controller) SetPageSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.pageSize = n
	}
}

// Activate binds the controller to a group, aborts any in-flight load for
// the previous one and fetches the first page synchronously.
func (c *Controller) Activate(ctx context.Context, groupID int64) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	c.stopTimersLocked()
	c.ctx, c.cancel = context.WithCancel(ctx)
	fetchCtx := c.ctx
	c.groupID = groupID
	c.act = actIdle
	c.olderExhausted = false
	c.newerExhausted = false
	c.olderSkip = 0
	c.total = 0
	c.nearBottom = true
	size := c.pageSize
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(fetchCtx, groupID, 0, size)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.olderSkip = len(page.Messages)
	c.total = page.Total
	if len(page.Messages) < size || !page.HasMore {
		c.olderExhausted = true
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.sink.Replace(groupID, page.Messages)
	c.notify(state)
	return nil
}

// Deactivate aborts in-flight loads and unbinds the controller.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stopTimersLocked()
	c.groupID = 0
	c.act = actIdle
	c.olderExhausted = false
	c.newerExhausted = false
	c.olderSkip = 0
	c.total = 0
	c.mu.Unlock()
}

// OnNearTop reports that the viewport came within the near-top threshold.
// After the debounce settles it loads the next older page.
func (c *Controller) OnNearTop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.groupID == 0 || c.olderExhausted {
		return
	}
	gen := c.generation
	c.scheduleLocked(&c.olderTimer, func() { c.loadOlder(gen) })
}

// SetNearBottom tracks whether the viewport hugs the latest message. Moving
// into the near-bottom zone triggers a catch-up fetch of the newest page.
func (c *Controller) SetNearBottom(near bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nearBottom = near
	if !near || c.groupID == 0 || c.newerExhausted {
		return
	}
	gen := c.generation
	c.scheduleLocked(&c.newerTimer, func() { c.loadNewer(gen) })
}

// NearBottom reports whether the viewport is close enough to the latest
// message to auto-follow new arrivals.
func (c *Controller) NearBottom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nearBottom
}

// CatchUp schedules a newest-page fetch regardless of viewport position.
// The bridge calls it after every reconnect to close the gap of events the
// dropped connection may have swallowed.
func (c *Controller) CatchUp() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.groupID == 0 {
		return
	}
	c.newerExhausted = false
	gen := c.generation
	c.scheduleLocked(&c.newerTimer, func() { c.loadNewer(gen) })
}

// NotifyNewData records messages that arrived through the push channel. It
// clears newer-exhaustion and shifts the older-page cursor so already-loaded
// history is not re-fetched under its new offset.
func (c *Controller) NotifyNewData(added int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newerExhausted = false
	if added > 0 {
		c.olderSkip += added
	}
}

// State derives the visible state from activity and exhaustion flags.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Total returns the backend's total message count for the active group.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// OlderExhausted reports whether all history above the list has been loaded.
func (c *Controller) OlderExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.olderExhausted
}

func (c *Controller) stateLocked() State {
	switch c.act {
	case actOlder:
		return StateLoadingOlder
	case actNewer:
		return StateLoadingNewer
	}
	if c.olderExhausted {
		return StateExhaustedOlder
	}
	if c.newerExhausted {
		return StateExhaustedNewer
	}
	return StateIdle
}

// scheduleLocked restarts a trailing-debounce timer. Must hold the lock.
func (c *Controller) scheduleLocked(timer **time.Timer, fire func()) {
	if *timer != nil {
		(*timer).Stop()
	}
	if c.debounce <= 0 {
		go fire()
		return
	}
	*timer = time.AfterFunc(c.debounce, fire)
}

func (c *Controller) stopTimersLocked() {
	if c.olderTimer != nil {
		c.olderTimer.Stop()
		c.olderTimer = nil
	}
	if c.newerTimer != nil {
		c.newerTimer.Stop()
		c.newerTimer = nil
	}
}

// loadOlder fetches the next older page. A request in flight in either
// direction suppresses the trigger entirely; the next scroll event retries.
func (c *Controller) loadOlder(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.act != actIdle || c.olderExhausted {
		c.mu.Unlock()
		return
	}
	c.act = actOlder
	groupID := c.groupID
	skip := c.olderSkip
	size := c.pageSize
	ctx := c.ctx
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(state)

	page, err := c.fetcher.FetchPage(ctx, groupID, skip, size)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.act = actIdle
	if err == nil {
		c.olderSkip += len(page.Messages)
		c.total = page.Total
		if len(page.Messages) < size || !page.HasMore {
			c.olderExhausted = true
		}
	}
	state = c.stateLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Int64("group_id", groupID).Msg("older page load failed")
		c.fail(DirectionOlder, err)
		c.notify(state)
		return
	}

	c.sink.Merge(groupID, page.Messages)
	c.notify(state)
}

// loadNewer re-fetches the newest page to catch up with arrivals the push
// channel may have missed. When nothing new comes back the newer direction
// is exhausted until a push event says otherwise.
func (c *Controller) loadNewer(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.act != actIdle || c.newerExhausted {
		c.mu.Unlock()
		return
	}
	c.act = actNewer
	groupID := c.groupID
	size := c.pageSize
	ctx := c.ctx
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(state)

	page, err := c.fetcher.FetchPage(ctx, groupID, 0, size)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.act = actIdle
	if err == nil {
		c.total = page.Total
	}
	state = c.stateLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Int64("group_id", groupID).Msg("newer page load failed")
		c.fail(DirectionNewer, err)
		c.notify(state)
		return
	}

	stats, ok := c.sink.Merge(groupID, page.Messages)

	c.mu.Lock()
	if gen == c.generation && ok {
		if stats.Added == 0 {
			c.newerExhausted = true
		} else {
			// fresh data shifts the offsets of everything already loaded
			c.olderSkip += stats.Added
		}
	}
	state = c.stateLocked()
	c.mu.Unlock()

	c.notify(state)
}

func (c *Controller) notify(state State) {
	if c.OnChange != nil {
		c.OnChange(state)
	}
}

func (c *Controller) fail(dir Direction, err error) {
	if c.OnError != nil {
		c.OnError(dir, err)
	}
}
