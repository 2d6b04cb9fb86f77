package store

import (
	"sync"
	"time"

	"github.com/telearc/archive-console/internal/models"
)

// DownloadState is the local view of one media transfer. It lives beside the
// canonical message record, never inside it, so a server-sourced update for
// the same message can never race with local download bookkeeping.
type DownloadState struct {
	Status    models.DownloadStatus
	Fraction  float64
	Path      string
	Error     string
	UpdatedAt time.Time
}

// DownloadOverlay is a side table of download states keyed by message id.
type DownloadOverlay struct {
	mu     sync.RWMutex
	states map[int64]DownloadState
	now    func() time.Time
}

// NewDownloadOverlay returns an empty overlay.
func NewDownloadOverlay() *DownloadOverlay {
	return &DownloadOverlay{
		states: make(map[int64]DownloadState),
		now:    time.Now,
	}
}

// Start marks a message's media as downloading.
func (o *DownloadOverlay) Start(messageID int64) {
	o.set(messageID, DownloadState{Status: models.DownloadStatusDownloading})
}

// Progress records transfer progress as a fraction in [0, 1].
func (o *DownloadOverlay) Progress(messageID int64, fraction float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := o.states[messageID]
	state.Status = models.DownloadStatusDownloading
	state.Fraction = fraction
	state.UpdatedAt = o.now()
	o.states[messageID] = state
}

// Complete records a finished download and where the file landed.
func (o *DownloadOverlay) Complete(messageID int64, path string) {
	o.set(messageID, DownloadState{
		Status:   models.DownloadStatusCompleted,
		Fraction: 1,
		Path:     path,
	})
}

// Fail records a failed download.
func (o *DownloadOverlay) Fail(messageID int64, err error) {
	state := DownloadState{Status: models.DownloadStatusFailed}
	if err != nil {
		state.Error = err.Error()
	}
	o.set(messageID, state)
}

// Get returns the download state for a message, if any.
func (o *DownloadOverlay) Get(messageID int64) (DownloadState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state, ok := o.states[messageID]
	return state, ok
}

// Clear forgets the state for one message.
func (o *DownloadOverlay) Clear(messageID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, messageID)
}

// Snapshot returns a copy of all tracked states.
func (o *DownloadOverlay) Snapshot() map[int64]DownloadState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[int64]DownloadState, len(o.states))
	for id, state := range o.states {
		out[id] = state
	}
	return out
}

func (o *DownloadOverlay) set(messageID int64, state DownloadState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state.UpdatedAt = o.now()
	o.states[messageID] = state
}
