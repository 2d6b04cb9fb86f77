package console

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telearc/archive-console/internal/logger"
)

// Severity grades a notification. Info and warning are transient; error and
// critical stay visible until dismissed.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Notification is one user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier receives user-facing notifications from the service layer.
type Notifier interface {
	Notify(severity Severity, message string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier returns a notifier backed by the given logger.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Component("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(severity Severity, message string) {
	switch severity {
	case SeverityInfo:
		n.log.Info().Msg(message)
	case SeverityWarning:
		n.log.Warn().Msg(message)
	default:
		n.log.Error().Str("severity", string(severity)).Msg(message)
	}
}

// MemoryNotifier keeps a bounded ring of recent notifications that the UI
// renders and the user dismisses one by one.
type MemoryNotifier struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

// NewMemoryNotifier returns a ring holding at most limit notifications.
func NewMemoryNotifier(limit int) *MemoryNotifier {
	if limit < 1 {
		limit = 20
	}
	return &MemoryNotifier{limit: limit, now: time.Now}
}

// Notify implements Notifier. The oldest entry is evicted beyond the cap.
func (n *MemoryNotifier) Notify(severity Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = append(n.items, Notification{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		CreatedAt: n.now(),
	})
	if len(n.items) > n.limit {
		n.items = n.items[len(n.items)-n.limit:]
	}
}

// Active returns the current notifications, oldest first.
func (n *MemoryNotifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}

// Dismiss removes one notification by id.
func (n *MemoryNotifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.items {
		if n.items[i].ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

// DismissAll clears the ring.
func (n *MemoryNotifier) DismissAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
}

// multiNotifier fans one notification out to several receivers.
type multiNotifier []Notifier

func (m multiNotifier) Notify(severity Severity, message string) {
	for _, n := range m {
		n.Notify(severity, message)
	}
}

// Combine builds a notifier that forwards to all given notifiers.
func Combine(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}
