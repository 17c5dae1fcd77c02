package notify

import (
	"time"

	"github.com/tradeops/desksync/internal/model"
)

// Notification is one user-facing event. Created once, then mutated
// only through the read/dismiss transitions; it is never deleted from
// the log, only marked dismissed.
type Notification struct {
	ID        string
	Event     string // domain event kind, e.g. "order_filled"
	Priority  model.Priority
	Title     string
	Message   string
	GroupKey  string // empty = never grouped
	Timestamp time.Time
	Read      bool
	Dismissed bool
}

// NotificationGroup is a derived, read-only aggregation of
// notifications sharing a group key within the grouping window.
type NotificationGroup struct {
	GroupKey string
	Count    int
	IDs      []string
	Latest   Notification
	FirstAt  time.Time
	LastAt   time.Time
}

// AutoDismissFunc maps a priority to its toast lifetime. The second
// return is false when the toast must be dismissed manually.
type AutoDismissFunc func(model.Priority) (time.Duration, bool)

// AutoDismissAfter is the production auto-dismiss table.
func AutoDismissAfter(p model.Priority) (time.Duration, bool) {
	switch p {
	case model.PriorityCritical:
		return 0, false
	case model.PriorityWarning:
		return 10 * time.Second, true
	case model.PrioritySuccess:
		return 5 * time.Second, true
	default:
		return 3 * time.Second, true
	}
}
