package notify

import "github.com/tradeops/desksync/internal/sched"

// toastOwner keys toast auto-dismiss timers in the scheduler.
const toastOwner = "toasts"

// toastQueue is the bounded queue of visible toasts, oldest first.
// Methods are not self-locking; callers hold the governor mutex.
type toastQueue struct {
	max    int
	timers *sched.Scheduler

	entries []toastEntry
}

type toastEntry struct {
	id      string
	timerID int64
}

func newToastQueue(max int, timers *sched.Scheduler) *toastQueue {
	return &toastQueue{max: max, timers: timers}
}

// insert appends a toast, evicting from the front until the bound
// holds. Evicted toasts have their auto-dismiss timers cancelled; the
// evicted ids are returned oldest first.
func (q *toastQueue) insert(id string) (evicted []string) {
	q.entries = append(q.entries, toastEntry{id: id})

	for len(q.entries) > q.max {
		oldest := q.entries[0]
		q.entries = q.entries[1:]
		if oldest.timerID != 0 {
			q.timers.Cancel(toastOwner, oldest.timerID)
		}
		evicted = append(evicted, oldest.id)
	}
	return evicted
}

// bind attaches an auto-dismiss timer handle to a queued toast.
func (q *toastQueue) bind(id string, timerID int64) {
	for i := range q.entries {
		if q.entries[i].id == id {
			q.entries[i].timerID = timerID
			return
		}
	}
	// Already evicted before the timer was bound.
	q.timers.Cancel(toastOwner, timerID)
}

// remove takes a toast out of the queue, cancelling its timer. It
// reports whether the toast was queued.
func (q *toastQueue) remove(id string) bool {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			if e.timerID != 0 {
				q.timers.Cancel(toastOwner, e.timerID)
			}
			return true
		}
	}
	return false
}

// ids returns the queued toast ids in insertion order.
func (q *toastQueue) ids() []string {
	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.id
	}
	return out
}

func (q *toastQueue) len() int {
	return len(q.entries)
}
