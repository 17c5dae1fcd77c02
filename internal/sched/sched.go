package sched

import (
	"sync"
	"time"
)

// Scheduler owns cancellable timers keyed by owner, so a component can
// tear down everything it scheduled with a single CancelOwner call and
// no timer outlives its owner.
type Scheduler struct {
	mu     sync.Mutex
	nextID int64
	timers map[string]map[int64]*time.Timer
	closed bool
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		timers: make(map[string]map[int64]*time.Timer),
	}
}

// Schedule runs fn once after d, on the timer's own goroutine.
// It returns a handle usable with Cancel. A closed scheduler schedules
// nothing and returns 0.
func (s *Scheduler) Schedule(owner string, d time.Duration, fn func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	s.nextID++
	id := s.nextID

	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		owned, ok := s.timers[owner]
		if ok {
			// Already cancelled if the handle is gone.
			if _, live := owned[id]; !live {
				s.mu.Unlock()
				return
			}
			delete(owned, id)
			if len(owned) == 0 {
				delete(s.timers, owner)
			}
		}
		s.mu.Unlock()

		fn()
	})

	owned, ok := s.timers[owner]
	if !ok {
		owned = make(map[int64]*time.Timer)
		s.timers[owner] = owned
	}
	owned[id] = t

	return id
}

// Cancel stops a single timer. It reports whether the timer was still
// pending.
func (s *Scheduler) Cancel(owner string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.timers[owner]
	if !ok {
		return false
	}
	t, ok := owned[id]
	if !ok {
		return false
	}

	delete(owned, id)
	if len(owned) == 0 {
		delete(s.timers, owner)
	}
	t.Stop()
	return true
}

// CancelOwner stops every pending timer for owner and returns how many
// were cancelled.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.timers[owner]
	if !ok {
		return 0
	}

	for _, t := range owned {
		t.Stop()
	}
	n := len(owned)
	delete(s.timers, owner)
	return n
}

// Pending returns the number of pending timers for owner.
func (s *Scheduler) Pending(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[owner])
}

// Close cancels all timers for all owners. Further Schedule calls are
// no-ops.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, owned := range s.timers {
		for _, t := range owned {
			t.Stop()
		}
		delete(s.timers, owner)
	}
	s.closed = true
}
