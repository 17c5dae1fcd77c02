package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_Fire(t *testing.T) {
	s := New()
	defer s.Close()

	var fired atomic.Int32
	s.Schedule("owner-a", 10*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
	if got := s.Pending("owner-a"); got != 0 {
		t.Errorf("Pending = %d, want 0 after fire", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := New()
	defer s.Close()

	var fired atomic.Int32
	id := s.Schedule("owner-a", 20*time.Millisecond, func() {
		fired.Add(1)
	})

	if !s.Cancel("owner-a", id) {
		t.Error("Cancel returned false for pending timer")
	}
	if s.Cancel("owner-a", id) {
		t.Error("second Cancel returned true")
	}

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("fired = %d, want 0 after cancel", got)
	}
}

func TestScheduler_CancelOwner(t *testing.T) {
	s := New()
	defer s.Close()

	var fired atomic.Int32
	for i := 0; i < 3; i++ {
		s.Schedule("owner-a", 20*time.Millisecond, func() { fired.Add(1) })
	}
	s.Schedule("owner-b", 20*time.Millisecond, func() { fired.Add(1) })

	if n := s.CancelOwner("owner-a"); n != 3 {
		t.Errorf("CancelOwner = %d, want 3", n)
	}

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired = %d, want 1 (only owner-b)", got)
	}
}

func TestScheduler_Close(t *testing.T) {
	s := New()

	var fired atomic.Int32
	s.Schedule("owner-a", 20*time.Millisecond, func() { fired.Add(1) })
	s.Close()

	if id := s.Schedule("owner-a", time.Millisecond, func() { fired.Add(1) }); id != 0 {
		t.Errorf("Schedule after Close = %d, want 0", id)
	}

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("fired = %d, want 0 after Close", got)
	}
}
