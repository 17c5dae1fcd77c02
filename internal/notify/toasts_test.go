package notify

import (
	"testing"
	"time"

	"github.com/tradeops/desksync/internal/sched"
)

func TestToastQueue_EvictsOldest(t *testing.T) {
	timers := sched.New()
	defer timers.Close()

	q := newToastQueue(3, timers)

	for _, id := range []string{"a", "b", "c"} {
		if evicted := q.insert(id); len(evicted) != 0 {
			t.Fatalf("unexpected eviction: %v", evicted)
		}
	}

	evicted := q.insert("d")
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v, want [a]", evicted)
	}

	got := q.ids()
	want := []string{"b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestToastQueue_EvictionCancelsTimer(t *testing.T) {
	timers := sched.New()
	defer timers.Close()

	q := newToastQueue(1, timers)

	fired := make(chan struct{}, 1)
	q.insert("a")
	q.bind("a", timers.Schedule(toastOwner, 20*time.Millisecond, func() {
		fired <- struct{}{}
	}))

	q.insert("b") // evicts a, cancelling its timer

	select {
	case <-fired:
		t.Fatal("evicted toast's timer still fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestToastQueue_Remove(t *testing.T) {
	timers := sched.New()
	defer timers.Close()

	q := newToastQueue(3, timers)
	q.insert("a")
	q.insert("b")

	if !q.remove("a") {
		t.Error("remove(a) = false")
	}
	if q.remove("a") {
		t.Error("second remove(a) = true")
	}
	if q.len() != 1 || q.ids()[0] != "b" {
		t.Errorf("queue = %v", q.ids())
	}
}

func TestToastQueue_BindAfterEviction(t *testing.T) {
	timers := sched.New()
	defer timers.Close()

	q := newToastQueue(1, timers)
	q.insert("a")
	q.insert("b") // a already evicted

	fired := make(chan struct{}, 1)
	q.bind("a", timers.Schedule(toastOwner, 10*time.Millisecond, func() {
		fired <- struct{}{}
	}))

	select {
	case <-fired:
		t.Fatal("timer bound to an evicted toast fired")
	case <-time.After(40 * time.Millisecond):
	}
}
