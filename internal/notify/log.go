package notify

import (
	"context"
	"sync"
)

// Log is the persistent notification record. Every published
// notification is appended exactly once, whether or not it ever becomes
// a visible toast.
type Log interface {
	Append(ctx context.Context, n Notification) error
}

// MemoryLog is an in-memory Log for sessions running without a
// database.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Notification
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, n Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, n)
	return nil
}

// Entries returns the appended notifications in order.
func (l *MemoryLog) Entries() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
