package state

import (
	"log/slog"
	"sync"

	"github.com/tradeops/desksync/internal/model"
)

// SourceStream and SourceRest tag where a snapshot came from.
const (
	SourceStream = "stream"
	SourceRest   = "rest"
)

// Store holds the canonical snapshot per entity. The throttler merges
// stream deltas into it; the fallback poller replaces the whole view.
// Changes are published on a bounded channel for downstream consumers.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	entities map[string]model.Snapshot
	replaces int64
	merges   int64

	changes chan model.Snapshot
}

// Stats contains store counters.
type Stats struct {
	Entities int
	Replaces int64
	Merges   int64
}

// NewStore creates an empty store. changeBuffer bounds the change
// notification channel; overflow drops with a warning.
func NewStore(changeBuffer int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if changeBuffer < 1 {
		changeBuffer = 1
	}
	return &Store{
		logger:   logger,
		entities: make(map[string]model.Snapshot),
		changes:  make(chan model.Snapshot, changeBuffer),
	}
}

// Replace swaps the entire view for the given snapshots. Entities not
// present in snaps are removed; this is the poller's full-refresh path.
func (s *Store) Replace(snaps map[string]model.Snapshot) {
	s.mu.Lock()
	next := make(map[string]model.Snapshot, len(snaps))
	for id, snap := range snaps {
		snap.EntityID = id
		snap.Source = SourceRest
		next[id] = snap.Clone()
	}
	s.entities = next
	s.replaces++
	published := make([]model.Snapshot, 0, len(next))
	for _, snap := range next {
		published = append(published, snap)
	}
	s.mu.Unlock()

	for _, snap := range published {
		s.publish(snap)
	}
}

// ApplyMerged overlays a merged update onto the canonical snapshot,
// field-level last-write-wins. This is the throttler's output path.
func (s *Store) ApplyMerged(u model.EntityUpdate) {
	s.mu.Lock()
	snap, ok := s.entities[u.EntityID]
	if !ok {
		snap = model.Snapshot{
			EntityID: u.EntityID,
			Fields:   make(map[string]any, len(u.Fields)),
		}
	} else {
		snap = snap.Clone()
	}
	for k, v := range u.Fields {
		snap.Fields[k] = v
	}
	snap.UpdatedAt = u.Timestamp
	snap.Source = SourceStream
	s.entities[u.EntityID] = snap
	s.merges++
	s.mu.Unlock()

	s.publish(snap)
}

// Get returns the snapshot for one entity.
func (s *Store) Get(entityID string) (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.entities[entityID]
	if !ok {
		return model.Snapshot{}, false
	}
	return snap.Clone(), true
}

// All returns a copy of the full view.
func (s *Store) All() map[string]model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Snapshot, len(s.entities))
	for id, snap := range s.entities {
		out[id] = snap.Clone()
	}
	return out
}

// Changes returns the change notification channel.
func (s *Store) Changes() <-chan model.Snapshot {
	return s.changes
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entities: len(s.entities),
		Replaces: s.replaces,
		Merges:   s.merges,
	}
}

func (s *Store) publish(snap model.Snapshot) {
	select {
	case s.changes <- snap:
	default:
		s.logger.Warn("change buffer full, dropping notification",
			"entity", snap.EntityID,
		)
	}
}
