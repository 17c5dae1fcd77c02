package throttle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/sched"
)

// timerOwner keys every window timer so Close cancels them all at once.
const timerOwner = "throttle"

// DefaultWindow is the throttle window applied when none is configured.
const DefaultWindow = time.Second

// EmitFunc receives the merged update when a window closes.
type EmitFunc func(model.EntityUpdate)

// Config holds merger configuration.
type Config struct {
	Window time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow}
}

// Merger collapses bursts of partial updates per entity into a single
// merged emission per throttle window. The first update for an entity
// opens a window and arms its close timer; later updates merge into the
// pending state (field-level last-write-wins) without rescheduling.
// On close the merged result is emitted exactly once. Nothing is ever
// silently dropped: the latest state always reaches the emit func.
type Merger struct {
	cfg    Config
	logger *slog.Logger
	timers *sched.Scheduler
	emit   EmitFunc

	mu      sync.Mutex
	windows map[string]pendingWindow
	closed  bool

	opened  int64
	merged  int64
	emitted int64
}

type pendingWindow struct {
	update  model.EntityUpdate
	timerID int64
}

// Stats contains merger counters.
type Stats struct {
	OpenWindows int
	Opened      int64
	Merged      int64
	Emitted     int64
}

// New creates a Merger emitting merged updates to emit.
func New(cfg Config, timers *sched.Scheduler, emit EmitFunc, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Merger{
		cfg:     cfg,
		logger:  logger,
		timers:  timers,
		emit:    emit,
		windows: make(map[string]pendingWindow),
	}
}

// Offer feeds one partial update into the merger.
func (m *Merger) Offer(u model.EntityUpdate) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Warn("update after close, dropping", "entity", u.EntityID)
		return
	}

	if w, ok := m.windows[u.EntityID]; ok {
		// Window already open: merge, keep the original close timer.
		for k, v := range u.Fields {
			w.update.Fields[k] = v
		}
		if u.Timestamp.After(w.update.Timestamp) {
			w.update.Timestamp = u.Timestamp
		}
		m.windows[u.EntityID] = w
		m.merged++
		m.mu.Unlock()
		return
	}

	entityID := u.EntityID
	w := pendingWindow{update: u.Clone()}
	w.timerID = m.timers.Schedule(timerOwner, m.cfg.Window, func() {
		m.flush(entityID)
	})
	m.windows[entityID] = w
	m.opened++
	m.mu.Unlock()
}

// flush closes one window and emits its merged result.
func (m *Merger) flush(entityID string) {
	m.mu.Lock()
	w, ok := m.windows[entityID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.windows, entityID)
	m.emitted++
	m.mu.Unlock()

	m.emit(w.update)
}

// Close cancels all window timers and flushes any pending state so the
// latest updates are not lost on teardown.
func (m *Merger) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.timers.CancelOwner(timerOwner)

	pending := make([]model.EntityUpdate, 0, len(m.windows))
	for _, w := range m.windows {
		pending = append(pending, w.update)
	}
	m.windows = make(map[string]pendingWindow)
	m.emitted += int64(len(pending))
	m.mu.Unlock()

	for _, u := range pending {
		m.emit(u)
	}
}

// Stats returns current counters.
func (m *Merger) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		OpenWindows: len(m.windows),
		Opened:      m.opened,
		Merged:      m.merged,
		Emitted:     m.emitted,
	}
}
