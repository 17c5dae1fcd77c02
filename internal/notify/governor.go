package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/prefs"
	"github.com/tradeops/desksync/internal/sched"
)

// Deliverer sends a notification over one external channel. Failures
// are logged and never propagate to the publisher.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification, ch model.Channel) error
}

// Config tunes the governor. The zero value is usable.
type Config struct {
	// MaxToasts bounds the visible toast queue.
	MaxToasts int

	// AutoDismiss overrides the priority lifetime table. Tests use
	// this to shrink the dismiss delays.
	AutoDismiss AutoDismissFunc

	// HistoryLimit bounds the in-memory notification history. The
	// persistent log is unaffected.
	HistoryLimit int

	// GroupCacheSize bounds the number of concurrently tracked groups.
	GroupCacheSize int
}

const (
	// DefaultMaxToasts is the visible toast bound.
	DefaultMaxToasts = 3

	// DefaultHistoryLimit bounds in-memory history.
	DefaultHistoryLimit = 500
)

func (c *Config) applyDefaults() {
	if c.MaxToasts <= 0 {
		c.MaxToasts = DefaultMaxToasts
	}
	if c.AutoDismiss == nil {
		c.AutoDismiss = AutoDismissAfter
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
}

// Governor is the single gate every notification passes through. It
// appends to the persistent log first, then applies event toggles,
// quiet hours, and the per-channel priority matrix to decide what, if
// anything, the user actually sees.
type Governor struct {
	cfg    Config
	logger *slog.Logger
	timers *sched.Scheduler
	prefs  *prefs.Store
	log    Log

	delivMu    sync.RWMutex
	deliverers map[model.Channel]Deliverer

	mu     sync.Mutex
	byID   map[string]*Notification
	order  []string // history, oldest first
	toasts *toastQueue
	groups *expirable.LRU[string, *groupBucket]

	now func() time.Time
}

// NewGovernor builds a governor over the given preference store and
// persistent log. The grouping window is read from preferences at
// construction.
func NewGovernor(cfg Config, store *prefs.Store, log Log, timers *sched.Scheduler, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	window := time.Duration(store.Get().Grouping.WindowMinutes) * time.Minute

	return &Governor{
		cfg:        cfg,
		logger:     logger,
		timers:     timers,
		prefs:      store,
		log:        log,
		deliverers: make(map[model.Channel]Deliverer),
		byID:       make(map[string]*Notification),
		toasts:     newToastQueue(cfg.MaxToasts, timers),
		groups:     newGroupCache(cfg.GroupCacheSize, window),
		now:        time.Now,
	}
}

// RegisterDeliverer installs the transport for one external channel.
func (g *Governor) RegisterDeliverer(ch model.Channel, d Deliverer) {
	g.delivMu.Lock()
	defer g.delivMu.Unlock()
	g.deliverers[ch] = d
}

// Publish runs a notification through the full pipeline. The returned
// notification carries the assigned ID and timestamp. Publish never
// fails on delivery problems; the persistent log append is the only
// step whose error is surfaced, and even that only as a log line.
func (g *Governor) Publish(ctx context.Context, n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = g.now()
	}
	if !n.Priority.Valid() {
		n.Priority = model.PriorityInfo
	}

	g.record(n)

	// The log sees every notification exactly once, regardless of what
	// the rest of the pipeline suppresses.
	if err := g.log.Append(ctx, n); err != nil {
		g.logger.Error("notification log append failed",
			"id", n.ID,
			"event", n.Event,
			"error", err)
	}

	p := g.prefs.Get()

	if enabled, ok := p.EventToggles[n.Event]; ok && !enabled {
		g.logger.Debug("event muted, log only", "event", n.Event, "id", n.ID)
		return n
	}

	if p.QuietHours.Contains(g.now()) && n.Priority != model.PriorityCritical {
		g.logger.Debug("quiet hours, log only", "id", n.ID, "priority", string(n.Priority))
		return n
	}

	if p.DeliveryMethods[model.ChannelInApp] && matrixAllows(p, model.ChannelInApp, n.Priority) {
		g.showToast(n)
	}

	for _, ch := range model.ExternalChannels() {
		if !p.DeliveryMethods[ch] || !matrixAllows(p, ch, n.Priority) {
			continue
		}
		if !channelConfigValid(ch, p.DeliveryMethodConfig) {
			g.logger.Debug("channel config invalid, skipping",
				"channel", string(ch), "id", n.ID)
			continue
		}
		g.deliver(ctx, n, ch)
	}

	return n
}

// matrixAllows applies the priority matrix: only an explicit false
// suppresses a channel.
func matrixAllows(p prefs.Preferences, ch model.Channel, pr model.Priority) bool {
	row, ok := p.PriorityMatrix[ch]
	if !ok {
		return true
	}
	allowed, ok := row[pr]
	if !ok {
		return true
	}
	return allowed
}

func (g *Governor) deliver(ctx context.Context, n Notification, ch model.Channel) {
	g.delivMu.RLock()
	d := g.deliverers[ch]
	g.delivMu.RUnlock()
	if d == nil {
		return
	}
	if err := d.Deliver(ctx, n, ch); err != nil {
		g.logger.Warn("notification delivery failed",
			"channel", string(ch),
			"id", n.ID,
			"error", err)
	}
}

// record adds the notification to history and its group bucket.
func (g *Governor) record(n Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := n
	g.byID[n.ID] = &cp
	g.order = append(g.order, n.ID)

	for len(g.order) > g.cfg.HistoryLimit {
		oldest := g.order[0]
		g.order = g.order[1:]
		g.toasts.remove(oldest)
		delete(g.byID, oldest)
	}

	if n.GroupKey != "" {
		b, ok := g.groups.Get(n.GroupKey)
		if !ok {
			b = &groupBucket{firstAt: n.Timestamp}
			g.groups.Add(n.GroupKey, b)
		}
		b.ids = append(b.ids, n.ID)
		b.lastAt = n.Timestamp
	}
}

func (g *Governor) showToast(n Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.toasts.insert(n.ID)

	if d, ok := g.cfg.AutoDismiss(n.Priority); ok {
		id := n.ID
		timerID := g.timers.Schedule(toastOwner, d, func() {
			g.autoDismiss(id)
		})
		g.toasts.bind(n.ID, timerID)
	}
}

func (g *Governor) autoDismiss(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.toasts.remove(id)
	if n, ok := g.byID[id]; ok {
		n.Dismissed = true
	}
}

// Dismiss removes a toast and marks the notification dismissed. It
// reports whether the notification exists.
func (g *Governor) Dismiss(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.toasts.remove(id)
	n, ok := g.byID[id]
	if !ok {
		return false
	}
	n.Dismissed = true
	return true
}

// MarkRead marks one notification read.
func (g *Governor) MarkRead(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.byID[id]
	if !ok {
		return false
	}
	n.Read = true
	return true
}

// MarkGroupRead marks every member of a live group read and returns
// how many notifications were affected.
func (g *Governor) MarkGroupRead(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.groups.Get(key)
	if !ok {
		return 0
	}
	marked := 0
	for _, id := range b.ids {
		if n, ok := g.byID[id]; ok && !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked
}

// ActiveToasts returns the visible toasts, oldest first.
func (g *Governor) ActiveToasts() []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.toasts.ids()
	out := make([]Notification, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.byID[id]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// History returns up to limit notifications, newest first. limit <= 0
// returns everything retained in memory.
func (g *Governor) History(limit int) []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	if limit <= 0 || limit > len(g.order) {
		limit = len(g.order)
	}
	out := make([]Notification, 0, limit)
	for i := len(g.order) - 1; i >= 0 && len(out) < limit; i-- {
		if n, ok := g.byID[g.order[i]]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// Groups returns the live notification groups, oldest first.
func (g *Governor) Groups() []NotificationGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := g.groups.Keys()
	out := make([]NotificationGroup, 0, len(keys))
	for _, key := range keys {
		b, ok := g.groups.Get(key)
		if !ok {
			continue
		}
		grp := NotificationGroup{
			GroupKey: key,
			Count:    len(b.ids),
			IDs:      append([]string(nil), b.ids...),
			FirstAt:  b.firstAt,
			LastAt:   b.lastAt,
		}
		for i := len(b.ids) - 1; i >= 0; i-- {
			if n, ok := g.byID[b.ids[i]]; ok {
				grp.Latest = *n
				break
			}
		}
		out = append(out, grp)
	}
	return out
}

// Close cancels every pending auto-dismiss timer.
func (g *Governor) Close() {
	g.timers.CancelOwner(toastOwner)
}
