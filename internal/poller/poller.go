package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeops/desksync/internal/api"
	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/stream"
)

// SnapshotSource fetches the full entity snapshot.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) (map[string]model.Snapshot, error)
}

// Sink receives full snapshot refreshes. Each refresh replaces the
// downstream view entirely; there are no delta semantics on this path.
type Sink interface {
	Replace(snaps map[string]model.Snapshot)
}

// Connection is the poller's view of the Connection Manager.
type Connection interface {
	State() stream.State
	Subscribe(fn func(stream.Transition)) func()
}

// APISource adapts the REST client to SnapshotSource.
func APISource(c *api.Client) SnapshotSource {
	return apiSource{c: c}
}

type apiSource struct{ c *api.Client }

func (s apiSource) GetSnapshot(ctx context.Context) (map[string]model.Snapshot, error) {
	resp, err := s.c.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return resp.ToSnapshots(), nil
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 15s)
	GracePeriod time.Duration // How long the push path gets to connect before polling starts (default: 5s)
	Timeout     time.Duration // Per-fetch timeout (default: 10s)
	Forced      bool          // Poll-only mode: ignore the push path entirely
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		GracePeriod: 5 * time.Second,
		Timeout:     10 * time.Second,
	}
}

// Poller substitutes periodic REST snapshot fetches for the push path
// while the connection is down. A single supervisor goroutine watches
// connection transitions, so polling and push are never active for the
// sink at the same time: when the connection comes up, polling stops
// and one final refresh closes the gap between the last poll and the
// first streamed update.
type Poller struct {
	cfg    Config
	source SnapshotSource
	sink   Sink
	conn   Connection
	logger *slog.Logger

	transitions chan stream.Transition
	unsub       func()

	mu       sync.Mutex
	polling  bool
	pollStop chan struct{}
	fetches  int64
	failures int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats contains poller counters.
type Stats struct {
	Polling  bool
	Fetches  int64
	Failures int64
}

// New creates a Poller.
func New(cfg Config, source SnapshotSource, sink Sink, conn Connection, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Poller{
		cfg:         cfg,
		source:      source,
		sink:        sink,
		conn:        conn,
		logger:      logger,
		transitions: make(chan stream.Transition, 16),
	}
}

// Start begins supervising the push/poll handover.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if p.conn != nil {
		p.unsub = p.conn.Subscribe(func(tr stream.Transition) {
			select {
			case p.transitions <- tr:
			default:
				p.logger.Warn("transition buffer full, dropping")
			}
		})
	}

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started",
		"interval", p.cfg.Interval,
		"grace", p.cfg.GracePeriod,
		"forced", p.cfg.Forced,
	)
	return nil
}

// Stop shuts the poller down.
func (p *Poller) Stop(ctx context.Context) error {
	if p.unsub != nil {
		p.unsub()
	}
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Polling:  p.polling,
		Fetches:  p.fetches,
		Failures: p.failures,
	}
}

// run is the supervisor loop. All start/stop decisions happen here, on
// one goroutine, which is what guarantees exclusive switching.
func (p *Poller) run() {
	defer p.wg.Done()

	if p.cfg.Forced {
		p.startPolling()
		<-p.ctx.Done()
		return
	}

	grace := time.NewTimer(p.cfg.GracePeriod)
	defer grace.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case <-grace.C:
			if p.conn == nil || p.conn.State() != stream.StateConnected {
				p.startPolling()
			}

		case tr := <-p.transitions:
			switch tr.To {
			case stream.StateConnected:
				if p.stopPolling() {
					// Close the gap between the last poll and the
					// first streamed update.
					p.fetchAndReplace()
				}

			case stream.StateReconnecting, stream.StateDisconnected, stream.StateError:
				if !p.isPolling() {
					if !grace.Stop() {
						select {
						case <-grace.C:
						default:
						}
					}
					grace.Reset(p.cfg.GracePeriod)
				}
			}
		}
	}
}

func (p *Poller) isPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

func (p *Poller) startPolling() {
	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = true
	stop := make(chan struct{})
	p.pollStop = stop
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info("switching to poll mode")
	go p.pollLoop(stop)
}

// stopPolling reports whether polling was active.
func (p *Poller) stopPolling() bool {
	p.mu.Lock()
	if !p.polling {
		p.mu.Unlock()
		return false
	}
	p.polling = false
	close(p.pollStop)
	p.pollStop = nil
	p.mu.Unlock()

	p.logger.Info("switching to push mode")
	return true
}

func (p *Poller) pollLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	// Poll immediately on activation.
	p.fetchAndReplace()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			p.fetchAndReplace()
		}
	}
}

// fetchAndReplace fetches one full snapshot and replaces the sink view.
func (p *Poller) fetchAndReplace() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	snaps, err := p.source.GetSnapshot(ctx)
	if err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
		p.logger.Warn("snapshot fetch failed", "error", err)
		return
	}

	p.sink.Replace(snaps)

	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()

	p.logger.Debug("snapshot refreshed",
		"entities", len(snaps),
		"duration", time.Since(start),
	)
}
