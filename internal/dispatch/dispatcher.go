package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tradeops/desksync/internal/stream"
)

// Handler consumes one envelope for a topic it subscribed to.
type Handler func(stream.Envelope)

// Stats contains runtime dispatch counters.
type Stats struct {
	Delivered      int64
	Unhandled      int64
	HandlerPanics  int64
	ActiveHandlers int
}

// Dispatcher fans parsed stream envelopes out to registered consumers
// by topic (the envelope type). Delivery is synchronous with message
// arrival, in registration order; a failing handler never blocks the
// rest. There is no queuing beyond the in-flight message.
type Dispatcher struct {
	logger *slog.Logger

	input <-chan stream.Envelope

	mu      sync.Mutex
	subs    map[string][]subscription
	nextID  int64
	stats   Stats
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscription struct {
	id int64
	fn Handler
}

// New creates a Dispatcher consuming from input.
func New(input <-chan stream.Envelope, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		input:  input,
		subs:   make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a topic. The returned function
// removes the registration; calling it twice is harmless.
func (d *Dispatcher) Subscribe(topic string, h Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[topic] = append(d.subs[topic], subscription{id: id, fn: h})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		handlers := d.subs[topic]
		for i, s := range handlers {
			if s.id == id {
				d.subs[topic] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
		if len(d.subs[topic]) == 0 {
			delete(d.subs, topic)
		}
	}
}

// Start begins consuming the input channel.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.run()

	d.logger.Info("stream dispatcher started")
	return nil
}

// Stop shuts the dispatcher down.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("stream dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("stream dispatcher stop timed out")
	}
	return nil
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	for _, handlers := range d.subs {
		s.ActiveHandlers += len(handlers)
	}
	return s
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case env, ok := <-d.input:
			if !ok {
				d.logger.Info("input channel closed")
				return
			}
			d.Dispatch(env)
		}
	}
}

// Dispatch delivers one envelope to all handlers currently registered
// for its type. Unknown types are counted and ignored, never errors.
func (d *Dispatcher) Dispatch(env stream.Envelope) {
	d.mu.Lock()
	registered := d.subs[env.Type]
	handlers := make([]subscription, len(registered))
	copy(handlers, registered)
	if len(handlers) == 0 {
		d.stats.Unhandled++
	}
	d.mu.Unlock()

	for _, s := range handlers {
		d.deliver(env, s)
	}
}

// deliver invokes a single handler, isolating panics so one failing
// consumer cannot block delivery to the rest.
func (d *Dispatcher) deliver(env stream.Envelope, s subscription) {
	defer func() {
		if r := recover(); r != nil {
			d.mu.Lock()
			d.stats.HandlerPanics++
			d.mu.Unlock()
			d.logger.Error("handler panicked",
				"topic", env.Type,
				"panic", r,
			)
		}
	}()

	s.fn(env)

	d.mu.Lock()
	d.stats.Delivered++
	d.mu.Unlock()
}
