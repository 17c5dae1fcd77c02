package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeops/desksync/internal/sched"
)

// timerOwner keys every manager timer in the scheduler, so teardown is
// a single CancelOwner call. At most one timer is live at a time:
// heartbeat while connected, reconnect while reconnecting.
const timerOwner = "connmgr"

// Manager owns one transport connection and drives the lifecycle state
// machine:
//
//	disconnected --Connect--> connecting
//	connecting   --open-----> connected     (attempt reset, heartbeat on)
//	connecting   --fail-----> reconnecting  (attempts remain) | error
//	connected    --close/stale--> reconnecting
//	reconnecting --timer----> connecting
//	any          --Disconnect--> disconnected
//
// Every transition is observable via Subscribe.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	timers *sched.Scheduler

	// dial is replaced in tests to inject a fake transport.
	dial func(ctx context.Context) (Client, error)

	out chan Envelope

	mu           sync.Mutex
	state        State
	attempt      int // failed attempts in the current reconnect cycle
	gen          int64
	client       Client
	connStop     chan struct{}
	hb           heartbeatMonitor
	lastMsg      *Envelope
	lastErr      error
	failureFired bool

	subsMu  sync.Mutex
	subs    map[int64]func(Transition)
	nextSub int64

	onFailure func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Connection Manager. Timers are owned by the
// given scheduler; the manager cancels its own on every teardown.
func NewManager(cfg ManagerConfig, timers *sched.Scheduler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		timers: timers,
		out:    make(chan Envelope, cfg.MessageBufferSize),
		subs:   make(map[int64]func(Transition)),
	}
	m.dial = m.defaultDial
	return m
}

// OnFailure registers a callback invoked exactly once when reconnect
// attempts are exhausted. The caller decides whether to Connect again.
func (m *Manager) OnFailure(fn func(error)) {
	m.mu.Lock()
	m.onFailure = fn
	m.mu.Unlock()
}

// Start initializes the manager and begins connecting.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.Connect()
	return nil
}

// Stop disconnects and shuts the manager down for good.
func (m *Manager) Stop(ctx context.Context) error {
	m.Disconnect()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
	}

	close(m.out)
	return nil
}

// Connect begins establishing the connection. It is idempotent while
// already connecting, connected, or reconnecting.
func (m *Manager) Connect() {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected, StateReconnecting:
		m.mu.Unlock()
		return
	}

	m.attempt = 0
	m.failureFired = false
	from := m.state
	m.state = StateConnecting
	gen := m.gen
	m.wg.Add(1)
	m.mu.Unlock()

	m.notify(Transition{From: from, To: StateConnecting, At: time.Now()})
	go m.dialAttempt(gen)
}

// Disconnect tears the connection down and suppresses auto-reconnect.
// Safe to call from any state, idempotent, and the single authoritative
// cancellation point: every pending timer is cancelled here.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}

	m.gen++
	m.teardownLocked()
	from := m.state
	m.state = StateDisconnected
	m.attempt = 0
	m.mu.Unlock()

	m.notify(Transition{From: from, To: StateDisconnected, At: time.Now()})
}

// Send marshals and writes an envelope. When not connected it drops the
// message with a warning.
func (m *Manager) Send(env Envelope) error {
	m.mu.Lock()
	cli := m.client
	connected := m.state == StateConnected && cli != nil
	m.mu.Unlock()

	if !connected {
		m.logger.Warn("send while not connected, dropping", "type", env.Type)
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return cli.Send(data)
}

// Messages returns the channel of parsed inbound envelopes.
func (m *Manager) Messages() <-chan Envelope {
	return m.out
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent transport error.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// LastMessage returns a copy of the most recent inbound envelope.
func (m *Manager) LastMessage() (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastMsg == nil {
		return Envelope{}, false
	}
	return *m.lastMsg, true
}

// Subscribe registers an observer for state transitions. The returned
// function unsubscribes.
func (m *Manager) Subscribe(fn func(Transition)) func() {
	m.subsMu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

// defaultDial opens a real websocket transport.
func (m *Manager) defaultDial(ctx context.Context) (Client, error) {
	cli := NewClient(ClientConfig{
		URL:          m.cfg.URL,
		APIKey:       m.cfg.APIKey,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)

	if err := cli.Connect(ctx); err != nil {
		return nil, err
	}
	return cli, nil
}

// dialAttempt runs one connect attempt for generation gen.
func (m *Manager) dialAttempt(gen int64) {
	defer m.wg.Done()

	cli, err := m.dial(m.ctx)

	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		if err == nil {
			cli.Close()
		}
		return
	}

	if err != nil {
		tr := m.connectFailedLocked(err)
		cb := m.takeFailureCallbackLocked(tr.To)
		m.mu.Unlock()

		m.notify(tr)
		if cb != nil {
			cb(err)
		}
		return
	}

	m.client = cli
	m.connStop = make(chan struct{})
	stop := m.connStop
	m.attempt = 0
	m.hb.reset(time.Now())
	from := m.state
	m.state = StateConnected
	m.scheduleHeartbeatLocked(gen)
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("connected", "url", m.cfg.URL)
	m.notify(Transition{From: from, To: StateConnected, At: time.Now()})

	go m.readLoop(gen, cli, stop)
}

// connectFailedLocked records a failed attempt and decides between
// another reconnect round and the terminal error state.
func (m *Manager) connectFailedLocked(err error) Transition {
	m.lastErr = err
	m.attempt++
	from := m.state

	if m.attempt >= m.cfg.MaxAttempts {
		m.teardownLocked()
		m.state = StateError
		m.logger.Error("reconnect attempts exhausted",
			"attempts", m.attempt,
			"error", err,
		)
		return Transition{From: from, To: StateError, Attempt: m.attempt, Err: err, At: time.Now()}
	}

	next := m.attempt + 1
	delay := Backoff(next, m.cfg.ReconnectBase, m.cfg.ReconnectCap)
	m.state = StateReconnecting
	gen := m.gen
	m.timers.Schedule(timerOwner, delay, func() { m.retryFire(gen) })

	m.logger.Warn("connect failed, retrying",
		"attempt", m.attempt,
		"next_delay", delay,
		"error", err,
	)
	return Transition{From: from, To: StateReconnecting, Attempt: m.attempt, Err: err, At: time.Now()}
}

// takeFailureCallbackLocked returns the one-time failure callback if
// this transition entered the terminal error state.
func (m *Manager) takeFailureCallbackLocked(to State) func(error) {
	if to != StateError || m.failureFired {
		return nil
	}
	m.failureFired = true
	return m.onFailure
}

// retryFire moves reconnecting -> connecting when the backoff timer
// fires.
func (m *Manager) retryFire(gen int64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = StateConnecting
	m.wg.Add(1)
	m.mu.Unlock()

	m.notify(Transition{From: from, To: StateConnecting, Attempt: m.attempt, At: time.Now()})
	go m.dialAttempt(gen)
}

// transportDown handles a close, read error, or stale heartbeat on the
// live connection.
func (m *Manager) transportDown(gen int64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	m.gen++
	newGen := m.gen
	m.teardownLocked()
	m.lastErr = err
	from := m.state
	m.state = StateReconnecting

	next := m.attempt + 1
	delay := Backoff(next, m.cfg.ReconnectBase, m.cfg.ReconnectCap)
	m.timers.Schedule(timerOwner, delay, func() { m.retryFire(newGen) })
	m.mu.Unlock()

	m.logger.Warn("connection lost, reconnecting",
		"delay", delay,
		"error", err,
	)
	m.notify(Transition{From: from, To: StateReconnecting, Attempt: m.attempt, Err: err, At: time.Now()})
}

// teardownLocked closes the live connection and cancels every timer
// this manager owns.
func (m *Manager) teardownLocked() {
	m.timers.CancelOwner(timerOwner)
	if m.connStop != nil {
		close(m.connStop)
		m.connStop = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
}

// scheduleHeartbeatLocked arms the next liveness check.
func (m *Manager) scheduleHeartbeatLocked(gen int64) {
	m.timers.Schedule(timerOwner, m.cfg.HeartbeatInterval, func() { m.heartbeatTick(gen) })
}

// heartbeatTick runs one liveness check: quiet interval sends a probe,
// two quiet intervals force a reconnect.
func (m *Manager) heartbeatTick(gen int64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected || m.client == nil {
		m.mu.Unlock()
		return
	}

	cli := m.client
	action := m.hb.check(cli.LastActivity())
	if action != heartbeatStale {
		m.scheduleHeartbeatLocked(gen)
	}
	m.mu.Unlock()

	switch action {
	case heartbeatProbe:
		data, err := json.Marshal(HeartbeatEnvelope())
		if err == nil {
			err = cli.Send(data)
		}
		if err != nil {
			m.logger.Debug("failed to send heartbeat probe", "error", err)
		}
	case heartbeatStale:
		m.logger.Warn("no inbound activity for two heartbeat intervals")
		m.transportDown(gen, ErrStaleConnection)
	}
}

// readLoop forwards parsed envelopes downstream until the connection
// dies or is torn down.
func (m *Manager) readLoop(gen int64, cli Client, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-stop:
			return

		case err := <-cli.Errors():
			m.transportDown(gen, err)
			return

		case raw, ok := <-cli.Messages():
			if !ok {
				return
			}

			env, err := ParseEnvelope(raw.Data)
			if err != nil {
				// Malformed frames never close the connection.
				m.logger.Warn("malformed frame dropped", "error", err)
				continue
			}
			if env.Type == TypeHeartbeat {
				continue
			}

			m.mu.Lock()
			m.lastMsg = &env
			m.mu.Unlock()

			select {
			case m.out <- env:
			case <-m.ctx.Done():
				return
			default:
				m.logger.Warn("message buffer full, dropping", "type", env.Type)
			}
		}
	}
}

// notify delivers a transition to all subscribers.
func (m *Manager) notify(tr Transition) {
	m.subsMu.Lock()
	fns := make([]func(Transition), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(tr)
	}
}
