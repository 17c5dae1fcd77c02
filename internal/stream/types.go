package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no inbound activity)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrRetriesExceeded = errors.New("reconnect attempts exhausted")
)

// Inbound wraps raw frame bytes with the local receive timestamp.
type Inbound struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig configures a single transport connection.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g. wss://stream.tradeops.internal/v1/ws)
	APIKey       string        // Bearer token, empty for no auth
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Inbound channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL               string        // WebSocket URL
	APIKey            string        // Bearer token
	HeartbeatInterval time.Duration // Liveness check cadence while connected
	ReconnectBase     time.Duration // Base delay for reconnect backoff
	ReconnectCap      time.Duration // Upper bound on reconnect delay
	MaxAttempts       int           // Failed attempts before giving up
	WriteTimeout      time.Duration // Write deadline for sends
	BufferSize        int           // Transport inbound buffer size
	MessageBufferSize int           // Parsed envelope channel buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HeartbeatInterval: 15 * time.Second,
		ReconnectBase:     1 * time.Second,
		ReconnectCap:      30 * time.Second,
		MaxAttempts:       10,
		WriteTimeout:      5 * time.Second,
		BufferSize:        1000,
		MessageBufferSize: 4096,
	}
}

// State is the connection lifecycle state. A manager is in exactly one
// state at any time; transitions happen only inside the manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transition is a single observable state change.
type Transition struct {
	From    State
	To      State
	Attempt int   // Failed reconnect attempts so far
	Err     error // Error that drove the transition, if any
	At      time.Time
}
