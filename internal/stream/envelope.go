package stream

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TypeHeartbeat is the reserved envelope type for liveness probes.
// Heartbeat frames never reach downstream consumers.
const TypeHeartbeat = "ping"

// ErrEmptyType marks a frame whose envelope carries no type tag.
var ErrEmptyType = errors.New("envelope missing type")

// Envelope is the transport message frame. Payload stays opaque here;
// consumers decode Data for the types they understand.
type Envelope struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
}

// ParseEnvelope decodes a raw frame into an Envelope. Frames without a
// type tag are rejected; the caller logs and drops them.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrEmptyType
	}
	return env, nil
}

// HeartbeatEnvelope builds a liveness probe frame.
func HeartbeatEnvelope() Envelope {
	return Envelope{
		Type:          TypeHeartbeat,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}
