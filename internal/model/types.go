package model

import "time"

// Priority ranks how urgently a notification should reach the user.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityWarning  Priority = "warning"
	PrioritySuccess  Priority = "success"
	PriorityInfo     Priority = "info"
)

// Priorities returns all known priorities, highest first.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityWarning, PrioritySuccess, PriorityInfo}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityWarning, PrioritySuccess, PriorityInfo:
		return true
	}
	return false
}

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
	ChannelSMS   Channel = "sms"
)

// Channels returns all known delivery channels.
func Channels() []Channel {
	return []Channel{ChannelInApp, ChannelPush, ChannelEmail, ChannelSlack, ChannelSMS}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSlack, ChannelSMS:
		return true
	}
	return false
}

// ExternalChannels returns the channels that deliver outside the session
// (everything except the in-app toast queue).
func ExternalChannels() []Channel {
	return []Channel{ChannelPush, ChannelEmail, ChannelSlack, ChannelSMS}
}

// EntityUpdate is a partial update to a single entity: only the fields
// present in Fields change, everything else is untouched.
type EntityUpdate struct {
	EntityID  string
	Fields    map[string]any
	Timestamp time.Time
}

// Clone returns a copy with its own field map. Field values are shared;
// they are immutable once received.
func (u EntityUpdate) Clone() EntityUpdate {
	fields := make(map[string]any, len(u.Fields))
	for k, v := range u.Fields {
		fields[k] = v
	}
	return EntityUpdate{
		EntityID:  u.EntityID,
		Fields:    fields,
		Timestamp: u.Timestamp,
	}
}

// Snapshot is the canonical full state of one entity.
type Snapshot struct {
	EntityID  string
	Fields    map[string]any
	UpdatedAt time.Time
	Source    string // "stream" or "rest"
}

// Clone returns a copy with its own field map.
func (s Snapshot) Clone() Snapshot {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return s
}
