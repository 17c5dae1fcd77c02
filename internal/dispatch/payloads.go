package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/notify"
	"github.com/tradeops/desksync/internal/stream"
)

// Well-known stream topics.
const (
	TopicEntityUpdate = "entity_update"
	TopicNotification = "notification"
)

type entityUpdateWire struct {
	EntityID  string         `json:"entity_id"`
	Fields    map[string]any `json:"fields"`
	Timestamp time.Time      `json:"timestamp"`
}

// ParseEntityUpdate decodes an entity_update envelope payload.
func ParseEntityUpdate(env stream.Envelope) (model.EntityUpdate, error) {
	var w entityUpdateWire
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return model.EntityUpdate{}, fmt.Errorf("parse entity update: %w", err)
	}
	if w.EntityID == "" {
		return model.EntityUpdate{}, fmt.Errorf("parse entity update: missing entity_id")
	}
	if w.Timestamp.IsZero() {
		w.Timestamp = env.Timestamp
	}
	if w.Fields == nil {
		w.Fields = map[string]any{}
	}
	return model.EntityUpdate{
		EntityID:  w.EntityID,
		Fields:    w.Fields,
		Timestamp: w.Timestamp,
	}, nil
}

type notificationWire struct {
	Event    string `json:"event"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	GroupKey string `json:"group_key"`
}

// ParseNotification decodes a notification envelope payload. An unknown
// priority falls back to info at publish time.
func ParseNotification(env stream.Envelope) (notify.Notification, error) {
	var w notificationWire
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return notify.Notification{}, fmt.Errorf("parse notification: %w", err)
	}
	if w.Event == "" {
		return notify.Notification{}, fmt.Errorf("parse notification: missing event")
	}
	return notify.Notification{
		Event:     w.Event,
		Priority:  model.Priority(w.Priority),
		Title:     w.Title,
		Message:   w.Message,
		GroupKey:  w.GroupKey,
		Timestamp: env.Timestamp,
	}, nil
}
