package notifylog

import (
	"testing"
	"time"

	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/notify"
)

func TestTransform(t *testing.T) {
	at := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	n := notify.Notification{
		ID:        "11111111-2222-3333-4444-555555555555",
		Event:     "order_filled",
		Priority:  model.PrioritySuccess,
		Title:     "Order filled",
		Message:   "AAPL 100 @ 231.40",
		GroupKey:  "order_filled:AAPL",
		Timestamp: at,
	}

	r := transform(n)

	if r.ID != n.ID {
		t.Errorf("ID = %q", r.ID)
	}
	if r.Event != "order_filled" {
		t.Errorf("Event = %q", r.Event)
	}
	if r.Priority != "success" {
		t.Errorf("Priority = %q, want success", r.Priority)
	}
	if r.GroupKey != "order_filled:AAPL" {
		t.Errorf("GroupKey = %q", r.GroupKey)
	}
	if !r.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v", r.CreatedAt)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.FlushInterval != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want %v", cfg.FlushInterval, DefaultFlushInterval)
	}
}
