package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/tradeops/desksync/internal/stream"
)

func TestDispatcher_RegistrationOrder(t *testing.T) {
	d := New(nil, nil)

	var order []string
	d.Subscribe("entity_update", func(env stream.Envelope) {
		order = append(order, "first")
	})
	d.Subscribe("entity_update", func(env stream.Envelope) {
		order = append(order, "second")
	})
	d.Subscribe("notification", func(env stream.Envelope) {
		order = append(order, "other-topic")
	})

	d.Dispatch(stream.Envelope{Type: "entity_update"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v, want [first second]", order)
	}

	s := d.Stats()
	if s.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", s.Delivered)
	}
	if s.ActiveHandlers != 3 {
		t.Errorf("ActiveHandlers = %d, want 3", s.ActiveHandlers)
	}
}

func TestDispatcher_PanicIsolation(t *testing.T) {
	d := New(nil, nil)

	var delivered []string
	d.Subscribe("entity_update", func(env stream.Envelope) {
		delivered = append(delivered, "a")
	})
	d.Subscribe("entity_update", func(env stream.Envelope) {
		panic("handler bug")
	})
	d.Subscribe("entity_update", func(env stream.Envelope) {
		delivered = append(delivered, "c")
	})

	d.Dispatch(stream.Envelope{Type: "entity_update"})

	if len(delivered) != 2 || delivered[0] != "a" || delivered[1] != "c" {
		t.Fatalf("delivered = %v, want [a c]", delivered)
	}

	s := d.Stats()
	if s.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, want 1", s.HandlerPanics)
	}
	if s.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", s.Delivered)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := New(nil, nil)

	var count int
	unsub := d.Subscribe("entity_update", func(env stream.Envelope) {
		count++
	})

	d.Dispatch(stream.Envelope{Type: "entity_update"})
	unsub()
	unsub() // second call is a no-op
	d.Dispatch(stream.Envelope{Type: "entity_update"})

	if count != 1 {
		t.Errorf("handler invocations = %d, want 1", count)
	}
	if s := d.Stats(); s.ActiveHandlers != 0 {
		t.Errorf("ActiveHandlers = %d, want 0", s.ActiveHandlers)
	}
}

func TestDispatcher_UnknownTopicCounted(t *testing.T) {
	d := New(nil, nil)
	d.Subscribe("entity_update", func(env stream.Envelope) {})

	d.Dispatch(stream.Envelope{Type: "mystery"})
	d.Dispatch(stream.Envelope{Type: "mystery"})

	if s := d.Stats(); s.Unhandled != 2 {
		t.Errorf("Unhandled = %d, want 2", s.Unhandled)
	}
}

func TestDispatcher_ConsumesInput(t *testing.T) {
	input := make(chan stream.Envelope, 4)
	d := New(input, nil)

	got := make(chan stream.Envelope, 4)
	d.Subscribe("notification", func(env stream.Envelope) {
		got <- env
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	input <- stream.Envelope{Type: "notification", CorrelationID: "c-9"}

	select {
	case env := <-got:
		if env.CorrelationID != "c-9" {
			t.Errorf("CorrelationID = %q, want c-9", env.CorrelationID)
		}
	case <-time.After(time.Second):
		t.Fatal("envelope never delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)
}
