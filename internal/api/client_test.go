package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func snapshotBody(n int) string {
	body := `{"as_of":"2026-08-27T12:00:00Z","entities":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"entity_id":"pos-%d","fields":{"price":%d.5},"updated_at":"2026-08-27T11:59:00Z"}`, i, i)
	}
	return body + `]}`
}

func TestClient_GetSnapshot(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/entities/snapshot" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, snapshotBody(2))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", WithRetries(0, time.Millisecond))

	resp, err := c.GetSnapshot(context.Background())
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(resp.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(resp.Entities))
	}
	if auth := gotAuth.Load(); auth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", auth)
	}

	snaps := resp.ToSnapshots()
	if snaps["pos-1"].Fields["price"] != 1.5 {
		t.Errorf("pos-1 price = %v, want 1.5", snaps["pos-1"].Fields["price"])
	}
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, snapshotBody(1))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRetries(3, time.Millisecond))

	if _, err := c.GetSnapshot(context.Background()); err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRetries(0, time.Millisecond))

	if _, err := c.GetSnapshot(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRetries(0, time.Millisecond))

	// Five consecutive failed executions trip the breaker.
	for i := 0; i < 5; i++ {
		if _, err := c.GetSnapshot(context.Background()); err == nil {
			t.Fatalf("call %d unexpectedly succeeded", i+1)
		}
	}

	_, err := c.GetSnapshot(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want ErrOpenState", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRetries(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetSnapshot(ctx)
	if err == nil {
		t.Fatal("expected error after cancel")
	}
}

func TestToSnapshots_Defaults(t *testing.T) {
	asOf := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	resp := SnapshotResponse{
		AsOf: asOf,
		Entities: []WireEntity{
			{EntityID: "pos-1"},
		},
	}

	snaps := resp.ToSnapshots()
	s := snaps["pos-1"]
	if s.Fields == nil {
		t.Error("nil fields not defaulted to empty map")
	}
	if !s.UpdatedAt.Equal(asOf) {
		t.Errorf("UpdatedAt = %v, want as_of %v", s.UpdatedAt, asOf)
	}
}
