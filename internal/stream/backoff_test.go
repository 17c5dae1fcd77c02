package stream

import (
	"testing"
	"time"
)

func TestBackoff_Curve(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 1500 * time.Millisecond},
		{3, 2250 * time.Millisecond},
		{4, 3375 * time.Millisecond},
		{5, 5062500 * time.Microsecond},
	}

	for _, tt := range tests {
		got := Backoff(tt.attempt, base, cap)
		if got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Cap(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	// 1.5^9 ≈ 38.4, so attempt 10 exceeds the cap.
	if got := Backoff(10, base, cap); got != cap {
		t.Errorf("Backoff(10) = %v, want cap %v", got, cap)
	}
	// Far past the cap the delay must stay pinned, not overflow.
	if got := Backoff(500, base, cap); got != cap {
		t.Errorf("Backoff(500) = %v, want cap %v", got, cap)
	}
}

func TestBackoff_ClampsAttempt(t *testing.T) {
	base := 2 * time.Second
	cap := 30 * time.Second

	if got := Backoff(0, base, cap); got != base {
		t.Errorf("Backoff(0) = %v, want %v", got, base)
	}
	if got := Backoff(-3, base, cap); got != base {
		t.Errorf("Backoff(-3) = %v, want %v", got, base)
	}
}

func TestBackoff_Monotonic(t *testing.T) {
	base := 250 * time.Millisecond
	cap := 10 * time.Second

	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		d := Backoff(n, base, cap)
		if d < prev {
			t.Fatalf("Backoff(%d) = %v < previous %v", n, d, prev)
		}
		if d > cap {
			t.Fatalf("Backoff(%d) = %v exceeds cap %v", n, d, cap)
		}
		prev = d
	}
}
