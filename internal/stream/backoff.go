package stream

import (
	"math"
	"time"
)

// Backoff returns the delay before reconnect attempt n (n >= 1):
//
//	min(base * 1.5^(n-1), cap)
//
// The curve matches observed production behavior; it is deliberately
// gentler than doubling so short blips recover quickly.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}

	d := float64(base) * math.Pow(1.5, float64(attempt-1))
	if d >= float64(cap) || math.IsInf(d, 1) {
		return cap
	}
	return time.Duration(d)
}
