package notify

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultGroupCacheSize bounds the number of live group buckets.
const defaultGroupCacheSize = 1024

// groupBucket accumulates the members of one group key. Buckets live
// in an expiring cache whose TTL is the grouping window, so a bucket
// that goes quiet for a full window simply ages out and the next
// notification with the same key starts a fresh group.
type groupBucket struct {
	ids     []string
	firstAt time.Time
	lastAt  time.Time
}

func newGroupCache(size int, window time.Duration) *expirable.LRU[string, *groupBucket] {
	if size <= 0 {
		size = defaultGroupCacheSize
	}
	return expirable.NewLRU[string, *groupBucket](size, nil, window)
}
