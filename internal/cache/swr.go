package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// SWR is a TTL-based in-memory cache with stale-while-revalidate reads.
// Uses sync.Map for lock-free reads on the hot path.
//
// When an entry expires, Get() still returns the stale value immediately and
// signals that a background refresh is needed, so no caller blocks on the
// slow source after the first cold start.
type SWR[V any] struct {
	store sync.Map // map[string]*entry[V]
	ttl   time.Duration
}

type entry[V any] struct {
	value      V
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// NewSWR creates a cache with the given TTL.
func NewSWR[V any](ttl time.Duration) *SWR[V] {
	return &SWR[V]{ttl: ttl}
}

// Result holds the result of a cache lookup.
type Result[V any] struct {
	Value        V
	Hit          bool // true if a value was found (fresh or stale)
	NeedsRefresh bool // true if the entry is expired and should be refreshed in the background
}

// Get looks up key in the cache.
//
// Returns:
//   - Fresh hit:  {Value, Hit=true,  NeedsRefresh=false}
//   - Stale hit:  {Value, Hit=true,  NeedsRefresh=true}  (serve stale, refresh in background)
//   - Miss:       {zero,  Hit=false, NeedsRefresh=false}
//
// The refreshing flag is set atomically so only one caller refreshes per key.
func (c *SWR[V]) Get(key string) Result[V] {
	val, ok := c.store.Load(key)
	if !ok {
		return Result[V]{}
	}

	e := val.(*entry[V])

	if time.Now().Before(e.expiresAt) {
		return Result[V]{Value: e.value, Hit: true}
	}

	needsRefresh := e.refreshing.CompareAndSwap(false, true)
	return Result[V]{
		Value:        e.value,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a value in the cache with the configured TTL.
func (c *SWR[V]) Set(key string, value V) {
	c.store.Store(key, &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *SWR[V]) Delete(key string) {
	c.store.Delete(key)
}
