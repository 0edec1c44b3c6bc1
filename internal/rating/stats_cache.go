package rating

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/metrics"
)

// StatsCache caches computed rating aggregates per (movie, scope) key with a
// TTL. Every rating mutation invalidates its key before the mutation is
// acknowledged; readers that fell through to the store repopulate with Put.
//
// To keep an invalidation from being overwritten by a concurrently computed
// pre-mutation snapshot, each key carries a generation assigned from a
// cache-global monotonic counter. Readers snapshot the generation before
// recomputing; Put rejects the result when the generation has moved since.
type StatsCache struct {
	mu      sync.Mutex
	entries map[domain.StatsKey]*cacheEntry
	gens    map[domain.StatsKey]genMark
	seq     uint64
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	stats     domain.RatingStats
	expiresAt time.Time
}

type genMark struct {
	gen      uint64
	bumpedAt time.Time
}

// NewStatsCache creates a cache whose entries expire after ttl.
func NewStatsCache(ttl time.Duration, clock clockwork.Clock) *StatsCache {
	return &StatsCache{
		entries: make(map[domain.StatsKey]*cacheEntry),
		gens:    make(map[domain.StatsKey]genMark),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached aggregate for key, or a miss when absent or expired.
// Expired entries are left for the sweep; an expired read is simply a miss.
func (c *StatsCache) Get(key domain.StatsKey) (*domain.RatingStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().After(entry.expiresAt) {
		metrics.StatsCacheMisses.Inc()
		return nil, false
	}

	metrics.StatsCacheHits.Inc()
	stats := entry.stats
	return &stats, true
}

// Generation returns the key's current invalidation generation. Callers must
// snapshot it before recomputing the aggregate from the store and pass it back
// to Put.
func (c *StatsCache) Generation(key domain.StatsKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key].gen
}

// Put stores a freshly computed aggregate. It returns false — and stores
// nothing — when the key was invalidated after gen was snapshotted, so the
// cache can never be repopulated with pre-mutation data.
func (c *StatsCache) Put(key domain.StatsKey, stats domain.RatingStats, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key].gen != gen {
		metrics.StatsCacheStalePuts.Inc()
		return false
	}

	c.entries[key] = &cacheEntry{
		stats:     stats,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	return true
}

// Invalidate removes the key unconditionally and bumps its generation, so any
// in-flight recompute started before this point cannot repopulate the cache.
func (c *StatsCache) Invalidate(key domain.StatsKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.seq++
	c.gens[key] = genMark{gen: c.seq, bumpedAt: c.clock.Now()}
}

// Size returns the current number of entries (including expired).
func (c *StatsCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictExpired removes expired entries and stale generation marks, returning
// the number of entries evicted. A generation mark is only dropped once it is
// older than the TTL and has no live entry; generations are globally
// monotonic, so a dropped mark can never be confused with an in-flight one.
func (c *StatsCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}

	for key, mark := range c.gens {
		if _, live := c.entries[key]; !live && now.Sub(mark.bumpedAt) > c.ttl {
			delete(c.gens, key)
		}
	}

	return evicted
}

// StartEvictionTimer starts a background goroutine that periodically evicts
// expired entries. Returns a stop function.
func (c *StatsCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				evicted := c.EvictExpired()
				if evicted > 0 {
					slog.Debug("Evicted expired aggregate cache entries",
						"count", evicted,
						"remaining", c.Size(),
					)
					metrics.StatsCacheEvictions.Add(float64(evicted))
				}
				metrics.StatsCacheSize.Set(float64(c.Size()))

			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
