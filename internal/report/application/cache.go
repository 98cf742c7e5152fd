package application

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DefaultCurrentMonthTTL bounds how stale an in-progress month's
// cached result may be before the next request recomputes it.
const DefaultCurrentMonthTTL = 300 * time.Second

// LookupStatus classifies a cache lookup.
type LookupStatus string

const (
	LookupHit     LookupStatus = "hit"
	LookupMiss    LookupStatus = "miss"
	LookupExpired LookupStatus = "expired"
)

type monthKey struct {
	Year  int
	Month time.Month
}

type cacheEntry struct {
	result   *MonthResult
	noData   bool
	cachedAt time.Time
}

// MonthCache keys monthly computation results by (year, month). A
// closed month's entry with a real payload is permanent for the
// process lifetime; the current month's entry expires after the TTL. A
// "no data" outcome is cached only for closed months, since an
// in-progress month's telemetry may still arrive.
type MonthCache struct {
	mu      sync.RWMutex
	entries map[monthKey]cacheEntry
	ttl     time.Duration
}

// CacheOption configures the cache.
type CacheOption func(*MonthCache)

// WithCurrentMonthTTL overrides the in-progress month TTL.
func WithCurrentMonthTTL(ttl time.Duration) CacheOption {
	return func(c *MonthCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewMonthCache constructs an empty cache.
func NewMonthCache(opts ...CacheOption) *MonthCache {
	cache := &MonthCache{
		entries: make(map[monthKey]cacheEntry),
		ttl:     DefaultCurrentMonthTTL,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Lookup returns the cached result for a month. noData reports a
// cached "nothing available" outcome.
func (c *MonthCache) Lookup(month YearMonth, isCurrent bool, now time.Time) (result *MonthResult, noData bool, status LookupStatus) {
	key := monthKey{Year: month.Year, Month: month.Month}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, LookupMiss
	}
	if isCurrent && now.Sub(entry.cachedAt) >= c.ttl {
		return nil, false, LookupExpired
	}
	return entry.result, entry.noData, LookupHit
}

// Store caches a successful computation.
func (c *MonthCache) Store(month YearMonth, result *MonthResult, now time.Time) {
	if result == nil {
		return
	}
	key := monthKey{Year: month.Year, Month: month.Month}
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, cachedAt: now}
	c.mu.Unlock()
}

// StoreNoData caches an empty outcome for closed months only.
func (c *MonthCache) StoreNoData(month YearMonth, isCurrent bool, now time.Time) {
	if isCurrent {
		return
	}
	key := monthKey{Year: month.Year, Month: month.Month}
	c.mu.Lock()
	c.entries[key] = cacheEntry{noData: true, cachedAt: now}
	c.mu.Unlock()
}

// Clear empties the cache and returns the number of entries removed.
func (c *MonthCache) Clear() int {
	c.mu.Lock()
	count := len(c.entries)
	c.entries = make(map[monthKey]cacheEntry)
	c.mu.Unlock()
	return count
}

// Len returns the number of cached entries.
func (c *MonthCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
