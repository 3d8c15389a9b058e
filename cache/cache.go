/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type entry[K comparable, V any] struct {
	key            K
	value          V
	expiresAt      time.Time
	lastAccessedAt time.Time
	sizeBytes      uint64
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

// LRU represents an in-memory cache with a strict LRU eviction mechanism, per-entry TTL,
// byte-size accounting, single-flight fetching, and Prometheus metrics.
//
// An entry counts as "used" when it's read (Get) or written (Set*);
// when a new key is inserted at capacity, the least recently used entry is evicted.
// Expired entries are removed lazily on access and by the periodic cleanup (see RunPeriodicCleanup).
type LRU[K comparable, V any] struct {
	maxEntries        int
	defaultTTL        time.Duration
	sizeEstimator     SizeEstimator[V]
	fallbackEntrySize uint64

	mu             sync.RWMutex
	lruList        *list.List
	entries        map[K]*list.Element // map of cache entries, value is a lruList element
	totalSizeBytes uint64

	hits            atomic.Int64
	misses          atomic.Int64
	evictions       atomic.Int64
	expiredCleaned  atomic.Int64
	accessTimeTotal atomic.Int64 // nanoseconds, accumulated by Get

	inFlight singleFlightGroup[K, V]

	metricsCollector MetricsCollector

	cleanupCancel context.CancelFunc
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

// Opts represents options for the cache.
type Opts[V any] struct {
	// DefaultTTL is the TTL applied to entries added without an explicit TTL.
	// If zero, DefaultEntryTTL is used.
	DefaultTTL time.Duration

	// CleanupInterval is the interval of the owned periodic cleanup of expired entries.
	// If positive, the constructor starts a background goroutine that is stopped
	// by StopCleanup or Close. If zero, no background cleanup is started
	// (RunPeriodicCleanup may still be used directly).
	CleanupInterval time.Duration

	// SizeEstimator estimates the byte size of stored values. JSONSizeEstimator is used by default.
	SizeEstimator SizeEstimator[V]

	// FallbackEntrySize is used when SizeEstimator fails. If zero, DefaultFallbackEntrySize is used.
	FallbackEntrySize uint64
}

// New creates a new LRU cache with the provided maximum number of entries and metrics collector.
// Metrics collector may be nil, in this case, metrics will be disabled.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRU[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Opts[V]{})
}

// NewWithOpts creates a new LRU cache with the provided maximum number of entries, metrics collector, and options.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Opts[V]) (*LRU[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0")
	}
	if opts.CleanupInterval < 0 {
		return nil, fmt.Errorf("cleanupInterval must be greater or equal to 0")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = DefaultEntryTTL
	}
	if opts.SizeEstimator == nil {
		opts.SizeEstimator = JSONSizeEstimator[V]
	}
	if opts.FallbackEntrySize == 0 {
		opts.FallbackEntrySize = DefaultFallbackEntrySize
	}

	c := &LRU[K, V]{
		maxEntries:        maxEntries,
		defaultTTL:        opts.DefaultTTL,
		sizeEstimator:     opts.SizeEstimator,
		fallbackEntrySize: opts.FallbackEntrySize,
		lruList:           list.New(),
		entries:           make(map[K]*list.Element),
		metricsCollector:  metricsCollector,
	}

	if opts.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cleanupCancel = cancel
		c.cleanupDone = make(chan struct{})
		go func() {
			defer close(c.cleanupDone)
			c.RunPeriodicCleanup(ctx, opts.CleanupInterval)
		}()
	}

	return c, nil
}

// NewFromConfig creates a new LRU cache from the passed configuration.
func NewFromConfig[K comparable, V any](cfg *Config, metricsCollector MetricsCollector) (*LRU[K, V], error) {
	return NewWithOpts[K, V](cfg.MaxEntries, metricsCollector, Opts[V]{
		DefaultTTL:        time.Duration(cfg.DefaultTTL),
		CleanupInterval:   time.Duration(cfg.CleanupInterval),
		FallbackEntrySize: uint64(cfg.FallbackEntrySize),
	})
}

// Get returns a value from the cache by the provided key.
// An expired entry is removed and reported as a miss.
func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	start := time.Now()
	c.mu.Lock()
	value, ok = c.get(key)
	c.mu.Unlock()
	c.accessTimeTotal.Add(time.Since(start).Nanoseconds())
	return value, ok
}

// Set adds a value to the cache with the provided key using the default TTL.
func (c *LRU[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL adds a value to the cache with the provided key and TTL.
// The entry size is estimated with the configured SizeEstimator.
// If the key is new and the cache is full, the least recently used entry is evicted first.
func (c *LRU[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.SetWithSize(key, value, ttl, c.estimateSize(value))
}

// SetWithSize adds a value to the cache with the provided key, TTL, and an explicit size in bytes.
func (c *LRU[K, V]) SetWithSize(key K, value V, ttl time.Duration, sizeBytes uint64) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	newEntry := &entry[K, V]{key: key, value: value, expiresAt: now.Add(ttl), lastAccessedAt: now, sizeBytes: sizeBytes}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		oldEntry := elem.Value.(*entry[K, V])
		c.totalSizeBytes -= oldEntry.sizeBytes
		c.totalSizeBytes += sizeBytes
		elem.Value = newEntry
		c.lruList.MoveToFront(elem)
		c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
		return
	}

	// Updating an existing key never evicts; only a new key at capacity does.
	if c.lruList.Len() >= c.maxEntries {
		if evictedEntry := c.removeOldest(); evictedEntry != nil {
			c.evictions.Inc()
			c.metricsCollector.AddEvictions(1)
		}
	}
	c.entries[key] = c.lruList.PushFront(newEntry)
	c.totalSizeBytes += sizeBytes
	c.metricsCollector.SetAmount(len(c.entries))
	c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
}

// GetOrFetch returns a value from the cache by the provided key,
// fetching and storing it with the default TTL on a miss.
// See GetOrFetchWithTTL for the single-flight guarantees.
func (c *LRU[K, V]) GetOrFetch(key K, fetch func() (V, error)) (V, error) {
	return c.GetOrFetchWithTTL(key, fetch, c.defaultTTL)
}

// GetOrFetchWithTTL returns a value from the cache by the provided key,
// fetching and storing it with the provided TTL on a miss.
//
// At most one fetch per key is in flight at a time: concurrent callers for the same key
// wait for the ongoing fetch and receive the identical outcome (value or error).
// A failed fetch is not cached, so the next call retries it.
func (c *LRU[K, V]) GetOrFetchWithTTL(key K, fetch func() (V, error), ttl time.Duration) (V, error) {
	return c.inFlight.Do(key, func() (V, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := fetch()
		if err != nil {
			var zero V
			return zero, err
		}
		c.SetWithTTL(key, value, ttl)
		return value, nil
	})
}

// Remove removes a value from the cache by the provided key.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.metricsCollector.SetAmount(len(c.entries))
	c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
	return true
}

// Has reports whether the cache contains a non-expired entry for the provided key.
// An expired entry is removed. Unlike Get, Has doesn't touch the entry's recency
// and doesn't count as a hit or a miss.
func (c *LRU[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	ent := elem.Value.(*entry[K, V])
	if ent.expired(time.Now()) {
		c.removeElement(elem)
		c.expiredCleaned.Inc()
		c.metricsCollector.AddExpiredEntries(1)
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
		return false
	}
	return true
}

// Keys returns a snapshot of the keys of all currently stored entries in no particular order.
// Expired but not yet cleaned entries are included.
func (c *LRU[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of items in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge clears the cache: all entries are dropped, in-flight fetches are forgotten,
// and statistics counters are reset. Removed entries are not counted as evictions.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[K]*list.Element)
	c.lruList.Init()
	c.totalSizeBytes = 0
	c.mu.Unlock()

	c.inFlight.ForgetAll()

	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expiredCleaned.Store(0)
	c.accessTimeTotal.Store(0)

	c.metricsCollector.SetAmount(0)
	c.metricsCollector.SetSizeBytes(0)
}

// Stats returns a snapshot of the cache usage statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.RLock()
	entriesCount := len(c.entries)
	totalSizeBytes := c.totalSizeBytes
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var avgResponseTime time.Duration
	if total := hits + misses; total > 0 {
		avgResponseTime = time.Duration(c.accessTimeTotal.Load() / total)
	}
	return Stats{
		Hits:                  hits,
		Misses:                misses,
		EntriesCount:          entriesCount,
		TotalSizeBytes:        totalSizeBytes,
		AvgResponseTime:       avgResponseTime,
		Evictions:             c.evictions.Load(),
		ExpiredEntriesCleaned: c.expiredCleaned.Load(),
	}
}

// RunPeriodicCleanup runs a cycle of periodic cleanup of expired entries.
// It's supposed to be run in a separate goroutine and blocks until ctx is done.
// NewWithOpts starts it automatically when Opts.CleanupInterval is positive.
func (c *LRU[K, V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupExpired()
		}
	}
}

// StopCleanup stops the background cleanup goroutine started by the constructor, if any,
// and waits for it to finish. It's safe to call multiple times.
func (c *LRU[K, V]) StopCleanup() {
	c.stopOnce.Do(func() {
		if c.cleanupCancel == nil {
			return
		}
		c.cleanupCancel()
		<-c.cleanupDone
	})
}

// Close stops the background cleanup and purges the cache.
// The cache must not be used after Close.
func (c *LRU[K, V]) Close() {
	c.StopCleanup()
	c.Purge()
}

func (c *LRU[K, V]) cleanupExpired() {
	now := time.Now()

	c.mu.Lock()
	removed := 0
	for _, elem := range c.entries {
		if elem.Value.(*entry[K, V]).expired(now) {
			c.removeElement(elem)
			removed++
		}
	}
	if removed > 0 {
		c.expiredCleaned.Add(int64(removed))
	}
	c.metricsCollector.SetAmount(len(c.entries))
	c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
	c.mu.Unlock()

	if removed > 0 {
		c.metricsCollector.AddExpiredEntries(removed)
	}
}

func (c *LRU[K, V]) get(key K) (value V, ok bool) {
	elem, found := c.entries[key]
	if !found {
		c.misses.Inc()
		c.metricsCollector.IncMisses()
		return value, false
	}
	ent := elem.Value.(*entry[K, V])
	now := time.Now()
	if ent.expired(now) {
		c.removeElement(elem)
		c.expiredCleaned.Inc()
		c.misses.Inc()
		c.metricsCollector.AddExpiredEntries(1)
		c.metricsCollector.IncMisses()
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.SetSizeBytes(c.totalSizeBytes)
		return value, false
	}
	c.lruList.MoveToFront(elem)
	ent.lastAccessedAt = now
	c.hits.Inc()
	c.metricsCollector.IncHits()
	return ent.value, true
}

func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	ent := elem.Value.(*entry[K, V])
	delete(c.entries, ent.key)
	c.totalSizeBytes -= ent.sizeBytes
}

func (c *LRU[K, V]) removeOldest() *entry[K, V] {
	elem := c.lruList.Back()
	if elem == nil {
		return nil
	}
	ent := elem.Value.(*entry[K, V])
	c.removeElement(elem)
	return ent
}

func (c *LRU[K, V]) estimateSize(value V) uint64 {
	size, err := c.sizeEstimator(value)
	if err != nil {
		return c.fallbackEntrySize
	}
	return size
}
